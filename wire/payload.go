// Package wire decodes raw provider responses into the node types the
// translators walk.
package wire

import (
	"bytes"
	"encoding/xml"

	simplejson "github.com/bitly/go-simplejson"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
)

// Format is the body encoding a service speaks.
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

func (f Format) String() string {
	if f == FormatXML {
		return "xml"
	}
	return "json"
}

// Payload is a decoded response body. Exactly one of XML and JSON is set
// unless the body was empty.
type Payload struct {
	Format Format
	Status int
	Raw    []byte

	XML  *Node
	JSON *simplejson.Json
}

// Empty is true when the provider sent no body.
func (p *Payload) Empty() bool {
	return p == nil || (p.XML == nil && p.JSON == nil)
}

// Decode parses body as format. Unparseable bodies are communication faults
// carrying the raw body.
func Decode(format Format, status int, body []byte) (*Payload, error) {
	p := &Payload{Format: format, Status: status, Raw: body}

	if len(bytes.TrimSpace(body)) == 0 {
		return p, nil
	}

	switch format {
	case FormatXML:
		root := &Node{}
		if err := xml.Unmarshal(body, root); err != nil {
			return nil, adaptererrors.NewCommunicationFault(status, "invalidXml", body, err)
		}
		p.XML = root
	default:
		js, err := simplejson.NewJson(body)
		if err != nil {
			return nil, adaptererrors.NewCommunicationFault(status, "invalidJson", body, err)
		}
		p.JSON = js
	}

	return p, nil
}
