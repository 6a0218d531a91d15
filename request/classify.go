package request

import (
	"encoding/xml"
	"net/http"
	"strings"

	simplejson "github.com/bitly/go-simplejson"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/wire"
)

var authCodes = map[string]bool{
	"AuthFailure":           true,
	"SignatureDoesNotMatch": true,
	"InvalidClientTokenId":  true,
	"unauthorized":          true,
	"forbidden":             true,
}

var capacityCodes = map[string]bool{
	"InsufficientInstanceCapacity": true,
}

// Classify turns a non-2xx response into a Fault of the right kind, keeping
// the provider's error code and raw body.
func Classify(format wire.Format, status int, body []byte) *adaptererrors.Fault {
	code, message := providerError(format, body)
	if message == "" {
		message = http.StatusText(status)
	}

	f := &adaptererrors.Fault{
		Kind:    adaptererrors.KindProvider,
		Status:  status,
		Code:    code,
		Message: message,
		Body:    string(body),
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || authCodes[code]:
		f.Kind = adaptererrors.KindAuth
	case capacityCodes[code] || strings.Contains(message, "No valid host was found"):
		f.Kind = adaptererrors.KindCapacity
	case status == http.StatusNotFound || isNotFoundCode(code):
		f.Kind = adaptererrors.KindNotFound
	}

	return f
}

func isNotFoundCode(code string) bool {
	return strings.HasPrefix(code, "InvalidInstanceID") ||
		strings.HasSuffix(code, ".NotFound") ||
		strings.HasSuffix(code, "NotFound")
}

// providerError digs the error code and message out of a fault body. Bodies
// that don't parse just yield nothing.
func providerError(format wire.Format, body []byte) (string, string) {
	if format == wire.FormatXML {
		root := &wire.Node{}
		if err := xml.Unmarshal(body, root); err != nil {
			return "", ""
		}
		e := root.Find("Error")
		return e.ChildText("Code"), e.ChildText("Message")
	}

	js, err := simplejson.NewJson(body)
	if err != nil {
		return "", ""
	}

	envelope, err := js.Map()
	if err != nil || len(envelope) != 1 {
		return "", ""
	}

	for key := range envelope {
		inner := js.Get(key)
		if t := inner.Get("type").MustString(); t != "" {
			return t, inner.Get("message").MustString()
		}
		return key, inner.Get("message").MustString()
	}

	return "", ""
}
