package translate

import (
	"strconv"
	"strings"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/wire"
)

// CDNContainers translates a CDN service listing (format=json). HP and
// Rackspace disagree on the uri key names; both are read.
func CDNContainers(p *wire.Payload) ([]*resource.CDNContainer, error) {
	if err := expectJSON(p); err != nil || p.Empty() {
		return nil, err
	}

	entries, err := p.JSON.Array()
	if err != nil {
		return nil, nil
	}

	containers := []*resource.CDNContainer{}
	for i := range entries {
		entry := p.JSON.GetIndex(i)
		name := stringValue(entry.Get("name"))
		if name == "" {
			continue
		}

		container := &resource.CDNContainer{
			Name:    name,
			Enabled: boolValue(entry.Get("cdn_enabled")),
			URI:     firstString(entry, "x-cdn-uri", "cdn_uri"),
			SSLURI:  firstString(entry, "x-cdn-ssl-uri", "cdn_ssl_uri"),
		}
		if ttl, err := strconv.Atoi(stringValue(entry.Get("ttl"))); err == nil {
			container.TTL = ttl
		}
		containers = append(containers, container)
	}
	return containers, nil
}

func firstString(js *simplejson.Json, keys ...string) string {
	for _, key := range keys {
		if v := stringValue(js.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// boolValue accepts JSON booleans and their string spellings.
func boolValue(js *simplejson.Json) bool {
	if b, err := js.Bool(); err == nil {
		return b
	}
	return strings.EqualFold(stringValue(js), "true")
}
