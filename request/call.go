package request

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jtacoma/uritemplates"
	"github.com/pkg/errors"
	"github.com/travis-ci/cloudadapter/wire"
)

var resourcePathTemplate *uritemplates.UriTemplate

func init() {
	var err error
	resourcePathTemplate, err = uritemplates.Parse("{+resource}{/id,suffix}")
	if err != nil {
		panic(err)
	}
}

// Call describes one provider request independent of the endpoint and
// credentials it will eventually be sent with.
type Call struct {
	Service string
	Method  string
	Format  wire.Format

	// Resource is the collection path, e.g. "/servers". ID and Suffix are
	// appended as escaped path segments when set.
	Resource string
	ID       string
	Suffix   string
	Query    url.Values

	// Body is sent as is. Form, when set, replaces it with a form-encoded
	// body (EC2 query API).
	Body    []byte
	Form    url.Values
	Headers http.Header
}

// ResourcePath expands resource, id and suffix into a path. Empty parts are
// left out.
func ResourcePath(resource, id, suffix string) (string, error) {
	values := map[string]interface{}{
		"resource": resource,
	}
	if id != "" {
		values["id"] = id
	}
	if suffix != "" {
		values["suffix"] = suffix
	}

	p, err := resourcePathTemplate.Expand(values)
	if err != nil {
		return "", errors.Wrap(err, "couldn't expand resource path")
	}
	return p, nil
}

// JoinURL joins endpoint and path with exactly one separator, whatever
// slashes either side already has.
func JoinURL(endpoint, path string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return endpoint
	}
	return endpoint + "/" + path
}

// URL builds the full request URL of c against endpoint.
func (c *Call) URL(endpoint string) (string, error) {
	p, err := ResourcePath(c.Resource, c.ID, c.Suffix)
	if err != nil {
		return "", err
	}

	u := JoinURL(endpoint, p)
	if len(c.Query) > 0 {
		u += "?" + c.Query.Encode()
	}
	return u, nil
}
