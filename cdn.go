package cloudadapter

import (
	"net/http"
	"net/url"
	"strconv"

	gocontext "context"

	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/request"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/translate"
	"github.com/travis-ci/cloudadapter/wire"
)

// DefaultCDNTTL is the cache lifetime, in seconds, of a newly enabled
// container.
const DefaultCDNTTL = 86400

func (s *Session) cdn(ctx gocontext.Context, method, container string, query url.Values, headers http.Header) (*wire.Payload, error) {
	if s.Dialect != translate.DialectNova {
		return nil, adaptererrors.NewNotSupportedFault("CDN containers need the %s dialect", translate.DialectNova)
	}

	return s.client.Execute(ctx, &request.Call{
		Service: auth.ServiceCDN,
		Method:  method,
		Format:  wire.FormatJSON,
		ID:      container,
		Query:   query,
		Headers: headers,
	})
}

// CDNContainers lists every container the CDN service knows about.
func (s *Session) CDNContainers(ctx gocontext.Context) ([]*resource.CDNContainer, error) {
	p, err := s.cdn(s.opContext(ctx, "list_cdn"), "GET", "", url.Values{"format": {"json"}}, nil)
	if err != nil {
		return nil, err
	}
	return translate.CDNContainers(p)
}

// CDNContainer returns the CDN settings of one container, or nil when CDN
// was never enabled for it.
func (s *Session) CDNContainer(ctx gocontext.Context, name string) (*resource.CDNContainer, error) {
	containers, err := s.CDNContainers(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range containers {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

// EnableCDN publishes a container with the given TTL in seconds, or
// DefaultCDNTTL when ttl is not positive.
func (s *Session) EnableCDN(ctx gocontext.Context, name string, ttl int) error {
	ctx = s.opContext(ctx, "enable_cdn")
	if ttl <= 0 {
		ttl = DefaultCDNTTL
	}

	_, err := s.cdn(ctx, "PUT", name, nil, http.Header{"X-Ttl": {strconv.Itoa(ttl)}})
	if err != nil {
		return err
	}

	context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":      "session/cdn",
		"container": name,
		"ttl":       ttl,
	}).Info("enabled cdn")
	return nil
}

func (s *Session) UpdateCDN(ctx gocontext.Context, name string, enabled bool, ttl int) error {
	headers := http.Header{"X-Cdn-Enabled": {strconv.FormatBool(enabled)}}
	if ttl > 0 {
		headers.Set("X-TTL", strconv.Itoa(ttl))
	}

	_, err := s.cdn(s.opContext(ctx, "update_cdn"), "POST", name, nil, headers)
	return err
}

func (s *Session) DisableCDN(ctx gocontext.Context, name string) error {
	_, err := s.cdn(s.opContext(ctx, "disable_cdn"), "DELETE", name, nil, nil)
	return err
}
