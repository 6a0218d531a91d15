package request

import (
	"net/http"
	"time"

	gocontext "context"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"go.opencensus.io/plugin/ochttp"
)

// Sender is the transport: it sends one request and returns the status and
// body, failing only on connection-level errors.
type Sender interface {
	Send(ctx gocontext.Context, method, url string, headers http.Header, body []byte) (int, []byte, error)
}

// RestySender sends requests with a resty client over an instrumented
// transport.
type RestySender struct {
	client *resty.Client
}

// NewRestySender builds a RestySender. A zero timeout leaves requests bounded
// only by their context.
func NewRestySender(timeout time.Duration) *RestySender {
	client := resty.New().
		SetTransport(&ochttp.Transport{}).
		SetLogger(logrus.WithField("self", "request/resty"))

	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &RestySender{client: client}
}

func (s *RestySender) Send(ctx gocontext.Context, method, url string, headers http.Header, body []byte) (int, []byte, error) {
	req := s.client.R().SetContext(ctx)

	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if len(body) > 0 {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return 0, nil, adaptererrors.NewTransportFault(err)
	}

	return resp.StatusCode(), resp.Body(), nil
}
