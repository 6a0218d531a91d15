package request

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	gocontext "context"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travis-ci/cloudadapter/auth"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/wire"
)

type fakeResolver struct {
	mu          sync.Mutex
	endpoint    string
	generation  int
	invalidated int
}

func (fr *fakeResolver) Resolve(ctx gocontext.Context, scope auth.Scope) (*auth.Context, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return &auth.Context{
		Token:     "token-" + string(rune('a'+fr.generation)),
		TenantID:  scope.Account,
		Endpoints: map[string]string{auth.ServiceCompute: fr.endpoint},
	}, nil
}

func (fr *fakeResolver) Invalidate(ctx gocontext.Context, scope auth.Scope) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.invalidated++
	fr.generation++
}

type recordedRequest struct {
	method string
	path   string
	token  string
	body   string
}

type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	handle   func(n int, w http.ResponseWriter, req *http.Request)
}

func newTestServer(handle func(n int, w http.ResponseWriter, req *http.Request)) *testServer {
	ts := &testServer{handle: handle}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			method: req.Method,
			path:   req.URL.RequestURI(),
			token:  req.Header.Get("X-Auth-Token"),
			body:   string(body),
		})
		n := len(ts.requests)
		ts.mu.Unlock()
		ts.handle(n, w, req)
	}))
	return ts
}

func newTestClient(endpoint string) (*Client, *fakeResolver) {
	fr := &fakeResolver{endpoint: endpoint}
	return &Client{
		Resolver: fr,
		Scope:    auth.Scope{Region: "RegionOne", Account: "demo"},
		Executor: &Executor{Sender: NewRestySender(5 * time.Second)},
	}, fr
}

func serversCall() *Call {
	return &Call{
		Service:  auth.ServiceCompute,
		Method:   "GET",
		Format:   wire.FormatJSON,
		Resource: "/servers",
		Suffix:   "detail",
	}
}

func TestClient_Execute(t *testing.T) {
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"servers": [{"id": "s-1"}]}`)
	})
	defer ts.Close()

	c, fr := newTestClient(ts.URL + "/v2/demo/")

	p, err := c.Execute(gocontext.TODO(), serversCall())
	require.Nil(t, err)
	assert.Equal(t, "s-1", p.JSON.Get("servers").GetIndex(0).Get("id").MustString())

	require.Len(t, ts.requests, 1)
	assert.Equal(t, "/v2/demo/servers/detail", ts.requests[0].path)
	assert.Equal(t, "token-a", ts.requests[0].token)
	assert.Equal(t, 0, fr.invalidated)
}

func TestClient_Execute_RetriesOnceAfterAuthFault(t *testing.T) {
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"unauthorized": {"message": "expired", "code": 401}}`)
			return
		}
		io.WriteString(w, `{"servers": []}`)
	})
	defer ts.Close()

	c, fr := newTestClient(ts.URL)

	_, err := c.Execute(gocontext.TODO(), serversCall())
	require.Nil(t, err)

	require.Len(t, ts.requests, 2)
	assert.Equal(t, "token-a", ts.requests[0].token)
	assert.Equal(t, "token-b", ts.requests[1].token)
	assert.Equal(t, 1, fr.invalidated)
}

func TestClient_Execute_SecondAuthFaultPropagates(t *testing.T) {
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer ts.Close()

	c, fr := newTestClient(ts.URL)

	_, err := c.Execute(gocontext.TODO(), serversCall())
	assert.True(t, adaptererrors.IsAuth(err))
	assert.Len(t, ts.requests, 2)
	assert.Equal(t, 1, fr.invalidated)
}

func TestClient_Execute_OtherFaultsAreNotRetried(t *testing.T) {
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"itemNotFound": {"message": "gone", "code": 404}}`)
	})
	defer ts.Close()

	c, fr := newTestClient(ts.URL)

	_, err := c.Execute(gocontext.TODO(), serversCall())
	assert.True(t, adaptererrors.IsNotFound(err))
	assert.Len(t, ts.requests, 1)
	assert.Equal(t, 0, fr.invalidated)
}

func TestClient_Execute_UnparseableBody(t *testing.T) {
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `<html>proxy error</html>`)
	})
	defer ts.Close()

	c, _ := newTestClient(ts.URL)

	_, err := c.Execute(gocontext.TODO(), serversCall())
	f, ok := adaptererrors.FaultFrom(err)
	require.True(t, ok)
	assert.Equal(t, adaptererrors.KindCommunication, f.Kind)
	assert.Equal(t, "invalidJson", f.Code)
	assert.Equal(t, `<html>proxy error</html>`, f.Body)
}

func TestClient_Execute_MissingEndpoint(t *testing.T) {
	c, _ := newTestClient("")

	_, err := c.Execute(gocontext.TODO(), serversCall())
	assert.True(t, adaptererrors.IsConfiguration(err))
}

func TestClient_Execute_TransportFault(t *testing.T) {
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {})
	endpoint := ts.URL
	ts.Close()

	c, _ := newTestClient(endpoint)

	_, err := c.Execute(gocontext.TODO(), serversCall())
	assert.True(t, adaptererrors.IsTransport(err))
}

func TestClient_Execute_FormBodyAndHeaders(t *testing.T) {
	var contentType, ttl string
	ts := newTestServer(func(n int, w http.ResponseWriter, req *http.Request) {
		contentType = req.Header.Get("Content-Type")
		ttl = req.Header.Get("X-TTL")
		w.WriteHeader(http.StatusNoContent)
	})
	defer ts.Close()

	c, _ := newTestClient(ts.URL)

	p, err := c.Execute(gocontext.TODO(), &Call{
		Service: auth.ServiceCompute,
		Method:  "POST",
		Format:  wire.FormatXML,
		Form:    url.Values{"Action": []string{"DescribeInstances"}},
		Headers: http.Header{"X-Ttl": []string{"86400"}},
	})
	require.Nil(t, err)
	assert.True(t, p.Empty())
	assert.True(t, strings.HasPrefix(contentType, "application/x-www-form-urlencoded"))
	assert.Equal(t, "86400", ttl)
	assert.Equal(t, "Action=DescribeInstances", ts.requests[0].body)
}

func TestSignatureAuthorizer(t *testing.T) {
	sa := &SignatureAuthorizer{
		Credentials: credentials.NewStaticCredentials("AKID", "SECRET", ""),
		Region:      "nova",
		now:         func() time.Time { return time.Date(2013, 5, 1, 12, 0, 0, 0, time.UTC) },
	}

	headers := http.Header{"Content-Type": []string{"application/x-www-form-urlencoded; charset=utf-8"}}
	err := sa.Authorize(&auth.Context{Token: "AKID"}, "POST", "http://ec2.example.com:8773/services/Cloud", headers, []byte("Action=DescribeInstances"))
	require.Nil(t, err)

	assert.True(t, strings.HasPrefix(headers.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=AKID/20130501/nova/ec2/aws4_request"))
	assert.Equal(t, "20130501T120000Z", headers.Get("X-Amz-Date"))
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (el *eventLog) add(event string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.events = append(el.events, event)
}

type loggingRateLimiter struct {
	log    *eventLog
	denied int
}

func (l *loggingRateLimiter) RateLimit(ctx gocontext.Context, name string, maxCalls uint64, per time.Duration) (bool, error) {
	l.log.add("ratelimit")
	if l.denied > 0 {
		l.denied--
		return false, nil
	}
	return true, nil
}

type loggingAuthorizer struct{ log *eventLog }

func (a loggingAuthorizer) Authorize(actx *auth.Context, method, url string, headers http.Header, body []byte) error {
	a.log.add("authorize")
	return nil
}

type loggingSender struct{ log *eventLog }

func (s loggingSender) Send(ctx gocontext.Context, method, url string, headers http.Header, body []byte) (int, []byte, error) {
	s.log.add("send")
	return 200, []byte(`{}`), nil
}

func TestExecutor_AuthorizesAfterRateLimitWait(t *testing.T) {
	el := &eventLog{}
	e := &Executor{
		Sender:      loggingSender{log: el},
		Authorizer:  loggingAuthorizer{log: el},
		RateLimiter: &loggingRateLimiter{log: el, denied: 1},
	}

	_, err := e.Execute(gocontext.TODO(), &auth.Context{Token: "t"}, serversCall(), "http://nova.example.com/v2/demo/servers/detail")
	require.Nil(t, err)
	assert.Equal(t, []string{"ratelimit", "ratelimit", "authorize", "send"}, el.events)
}
