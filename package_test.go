package cloudadapter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	gocontext "context"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/config"
)

func init() {
	logrus.SetLevel(logrus.FatalLevel)
}

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
	Body   string
}

// fakeProvider is an httptest server that records every request and answers
// with whatever respond returns.
type fakeProvider struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []*recordedRequest
	respond  func(r *recordedRequest) (int, string)
}

func newFakeProvider(t *testing.T, respond func(r *recordedRequest) (int, string)) *fakeProvider {
	fp := &fakeProvider{respond: respond}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		rr := &recordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Header: req.Header,
			Body:   string(body),
		}
		if strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			rr.Form, _ = url.ParseQuery(rr.Body)
		}

		fp.mu.Lock()
		fp.requests = append(fp.requests, rr)
		fp.mu.Unlock()

		status, out := fp.respond(rr)
		w.WriteHeader(status)
		io.WriteString(w, out)
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) recorded() []*recordedRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]*recordedRequest(nil), fp.requests...)
}

// actions lists the EC2 Action of every recorded request.
func (fp *fakeProvider) actions() []string {
	actions := []string{}
	for _, r := range fp.recorded() {
		actions = append(actions, r.Form.Get("Action"))
	}
	return actions
}

type noHostResolver struct{}

func (noHostResolver) LookupHost(ctx gocontext.Context, host string) ([]string, error) {
	return nil, errors.Errorf("no such host: %s", host)
}

var fastZonePolling = map[string]string{
	"ZONE_POLL_INTERVAL": "5ms",
	"ZONE_POLL_TIMEOUT":  "2s",
}

func newEC2TestSession(t *testing.T, fp *fakeProvider, extra map[string]string) *Session {
	cfg := map[string]string{
		"ENDPOINT":          fp.server.URL + "/services/Cloud",
		"ACCESS_KEY_ID":     "AKID",
		"SECRET_ACCESS_KEY": "SECRET",
		"REGION":            "nova",
	}
	for key, value := range fastZonePolling {
		cfg[key] = value
	}
	for key, value := range extra {
		cfg[key] = value
	}

	s, err := NewSession("ec2", config.ProviderConfigFromMap(cfg))
	require.Nil(t, err)
	s.resolver = noHostResolver{}
	return s
}

// newNovaTestSession swaps the keystone acquirer for fixed endpoints on fp.
func newNovaTestSession(t *testing.T, fp *fakeProvider, extra map[string]string) *Session {
	cfg := map[string]string{
		"IDENTITY_ENDPOINT": fp.server.URL + "/identity",
		"USERNAME":          "demo",
		"PASSWORD":          "secret",
		"TENANT_ID":         "tenant-7",
		"REGION":            "region-a",
	}
	for key, value := range fastZonePolling {
		cfg[key] = value
	}
	for key, value := range extra {
		cfg[key] = value
	}

	s, err := NewSession("nova", config.ProviderConfigFromMap(cfg))
	require.Nil(t, err)

	s.resolver = noHostResolver{}
	s.client.Resolver = auth.NewCache().Bind("", &auth.StaticAcquirer{
		Credentials: credentials.NewStaticCredentials("token-1", "unused", ""),
		Endpoints: map[string]string{
			auth.ServiceCompute: fp.server.URL + "/compute",
			auth.ServiceNetwork: fp.server.URL + "/network",
			auth.ServiceCDN:     fp.server.URL + "/cdn",
		},
	}, 0)
	return s
}

func ec2Error(code, message string) string {
	return `<Response><Errors><Error><Code>` + code + `</Code><Message>` + message +
		`</Message></Error></Errors><RequestID>req</RequestID></Response>`
}

// ec2Instance renders a one instance DescribeInstances or RunInstances
// response; an empty zone leaves placement out.
func ec2Instance(root, id, state, zone string) string {
	placement := ""
	if zone != "" {
		placement = `<placement><availabilityZone>` + zone + `</availabilityZone></placement>`
	}
	return `<` + root + `><reservationSet><item><ownerId>demo</ownerId><instancesSet><item>` +
		`<instanceId>` + id + `</instanceId>` +
		`<instanceState><name>` + state + `</name></instanceState>` +
		`<instanceType>m1.large</instanceType>` +
		`<privateDnsName>ip-10-0-0-5.nova.internal</privateDnsName>` +
		placement +
		`</item></instancesSet></item></reservationSet></` + root + `>`
}
