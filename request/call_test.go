package request

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinURL(t *testing.T) {
	for _, tc := range []struct {
		endpoint, path, expected string
	}{
		{"http://nova:8774/v2/abc", "/servers", "http://nova:8774/v2/abc/servers"},
		{"http://nova:8774/v2/abc/", "/servers", "http://nova:8774/v2/abc/servers"},
		{"http://nova:8774/v2/abc/", "servers", "http://nova:8774/v2/abc/servers"},
		{"http://nova:8774/v2/abc", "servers", "http://nova:8774/v2/abc/servers"},
		{"http://nova:8774/v2/abc//", "//servers", "http://nova:8774/v2/abc/servers"},
		{"http://ec2:8773/services/Cloud/", "", "http://ec2:8773/services/Cloud"},
	} {
		assert.Equal(t, tc.expected, JoinURL(tc.endpoint, tc.path), "%q + %q", tc.endpoint, tc.path)
	}
}

func TestJoinURL_Idempotent(t *testing.T) {
	once := JoinURL("http://nova/v2/", "/servers/")
	assert.Equal(t, once, JoinURL(once, ""))
}

func TestResourcePath(t *testing.T) {
	for _, tc := range []struct {
		resource, id, suffix, expected string
	}{
		{"/servers", "", "", "/servers"},
		{"/servers", "", "detail", "/servers/detail"},
		{"/servers", "abc", "", "/servers/abc"},
		{"/servers", "abc", "action", "/servers/abc/action"},
		{"/networks", "net-1", "ports", "/networks/net-1/ports"},
		{"", "my container", "", "/my%20container"},
		{"/servers", "a/b", "", "/servers/a%2Fb"},
		{"", "", "", ""},
	} {
		p, err := ResourcePath(tc.resource, tc.id, tc.suffix)
		require.Nil(t, err)
		assert.Equal(t, tc.expected, p)
	}
}

func TestCall_URL(t *testing.T) {
	c := &Call{
		Resource: "/subnets",
		Query:    url.Values{"network_id": []string{"net-1"}},
	}

	u, err := c.URL("http://quantum:9696/v2.0/")
	require.Nil(t, err)
	assert.Equal(t, "http://quantum:9696/v2.0/subnets?network_id=net-1", u)
}
