package translate

import (
	"encoding/json"
	"fmt"
	"testing"

	gocontext "context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travis-ci/cloudadapter/wire"
)

func TestVLANMetadata_Encode(t *testing.T) {
	md := (&VLANMetadata{
		Description: "d",
		Domain:      "example.com",
		DNSServers:  []string{"8.8.8.8", "8.8.4.4"},
		NTPServers:  []string{"ntp1"},
	}).Encode()

	assert.Equal(t, map[string]string{
		"org.dasein.description": "d",
		"org.dasein.domain":      "example.com",
		"org.dasein.dns.1":       "8.8.8.8",
		"org.dasein.dns.2":       "8.8.4.4",
		"org.dasein.ntp.1":       "ntp1",
	}, md)
}

func TestDecodeVLANMetadata_OrdersByIndex(t *testing.T) {
	md, tags := DecodeVLANMetadata(map[string]string{
		"org.dasein.dns.10": "ten",
		"org.dasein.dns.2":  "two",
		"org.dasein.dns.1":  "one",
		"org.dasein.dns.":   "blank",
		"org.dasein.dns.0":  "zero",
		"plain":             "tag",
	})

	assert.Equal(t, []string{"one", "two", "ten"}, md.DNSServers)
	assert.Equal(t, map[string]string{"plain": "tag"}, tags)
}

// Pushes VLANs through metadata encoding and the Nova translator and expects
// every field back unchanged.
func TestVLANMetadata_RoundTrip(t *testing.T) {
	for i, tc := range []struct {
		cidr, name, description, domain string
		dns, ntp                        []string
	}{
		{"10.0.0.0/16", "build", "build network", "builds.example.com", []string{"8.8.8.8", "8.8.4.4"}, []string{"pool.ntp.org"}},
		{"192.168.0.0/24", "solo", "solo", "", []string{}, []string{}},
		{"172.16.0.0/12", "many", "lots of servers", "x.example", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}, []string{"n1", "n2"}},
	} {
		meta := &VLANMetadata{
			Name:        tc.name,
			Description: tc.description,
			Domain:      tc.domain,
			DNSServers:  tc.dns,
			NTPServers:  tc.ntp,
		}

		body, err := json.Marshal(map[string]interface{}{
			"network": map[string]interface{}{
				"id":       fmt.Sprintf("net-%d", i),
				"cidr":     tc.cidr,
				"metadata": meta.Encode(),
			},
		})
		require.Nil(t, err)

		p, err := wire.Decode(wire.FormatJSON, 200, body)
		require.Nil(t, err)

		vlans, err := (&Nova{}).VLANs(gocontext.TODO(), testScope(), p)
		require.Nil(t, err)
		require.Len(t, vlans, 1)

		v := vlans[0]
		assert.Equal(t, tc.cidr, v.CIDR)
		assert.Equal(t, tc.name, v.Name)
		assert.Equal(t, tc.description, v.Description)
		assert.Equal(t, tc.domain, v.DomainName)
		assert.Equal(t, tc.dns, v.DNSServers)
		assert.Equal(t, tc.ntp, v.NTPServers)
		assert.Equal(t, map[string]string{}, v.Tags)
	}
}
