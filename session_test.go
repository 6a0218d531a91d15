package cloudadapter

import (
	"testing"

	gocontext "context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travis-ci/cloudadapter/config"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/translate"
)

func TestEachDialect(t *testing.T) {
	aliases := []translate.Dialect{}
	EachDialect(func(d *Dialect) {
		aliases = append(aliases, d.Alias)
		assert.NotEmpty(t, d.HumanReadableName)
		assert.NotEmpty(t, d.Help)
	})
	assert.Equal(t, []translate.Dialect{translate.DialectEC2, translate.DialectNova}, aliases)
}

func TestNewSession(t *testing.T) {
	s, err := NewSession("EC2", config.ProviderConfigFromMap(map[string]string{
		"ENDPOINT":      "http://nova.example.com:8773/services/Cloud",
		"ACCESS_KEY_ID": "AKID",
	}))
	require.Nil(t, err)
	assert.Equal(t, translate.DialectEC2, s.Dialect)
	assert.Equal(t, defaultRegion, s.Scope.Region)
	assert.Equal(t, "AKID", s.Scope.Account)
	assert.Equal(t, defaultZonePollTimeout, s.zonePollTimeout)
	assert.Equal(t, defaultPasswordPoolSize, s.passwordPoolSize)
	assert.NotEmpty(t, s.Products(""))
}

func TestNewSession_Account(t *testing.T) {
	s, err := NewSession("nova", config.ProviderConfigFromMap(map[string]string{
		"IDENTITY_ENDPOINT": "http://keystone.example.com:5000/v2.0",
		"TENANT_NAME":       "demo",
		"TENANT_ID":         "tenant-7",
		"REGION":            "region-b",
	}))
	require.Nil(t, err)
	assert.Equal(t, "tenant-7", s.Scope.Account)
	assert.Equal(t, "region-b", s.Scope.Region)
}

func TestNewSession_Errors(t *testing.T) {
	ec2 := map[string]string{
		"ENDPOINT":      "http://nova.example.com:8773/services/Cloud",
		"ACCESS_KEY_ID": "AKID",
	}

	for name, tc := range map[string]struct {
		dialect string
		extra   map[string]string
		drop    string
	}{
		"unknown dialect":    {dialect: "vcloud"},
		"missing endpoint":   {dialect: "ec2", drop: "ENDPOINT"},
		"bad poll interval":  {dialect: "ec2", extra: map[string]string{"ZONE_POLL_INTERVAL": "often"}},
		"zero poll interval": {dialect: "ec2", extra: map[string]string{"ZONE_POLL_INTERVAL": "0s"}},
		"negative timeout":   {dialect: "ec2", extra: map[string]string{"ZONE_POLL_TIMEOUT": "-1m"}},
		"zero auth ttl":      {dialect: "ec2", extra: map[string]string{"AUTH_TTL": "0"}},
		"bad pool size":      {dialect: "ec2", extra: map[string]string{"PASSWORD_POOL_SIZE": "0"}},
		"bad rackspace flag": {dialect: "ec2", extra: map[string]string{"RACKSPACE": "maybe"}},
		"bad rate limit":     {dialect: "ec2", extra: map[string]string{"RATE_LIMIT_MAX_CALLS": "-1"}},
	} {
		cfg := map[string]string{}
		for key, value := range ec2 {
			cfg[key] = value
		}
		for key, value := range tc.extra {
			cfg[key] = value
		}
		delete(cfg, tc.drop)

		_, err := NewSession(tc.dialect, config.ProviderConfigFromMap(cfg))
		assert.True(t, adaptererrors.IsConfiguration(err), name)
	}
}

func TestNewSession_SharesAuthContexts(t *testing.T) {
	cfg := map[string]string{
		"ENDPOINT":      "http://shared.example.com:8773/services/Cloud",
		"ACCESS_KEY_ID": "AKID-shared",
	}

	first, err := NewSession("ec2", config.ProviderConfigFromMap(cfg))
	require.Nil(t, err)
	second, err := NewSession("ec2", config.ProviderConfigFromMap(cfg))
	require.Nil(t, err)

	a, err := first.client.AuthContext(gocontext.TODO())
	require.Nil(t, err)
	b, err := second.client.AuthContext(gocontext.TODO())
	require.Nil(t, err)

	assert.Equal(t, a.Token, b.Token)
	assert.True(t, a.Expiry.Equal(b.Expiry), "second session reacquired instead of reusing %v", a.Expiry)
}
