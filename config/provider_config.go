package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
)

// ProviderConfig holds the string settings of one provider session.
type ProviderConfig struct {
	sync.Mutex

	cfgMap map[string]string
}

func (pc *ProviderConfig) Map(f func(string, string)) {
	keys := []string{}
	for key := range pc.cfgMap {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		f(key, pc.Get(key))
	}
}

func (pc *ProviderConfig) Get(key string) string {
	pc.Lock()
	defer pc.Unlock()

	if value, ok := pc.cfgMap[key]; ok {
		return value
	}

	return ""
}

func (pc *ProviderConfig) Set(key, value string) {
	pc.Lock()
	defer pc.Unlock()

	pc.cfgMap[key] = value
}

func (pc *ProviderConfig) IsSet(key string) bool {
	pc.Lock()
	defer pc.Unlock()

	_, ok := pc.cfgMap[key]
	return ok
}

// GoString redacts secrets so configs can be logged with %#v.
func (pc *ProviderConfig) GoString() string {
	parts := []string{}
	pc.Map(func(key, value string) {
		if strings.Contains(key, "PASSWORD") || strings.Contains(key, "SECRET") {
			value = "[REDACTED]"
		}
		parts = append(parts, fmt.Sprintf("%s:%q", key, value))
	})
	return fmt.Sprintf("&config.ProviderConfig{%s}", strings.Join(parts, " "))
}

// ProviderConfigFromMap builds a *ProviderConfig from a plain map, mostly
// useful in tests.
func ProviderConfigFromMap(cfgMap map[string]string) *ProviderConfig {
	pc := &ProviderConfig{cfgMap: map[string]string{}}
	for key, value := range cfgMap {
		pc.cfgMap[key] = value
	}
	return pc
}

// ProviderConfigFromEnviron dynamically builds a *ProviderConfig from the
// environment by loading values from keys with prefixes that match either the
// uppercase provider name + "_" or "CLOUD_ADAPTER_" + uppercase provider name +
// "_", e.g., for provider "nova":
//   env: CLOUD_ADAPTER_NOVA_REGION=RegionOne NOVA_ACCOUNT=demo
//   map equiv: {"REGION": "RegionOne", "ACCOUNT": "demo"}
func ProviderConfigFromEnviron(providerName string) *ProviderConfig {
	upperProvider := strings.ToUpper(providerName)

	pc := &ProviderConfig{cfgMap: map[string]string{}}

	for _, prefix := range []string{
		upperProvider + "_",
		"CLOUD_ADAPTER_" + upperProvider + "_",
	} {
		for _, e := range os.Environ() {
			if strings.HasPrefix(e, prefix) {
				pair := strings.SplitN(e, "=", 2)

				key := strings.ToUpper(strings.TrimPrefix(pair[0], prefix))
				value := pair[1]
				unescapedValue, err := url.QueryUnescape(value)
				if err == nil {
					value = unescapedValue
				}

				pc.Set(key, value)
			}
		}
	}

	return pc
}
