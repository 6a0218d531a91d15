// Package cloudadapter manages virtual machines, networks and CDN containers
// on EC2-style and OpenStack Nova clouds through one normalized model.
package cloudadapter

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gocontext "context"

	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/catalog"
	"github.com/travis-ci/cloudadapter/config"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/ratelimit"
	"github.com/travis-ci/cloudadapter/request"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/translate"
)

const (
	defaultRegion           = "RegionOne"
	defaultZonePollInterval = time.Second
	defaultZonePollTimeout  = 10 * time.Minute
	defaultRequestTimeout   = time.Minute
	defaultPasswordPoolSize = 4
	defaultRateLimitPrefix  = "cloud-adapter-rl"
)

var (
	// SessionHelp documents the provider config keys every dialect reads.
	// Dialect specific keys are in Dialect.Help.
	SessionHelp = map[string]string{
		"REGION":               fmt.Sprintf("region to operate in (default %q)", defaultRegion),
		"ACCOUNT":              "account or tenant the session acts for (default TENANT_ID, then TENANT_NAME, then ACCESS_KEY_ID)",
		"ZONE_POLL_INTERVAL":   fmt.Sprintf("sleep between zone assignment polls after a launch (default %v)", defaultZonePollInterval),
		"ZONE_POLL_TIMEOUT":    fmt.Sprintf("give up waiting for zone assignment after this long (default %v)", defaultZonePollTimeout),
		"REQUEST_TIMEOUT":      fmt.Sprintf("timeout of a single provider request (default %v)", defaultRequestTimeout),
		"AUTH_TTL":             fmt.Sprintf("how long an authentication context is cached (default %v)", auth.DefaultTTL),
		"CATALOG_PATH":         "product catalog descriptor to load instead of the bundled one",
		"RATE_LIMIT_REDIS_URL": "redis URL used to rate limit provider calls across processes",
		"RATE_LIMIT_MAX_CALLS": "max provider calls per RATE_LIMIT_DURATION (default 10)",
		"RATE_LIMIT_DURATION":  "rate limit window (default 1s)",
		"PASSWORD_POOL_SIZE":   fmt.Sprintf("concurrent password retrievals (default %d)", defaultPasswordPoolSize),
	}
)

// Session is one authenticated view of a cloud: a dialect, a region and an
// account, plus everything needed to talk to it.
type Session struct {
	Dialect    translate.Dialect
	Scope      auth.Scope
	Catalog    *catalog.Catalog
	Translator translate.Translator

	client *request.Client
	api    dialectAPI

	rackspace        bool
	zonePollInterval time.Duration
	zonePollTimeout  time.Duration
	passwordPoolSize int
	resolver         translate.HostResolver
}

// NewSession builds a session for providerName (a dialect) from cfg.
func NewSession(providerName string, cfg *config.ProviderConfig) (*Session, error) {
	dialect := translate.Dialect(strings.ToLower(providerName))

	translator, err := translate.For(dialect)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Dialect:          dialect,
		Translator:       translator,
		Catalog:          catalog.LoadFile(cfg.Get("CATALOG_PATH")),
		zonePollInterval: defaultZonePollInterval,
		zonePollTimeout:  defaultZonePollTimeout,
		passwordPoolSize: defaultPasswordPoolSize,
		resolver:         net.DefaultResolver,
	}

	s.Scope = auth.Scope{
		Region:  defaultRegion,
		Account: firstSet(cfg, "ACCOUNT", "TENANT_ID", "TENANT_NAME", "ACCESS_KEY_ID"),
	}
	if cfg.IsSet("REGION") {
		s.Scope.Region = cfg.Get("REGION")
	}

	if cfg.IsSet("RACKSPACE") {
		s.rackspace, err = strconv.ParseBool(cfg.Get("RACKSPACE"))
		if err != nil {
			return nil, adaptererrors.NewConfigurationFault("invalid RACKSPACE %q", cfg.Get("RACKSPACE"))
		}
	}

	for key, target := range map[string]*time.Duration{
		"ZONE_POLL_INTERVAL": &s.zonePollInterval,
		"ZONE_POLL_TIMEOUT":  &s.zonePollTimeout,
	} {
		if err := durationSetting(cfg, key, target); err != nil {
			return nil, err
		}
	}

	if cfg.IsSet("PASSWORD_POOL_SIZE") {
		s.passwordPoolSize, err = strconv.Atoi(cfg.Get("PASSWORD_POOL_SIZE"))
		if err != nil || s.passwordPoolSize < 1 {
			return nil, adaptererrors.NewConfigurationFault("invalid PASSWORD_POOL_SIZE %q", cfg.Get("PASSWORD_POOL_SIZE"))
		}
	}

	executor, err := newExecutor(cfg)
	if err != nil {
		return nil, err
	}

	authTTL := auth.DefaultTTL
	if err := durationSetting(cfg, "AUTH_TTL", &authTTL); err != nil {
		return nil, err
	}

	d, ok := lookupDialect(dialect)
	if !ok {
		return nil, adaptererrors.NewConfigurationFault("no dialect registered as %q", dialect)
	}

	acquirer, authorizer, api, err := d.setup(s, cfg)
	if err != nil {
		return nil, err
	}
	if authorizer != nil {
		executor.Authorizer = authorizer
	}
	s.api = api

	s.client = &request.Client{
		Resolver: auth.DefaultCache().Bind(firstSet(cfg, "IDENTITY_ENDPOINT", "ENDPOINT"), acquirer, authTTL),
		Scope:    s.Scope,
		Executor: executor,
	}

	return s, nil
}

func newExecutor(cfg *config.ProviderConfig) (*request.Executor, error) {
	requestTimeout := defaultRequestTimeout
	if err := durationSetting(cfg, "REQUEST_TIMEOUT", &requestTimeout); err != nil {
		return nil, err
	}

	executor := &request.Executor{
		Sender:      request.NewRestySender(requestTimeout),
		RateLimiter: ratelimit.NewNullRateLimiter(),
	}

	if cfg.IsSet("RATE_LIMIT_REDIS_URL") {
		executor.RateLimiter = ratelimit.NewRateLimiter(cfg.Get("RATE_LIMIT_REDIS_URL"), defaultRateLimitPrefix)
	}

	if cfg.IsSet("RATE_LIMIT_MAX_CALLS") {
		maxCalls, err := strconv.ParseUint(cfg.Get("RATE_LIMIT_MAX_CALLS"), 10, 64)
		if err != nil {
			return nil, adaptererrors.NewConfigurationFault("invalid RATE_LIMIT_MAX_CALLS %q", cfg.Get("RATE_LIMIT_MAX_CALLS"))
		}
		executor.RateLimitMaxCalls = maxCalls
	}

	if err := durationSetting(cfg, "RATE_LIMIT_DURATION", &executor.RateLimitDuration); err != nil {
		return nil, err
	}

	return executor, nil
}

func durationSetting(cfg *config.ProviderConfig, key string, target *time.Duration) error {
	if !cfg.IsSet(key) {
		return nil
	}
	d, err := time.ParseDuration(cfg.Get(key))
	if err != nil || d <= 0 {
		return adaptererrors.NewConfigurationFault("invalid %s %q, want a positive duration", key, cfg.Get(key))
	}
	*target = d
	return nil
}

func firstSet(cfg *config.ProviderConfig, keys ...string) string {
	for _, key := range keys {
		if v := cfg.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// translateScope is what the translators need to know about this session.
func (s *Session) translateScope() *translate.Scope {
	return &translate.Scope{
		Region:   s.Scope.Region,
		Owner:    s.Scope.Account,
		Products: s.Catalog,
		Resolver: s.resolver,
		VLANs:    sessionVLANs{s},
	}
}

// Products lists the catalog products of an architecture.
func (s *Session) Products(arch resource.Architecture) []resource.Product {
	return s.Catalog.Products(arch)
}

// Product looks a catalog product up by id.
func (s *Session) Product(id string) (*resource.Product, bool) {
	return s.Catalog.Product(id)
}

// opContext tags ctx with the session scope and the operation for logging.
func (s *Session) opContext(ctx gocontext.Context, operation string) gocontext.Context {
	ctx = context.FromRegion(ctx, s.Scope.Region)
	ctx = context.FromAccount(ctx, s.Scope.Account)
	return context.FromOperation(ctx, operation)
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{dialect=%s scope=%s}", s.Dialect, s.Scope)
}
