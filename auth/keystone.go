package auth

import (
	"strings"

	gocontext "context"

	"github.com/pkg/errors"
	"github.com/rackspace/gophercloud"
	"github.com/rackspace/gophercloud/openstack"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
)

const (
	ServiceCompute = "compute"
	ServiceNetwork = "network"
	ServiceCDN     = "cdn"
	ServiceEC2     = "ec2"

	defaultCDNServiceType = "hpext:cdn"
)

// KeystoneAcquirer authenticates against an OpenStack identity service and
// reads service endpoints from the returned catalog.
type KeystoneAcquirer struct {
	IdentityEndpoint string
	Username         string
	Password         string
	TenantName       string
	TenantID         string
	DomainName       string

	// CDNServiceType is the catalog type of the CDN service.
	CDNServiceType string

	// Overrides replace catalog endpoints per service name.
	Overrides map[string]string
}

func (k *KeystoneAcquirer) authOptions() (gophercloud.AuthOptions, error) {
	if k.IdentityEndpoint == "" {
		return gophercloud.AuthOptions{}, adaptererrors.NewConfigurationFault("missing IDENTITY_ENDPOINT")
	}
	if k.Username == "" || k.Password == "" {
		return gophercloud.AuthOptions{}, adaptererrors.NewConfigurationFault("missing USERNAME or PASSWORD")
	}

	opts := gophercloud.AuthOptions{
		IdentityEndpoint: k.IdentityEndpoint,
		Username:         k.Username,
		Password:         k.Password,
		TenantName:       k.TenantName,
		TenantID:         k.TenantID,
	}

	if strings.HasSuffix(strings.TrimSuffix(k.IdentityEndpoint, "/"), "v3") {
		opts.DomainName = k.DomainName
	}

	return opts, nil
}

// Acquire authenticates and collects the compute, network and CDN endpoints
// for scope's region. A service missing from the catalog is left out; asking
// for it later is a configuration fault.
func (k *KeystoneAcquirer) Acquire(ctx gocontext.Context, scope Scope) (*Context, error) {
	logger := context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":   "auth/keystone",
		"region": scope.Region,
	})

	opts, err := k.authOptions()
	if err != nil {
		return nil, err
	}

	provider, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't authenticate with identity service")
	}

	endpoints := map[string]string{}

	compute, err := openstack.NewComputeV2(provider, gophercloud.EndpointOpts{Region: scope.Region})
	if err == nil {
		endpoints[ServiceCompute] = compute.Endpoint
	} else {
		logger.WithField("err", err).Debug("no compute endpoint in catalog")
	}

	network, err := openstack.NewNetworkV2(provider, gophercloud.EndpointOpts{Region: scope.Region})
	if err == nil {
		endpoints[ServiceNetwork] = network.Endpoint
	} else {
		logger.WithField("err", err).Debug("no network endpoint in catalog")
	}

	cdnType := k.CDNServiceType
	if cdnType == "" {
		cdnType = defaultCDNServiceType
	}
	eo := gophercloud.EndpointOpts{Type: cdnType, Region: scope.Region}
	eo.ApplyDefaults(cdnType)
	if cdnURL, err := provider.EndpointLocator(eo); err == nil {
		endpoints[ServiceCDN] = cdnURL
	}

	for service, u := range k.Overrides {
		if u != "" {
			endpoints[service] = u
		}
	}

	tenantID := k.TenantID
	if tenantID == "" {
		tenantID = scope.Account
	}

	return &Context{
		Token:     provider.TokenID,
		TenantID:  tenantID,
		Endpoints: endpoints,
	}, nil
}
