package cloudadapter

import (
	"net/url"
	"strconv"

	gocontext "context"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/pkg/errors"
	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/config"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/request"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/translate"
	"github.com/travis-ci/cloudadapter/wire"
)

const (
	novaNetworksResource          = "/v2.0/networks"
	novaSubnetsResource           = "/v2.0/subnets"
	novaPortsResource             = "/v2.0/ports"
	rackspaceNetworksResource     = "/os-networksv2"
	novaServersResource           = "/servers"
	novaServerPasswordSuffix      = "os-server-password"
	novaServerSecurityGroupSuffix = "os-security-groups"
)

var novaHelp = map[string]string{
	"IDENTITY_ENDPOINT": "[REQUIRED] Keystone/identity service endpoint (ENDPOINT is used when unset)",
	"USERNAME":          "[REQUIRED] OpenStack user name",
	"PASSWORD":          "[REQUIRED] OpenStack user password",
	"TENANT_NAME":       "OpenStack tenant name",
	"TENANT_ID":         "OpenStack tenant id",
	"DOMAIN_NAME":       "OpenStack domain name, only used with a v3 identity endpoint",
	"RACKSPACE":         "set to true for Rackspace networking (os-networksv2 on the compute service, no subnets)",
	"NETWORK_ENDPOINT":  "override the catalog endpoint of the network service (without the API version)",
	"CDN_ENDPOINT":      "override the catalog endpoint of the CDN service",
	"CDN_SERVICE_TYPE":  "catalog type of the CDN service (default \"hpext:cdn\")",
}

func init() {
	registerDialect(&Dialect{
		Alias:             translate.DialectNova,
		HumanReadableName: "OpenStack Nova/Quantum",
		Help:              novaHelp,
		setup:             setupNova,
	})
}

func setupNova(s *Session, cfg *config.ProviderConfig) (auth.Acquirer, request.Authorizer, dialectAPI, error) {
	acquirer := &auth.KeystoneAcquirer{
		IdentityEndpoint: firstSet(cfg, "IDENTITY_ENDPOINT", "ENDPOINT"),
		Username:         cfg.Get("USERNAME"),
		Password:         cfg.Get("PASSWORD"),
		TenantName:       cfg.Get("TENANT_NAME"),
		TenantID:         cfg.Get("TENANT_ID"),
		DomainName:       cfg.Get("DOMAIN_NAME"),
		CDNServiceType:   cfg.Get("CDN_SERVICE_TYPE"),
		Overrides: map[string]string{
			auth.ServiceNetwork: cfg.Get("NETWORK_ENDPOINT"),
			auth.ServiceCDN:     cfg.Get("CDN_ENDPOINT"),
		},
	}

	return acquirer, nil, &novaAPI{s: s}, nil
}

// novaAPI speaks the OpenStack compute and network JSON APIs.
type novaAPI struct {
	s *Session
}

func (api *novaAPI) do(ctx gocontext.Context, call *request.Call) (*wire.Payload, error) {
	call.Format = wire.FormatJSON
	return api.s.client.Execute(ctx, call)
}

func (api *novaAPI) compute(ctx gocontext.Context, method, id, suffix string, body *simplejson.Json) (*wire.Payload, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	return api.do(ctx, &request.Call{
		Service:  auth.ServiceCompute,
		Method:   method,
		Resource: novaServersResource,
		ID:       id,
		Suffix:   suffix,
		Body:     raw,
	})
}

// network sends to the networks collection, which Rackspace serves from
// the compute service.
func (api *novaAPI) network(ctx gocontext.Context, method, id string, body *simplejson.Json) (*wire.Payload, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	call := &request.Call{
		Service:  auth.ServiceNetwork,
		Method:   method,
		Resource: novaNetworksResource,
		ID:       id,
		Body:     raw,
	}
	if api.s.rackspace {
		call.Service = auth.ServiceCompute
		call.Resource = rackspaceNetworksResource
	}
	return api.do(ctx, call)
}

func (api *novaAPI) subnets(ctx gocontext.Context, method, id string, query url.Values, body *simplejson.Json) (*wire.Payload, error) {
	if api.s.rackspace {
		return nil, adaptererrors.NewNotSupportedFault("subnets are not supported on Rackspace")
	}

	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	return api.do(ctx, &request.Call{
		Service:  auth.ServiceNetwork,
		Method:   method,
		Resource: novaSubnetsResource,
		ID:       id,
		Query:    query,
		Body:     raw,
	})
}

func encodeBody(body *simplejson.Json) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := body.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't encode request body")
	}
	return raw, nil
}

func (api *novaAPI) firstVM(ctx gocontext.Context, p *wire.Payload) (*resource.VirtualMachine, error) {
	vms, err := api.s.Translator.VirtualMachines(ctx, api.s.translateScope(), p)
	if err != nil || len(vms) == 0 {
		return nil, err
	}
	return vms[0], nil
}

func (api *novaAPI) launch(ctx gocontext.Context, opts *LaunchOptions) (*resource.VirtualMachine, error) {
	body := simplejson.New()
	body.SetPath([]string{"server", "name"}, opts.Name)
	body.SetPath([]string{"server", "imageRef"}, opts.ImageID)
	body.SetPath([]string{"server", "flavorRef"}, opts.ProductID)
	if opts.KeypairID != "" {
		body.SetPath([]string{"server", "key_name"}, opts.KeypairID)
	}
	if opts.DataCenterID != "" {
		body.SetPath([]string{"server", "availability_zone"}, opts.DataCenterID)
	}
	if opts.VlanID != "" {
		body.SetPath([]string{"server", "networks"}, []map[string]string{{"uuid": opts.VlanID}})
	}
	if len(opts.FirewallIDs) > 0 {
		groups := []map[string]string{}
		for _, id := range opts.FirewallIDs {
			groups = append(groups, map[string]string{"name": id})
		}
		body.SetPath([]string{"server", "security_groups"}, groups)
	}

	p, err := api.compute(ctx, "POST", "", "", body)
	if err != nil {
		return nil, err
	}

	created, err := api.firstVM(ctx, p)
	if err != nil || created == nil {
		return nil, err
	}

	// the create response only has the id and admin password
	full, err := api.getVirtualMachine(ctx, created.ID)
	if err != nil && !adaptererrors.IsNotFound(err) {
		return nil, err
	}
	if full == nil {
		return created, nil
	}
	if created.Password.Ready() {
		full.Password = created.Password
	}
	return full, nil
}

func (api *novaAPI) getVirtualMachine(ctx gocontext.Context, id string) (*resource.VirtualMachine, error) {
	p, err := api.compute(ctx, "GET", id, "", nil)
	if err != nil {
		return nil, err
	}
	return api.firstVM(ctx, p)
}

func (api *novaAPI) listVirtualMachines(ctx gocontext.Context) ([]*resource.VirtualMachine, error) {
	p, err := api.compute(ctx, "GET", "", "detail", nil)
	if err != nil {
		return nil, err
	}
	return api.s.Translator.VirtualMachines(ctx, api.s.translateScope(), p)
}

func (api *novaAPI) applyTags(ctx gocontext.Context, id string, tags []resource.Tag) error {
	md := map[string]interface{}{}
	for _, tag := range tags {
		md[tag.Key] = tag.Value
	}

	body := simplejson.New()
	body.Set("metadata", md)

	_, err := api.compute(ctx, "POST", id, "metadata", body)
	return err
}

func (api *novaAPI) vmAction(ctx gocontext.Context, id string, action vmAction) error {
	if action == vmActionTerminate {
		_, err := api.compute(ctx, "DELETE", id, "", nil)
		return err
	}

	body := simplejson.New()
	switch action {
	case vmActionBoot:
		body.Set("os-start", nil)
	case vmActionPause:
		body.Set("os-stop", nil)
	case vmActionReboot:
		body.SetPath([]string{"reboot", "type"}, "SOFT")
	}

	_, err := api.compute(ctx, "POST", id, "action", body)
	return err
}

func (api *novaAPI) consoleOutput(ctx gocontext.Context, id string) (string, error) {
	body := simplejson.New()
	body.SetPath([]string{"os-getConsoleOutput", "length"}, nil)

	p, err := api.compute(ctx, "POST", id, "action", body)
	if err != nil || p.Empty() {
		return "", err
	}
	return p.JSON.Get("output").MustString(), nil
}

func (api *novaAPI) firewalls(ctx gocontext.Context, id string) ([]string, error) {
	p, err := api.compute(ctx, "GET", id, novaServerSecurityGroupSuffix, nil)
	if err != nil || p.Empty() {
		return nil, err
	}

	ids := []string{}
	groups := p.JSON.Get("security_groups")
	entries, _ := groups.Array()
	for i := range entries {
		group := groups.GetIndex(i)
		id := group.Get("id").MustString()
		if id == "" {
			// nova-network reports integer ids
			if n, err := group.Get("id").Int64(); err == nil {
				id = strconv.FormatInt(n, 10)
			}
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (api *novaAPI) password(ctx gocontext.Context, id string) (string, error) {
	p, err := api.compute(ctx, "GET", id, novaServerPasswordSuffix, nil)
	if err != nil {
		return "", err
	}
	return api.s.Translator.Password(ctx, p)
}

func (api *novaAPI) ping(ctx gocontext.Context) error {
	_, err := api.do(ctx, &request.Call{
		Service:  auth.ServiceCompute,
		Method:   "GET",
		Resource: novaServersResource,
		Query:    url.Values{"limit": {"1"}},
	})
	return err
}

func (api *novaAPI) createVlan(ctx gocontext.Context, cidr string, md *translate.VLANMetadata) (*resource.VLAN, error) {
	metadata := map[string]interface{}{}
	for key, value := range md.Encode() {
		metadata[key] = value
	}

	body := simplejson.New()
	body.SetPath([]string{"network", "cidr"}, cidr)
	body.SetPath([]string{"network", "metadata"}, metadata)
	if api.s.rackspace {
		body.SetPath([]string{"network", "label"}, md.Name)
	} else {
		body.SetPath([]string{"network", "name"}, md.Name)
		body.SetPath([]string{"network", "admin_state_up"}, true)
	}

	p, err := api.network(ctx, "POST", "", body)
	if err != nil {
		return nil, err
	}

	vlans, err := api.s.Translator.VLANs(ctx, api.s.translateScope(), p)
	if err != nil {
		return nil, err
	}
	if len(vlans) == 0 {
		return nil, adaptererrors.NewTranslationFault("network create returned no network")
	}
	return vlans[0], nil
}

func (api *novaAPI) getVlan(ctx gocontext.Context, id string) (*resource.VLAN, error) {
	if translate.IsReservedNetwork(id) {
		return nil, nil
	}

	p, err := api.network(ctx, "GET", id, nil)
	if err != nil {
		return nil, err
	}
	vlans, err := api.s.Translator.VLANs(ctx, api.s.translateScope(), p)
	if err != nil || len(vlans) == 0 {
		return nil, err
	}
	return vlans[0], nil
}

func (api *novaAPI) listVlans(ctx gocontext.Context) ([]*resource.VLAN, error) {
	p, err := api.network(ctx, "GET", "", nil)
	if err != nil {
		return nil, err
	}
	return api.s.Translator.VLANs(ctx, api.s.translateScope(), p)
}

func (api *novaAPI) removeVlan(ctx gocontext.Context, id string) error {
	_, err := api.network(ctx, "DELETE", id, nil)
	return err
}

func (api *novaAPI) createSubnet(ctx gocontext.Context, vlanID, cidr string, ipVersion resource.IPVersion, md *translate.VLANMetadata) (*resource.Subnet, error) {
	version := 4
	if ipVersion == resource.IPv6 {
		version = 6
	}

	body := simplejson.New()
	body.SetPath([]string{"subnet", "network_id"}, vlanID)
	body.SetPath([]string{"subnet", "cidr"}, cidr)
	body.SetPath([]string{"subnet", "ip_version"}, version)
	if md.Name != "" {
		body.SetPath([]string{"subnet", "name"}, md.Name)
	}
	metadata := map[string]interface{}{}
	for key, value := range md.Encode() {
		metadata[key] = value
	}
	body.SetPath([]string{"subnet", "metadata"}, metadata)

	p, err := api.subnets(ctx, "POST", "", nil, body)
	if err != nil {
		return nil, err
	}

	subnets, err := api.s.Translator.Subnets(ctx, api.s.translateScope(), p)
	if err != nil {
		return nil, err
	}
	if len(subnets) == 0 {
		return nil, adaptererrors.NewTranslationFault("subnet create returned no subnet")
	}

	// some deployments don't echo metadata on create
	if md.Description != "" {
		subnets[0].Description = md.Description
	}
	return subnets[0], nil
}

func (api *novaAPI) getSubnet(ctx gocontext.Context, id string) (*resource.Subnet, error) {
	p, err := api.subnets(ctx, "GET", id, nil, nil)
	if err != nil {
		return nil, err
	}
	subnets, err := api.s.Translator.Subnets(ctx, api.s.translateScope(), p)
	if err != nil || len(subnets) == 0 {
		return nil, err
	}
	return subnets[0], nil
}

func (api *novaAPI) listSubnets(ctx gocontext.Context, vlanID string) ([]*resource.Subnet, error) {
	p, err := api.subnets(ctx, "GET", "", url.Values{"network_id": {vlanID}}, nil)
	if err != nil {
		return nil, err
	}
	return api.s.Translator.Subnets(ctx, api.s.translateScope(), p)
}

func (api *novaAPI) removeSubnet(ctx gocontext.Context, id string) error {
	_, err := api.subnets(ctx, "DELETE", id, nil, nil)
	return err
}

func (api *novaAPI) createPort(ctx gocontext.Context, vlanID, subnetID, name string) (string, error) {
	if api.s.rackspace {
		return "", adaptererrors.NewNotSupportedFault("ports are not supported on Rackspace")
	}

	body := simplejson.New()
	body.SetPath([]string{"port", "network_id"}, vlanID)
	body.SetPath([]string{"port", "name"}, name)
	if subnetID != "" {
		body.SetPath([]string{"port", "fixed_ips"}, []map[string]string{{"subnet_id": subnetID}})
	}

	raw, err := encodeBody(body)
	if err != nil {
		return "", err
	}

	p, err := api.do(ctx, &request.Call{
		Service:  auth.ServiceNetwork,
		Method:   "POST",
		Resource: novaPortsResource,
		Body:     raw,
	})
	if err != nil {
		return "", err
	}
	if p.Empty() {
		return "", adaptererrors.NewTranslationFault("port create returned no port")
	}

	id := p.JSON.Get("port").Get("id").MustString()
	if id == "" {
		return "", adaptererrors.NewTranslationFault("port create returned no port id")
	}
	return id, nil
}
