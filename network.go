package cloudadapter

import (
	"net"

	gocontext "context"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/translate"
)

// VLANOptions are the settings of a new VLAN. Everything but the CIDR and
// name is kept in provider metadata.
type VLANOptions struct {
	CIDR        string
	Name        string
	Description string
	Domain      string
	DNSServers  []string
	NTPServers  []string
}

func (s *Session) CreateVlan(ctx gocontext.Context, opts *VLANOptions) (*resource.VLAN, error) {
	ctx = s.opContext(ctx, "create_vlan")

	if _, _, err := net.ParseCIDR(opts.CIDR); err != nil {
		return nil, adaptererrors.NewConfigurationFault("invalid VLAN CIDR %q", opts.CIDR)
	}

	md := &translate.VLANMetadata{
		Name:        opts.Name,
		Description: opts.Description,
		Domain:      opts.Domain,
		DNSServers:  opts.DNSServers,
		NTPServers:  opts.NTPServers,
	}

	vlan, err := s.api.createVlan(ctx, opts.CIDR, md)
	if err != nil {
		return nil, err
	}

	context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self": "session/network",
		"vlan": vlan.ID,
		"cidr": vlan.CIDR,
	}).Info("created vlan")
	return vlan, nil
}

// GetVlan returns the VLAN with the given id, or nil when there is none.
func (s *Session) GetVlan(ctx gocontext.Context, id string) (*resource.VLAN, error) {
	vlan, err := s.api.getVlan(s.opContext(ctx, "get_vlan"), id)
	if adaptererrors.IsNotFound(err) {
		return nil, nil
	}
	return vlan, err
}

func (s *Session) ListVlans(ctx gocontext.Context) ([]*resource.VLAN, error) {
	return s.api.listVlans(s.opContext(ctx, "list_vlans"))
}

func (s *Session) ListVlanStatus(ctx gocontext.Context) ([]resource.ResourceStatus, error) {
	vlans, err := s.ListVlans(ctx)
	if err != nil {
		return nil, err
	}

	status := []resource.ResourceStatus{}
	for _, vlan := range vlans {
		status = append(status, resource.ResourceStatus{ID: vlan.ID, State: string(vlan.State)})
	}
	return status, nil
}

func (s *Session) RemoveVlan(ctx gocontext.Context, id string) error {
	if translate.IsReservedNetwork(id) {
		return adaptererrors.NewNotSupportedFault("network %s is reserved", id)
	}
	return s.api.removeVlan(s.opContext(ctx, "remove_vlan"), id)
}

// SubnetOptions are the settings of a new subnet.
type SubnetOptions struct {
	VlanID      string
	CIDR        string
	Name        string
	Description string
}

// CreateSubnet creates a subnet whose CIDR must lie inside the CIDR of its
// VLAN.
func (s *Session) CreateSubnet(ctx gocontext.Context, opts *SubnetOptions) (*resource.Subnet, error) {
	ctx = s.opContext(ctx, "create_subnet")

	if s.rackspace {
		return nil, adaptererrors.NewNotSupportedFault("subnets are not supported on Rackspace")
	}

	ip, subnet, err := net.ParseCIDR(opts.CIDR)
	if err != nil {
		return nil, adaptererrors.NewConfigurationFault("invalid subnet CIDR %q", opts.CIDR)
	}

	vlan, err := s.GetVlan(ctx, opts.VlanID)
	if err != nil {
		return nil, err
	}
	if vlan == nil {
		return nil, adaptererrors.NewConfigurationFault("no such vlan %q", opts.VlanID)
	}

	if err := cidrContains(vlan.CIDR, subnet); err != nil {
		return nil, err
	}

	version := resource.IPv4
	if ip.To4() == nil {
		version = resource.IPv6
	}

	md := &translate.VLANMetadata{Name: opts.Name, Description: opts.Description}
	return s.api.createSubnet(ctx, opts.VlanID, opts.CIDR, version, md)
}

// cidrContains fails unless inner lies entirely inside outer.
func cidrContains(outer string, inner *net.IPNet) error {
	_, outerNet, err := net.ParseCIDR(outer)
	if err != nil {
		return adaptererrors.NewConfigurationFault("vlan has invalid CIDR %q", outer)
	}

	first, last := cidr.AddressRange(inner)
	if !outerNet.Contains(first) || !outerNet.Contains(last) {
		return adaptererrors.NewConfigurationFault("subnet %s is not inside vlan CIDR %s", inner, outer)
	}
	return nil
}

// GetSubnet returns the subnet with the given id, or nil when there is none.
func (s *Session) GetSubnet(ctx gocontext.Context, id string) (*resource.Subnet, error) {
	subnet, err := s.api.getSubnet(s.opContext(ctx, "get_subnet"), id)
	if adaptererrors.IsNotFound(err) {
		return nil, nil
	}
	return subnet, err
}

func (s *Session) ListSubnets(ctx gocontext.Context, vlanID string) ([]*resource.Subnet, error) {
	return s.api.listSubnets(s.opContext(ctx, "list_subnets"), vlanID)
}

func (s *Session) RemoveSubnet(ctx gocontext.Context, id string) error {
	return s.api.removeSubnet(s.opContext(ctx, "remove_subnet"), id)
}

// CreatePort creates a network port on a VLAN, optionally pinned to one of
// its subnets, and returns the port id.
func (s *Session) CreatePort(ctx gocontext.Context, vlanID, subnetID, name string) (string, error) {
	return s.api.createPort(s.opContext(ctx, "create_port"), vlanID, subnetID, name)
}

// sessionVLANs looks VLAN CIDRs up for subnets the provider returns without
// one.
type sessionVLANs struct {
	s *Session
}

func (v sessionVLANs) VlanCIDR(ctx gocontext.Context, vlanID string) (string, bool) {
	vlan, err := v.s.api.getVlan(ctx, vlanID)
	if err != nil || vlan == nil {
		context.LoggerFromContext(ctx).WithFields(logrus.Fields{
			"self": "session/network",
			"vlan": vlanID,
			"err":  err,
		}).Debug("couldn't look up vlan cidr")
		return "", false
	}
	return vlan.CIDR, true
}
