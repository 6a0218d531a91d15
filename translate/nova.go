package translate

import (
	"fmt"
	"net"
	"strings"

	gocontext "context"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/wire"
)

// reservedNetworks are the public and service networks every Rackspace
// tenant sees. They are not the tenant's VLANs.
var reservedNetworks = map[string]bool{
	"00000000-0000-0000-0000-000000000000": true,
	"11111111-1111-1111-1111-111111111111": true,
}

// IsReservedNetwork reports whether id is one of the provider's shared
// networks.
func IsReservedNetwork(id string) bool {
	return reservedNetworks[id]
}

// Nova translates the OpenStack compute and network JSON dialect.
type Nova struct{}

func (t *Nova) Dialect() Dialect { return DialectNova }

func (t *Nova) VirtualMachines(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.VirtualMachine, error) {
	if err := expectJSON(p); err != nil || p.Empty() {
		return nil, err
	}

	vms := []*resource.VirtualMachine{}
	for _, server := range envelope(p.JSON, "server", "servers") {
		if vm := t.virtualMachine(ctx, scope, server); vm != nil {
			vms = append(vms, vm)
		}
	}
	return vms, nil
}

func (t *Nova) virtualMachine(ctx gocontext.Context, scope *Scope, server *simplejson.Json) *resource.VirtualMachine {
	id := stringValue(server.Get("id"))
	if id == "" {
		context.LoggerFromContext(ctx).WithField("self", "translate/nova").Debug("dropping server without id")
		return nil
	}

	owner := stringValue(server.Get("tenant_id"))
	if owner == "" {
		owner = scope.Owner
	}

	vm := &resource.VirtualMachine{
		ID:           id,
		OwnerID:      owner,
		RegionID:     scope.Region,
		DataCenterID: stringValue(server.Get("OS-EXT-AZ:availability_zone")),
		ImageID:      stringValue(server.Get("image").Get("id")),
		Name:         stringValue(server.Get("name")),
		State:        NovaState(ctx, stringValue(server.Get("status"))),
		Persistent:   true,
		Tags:         map[string]string{},
	}

	if vm.DataCenterID == "" {
		vm.DataCenterID = scope.Region
	}

	for key, value := range stringMap(server.Get("metadata")) {
		switch {
		case strings.EqualFold(key, "name"):
			if vm.Name == "" {
				vm.Name = value
			}
		case strings.EqualFold(key, "description"):
			vm.Description = value
		case strings.EqualFold(key, "platform"):
			vm.Platform = resource.GuessPlatform(value)
			vm.Tags[key] = value
		default:
			vm.Tags[key] = value
		}
	}

	if productID := stringValue(server.Get("flavor").Get("id")); productID != "" {
		vm.Product = scope.product(productID)
		vm.Architecture = resource.ArchitectureForProduct(productID)
	}

	t.addresses(server, vm)

	vm.CreationTime = parseTime(ctx, stringValue(server.Get("created")))
	vm.LastBootTime = vm.CreationTime
	if launched := parseTime(ctx, stringValue(server.Get("OS-SRV-USG:launched_at"))); !launched.IsZero() {
		vm.LastBootTime = launched
	}

	if pass := stringValue(server.Get("adminPass")); pass != "" {
		vm.Password = resource.PasswordReadyResult(pass)
	}

	finishVirtualMachine(vm)
	return vm
}

// addresses sorts server addresses into private and public. Explicit
// fixed/floating types win over the network label, which wins over the
// address range.
func (t *Nova) addresses(server *simplejson.Json, vm *resource.VirtualMachine) {
	networks, _ := server.Get("addresses").Map()
	for label := range networks {
		list := server.Get("addresses").Get(label)
		entries, _ := list.Array()
		for i := range entries {
			entry := list.GetIndex(i)
			addr := stringValue(entry.Get("addr"))
			if addr == "" {
				continue
			}

			var public bool
			switch stringValue(entry.Get("OS-EXT-IPS:type")) {
			case "floating":
				public = true
			case "fixed":
				public = false
			default:
				switch strings.ToLower(label) {
				case "public":
					public = true
				case "private":
					public = false
				default:
					ip := net.ParseIP(addr)
					public = ip != nil && !ip.IsPrivate() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast()
				}
			}

			if public {
				vm.PublicAddresses = appendUnique(vm.PublicAddresses, addr)
			} else {
				vm.PrivateAddresses = appendUnique(vm.PrivateAddresses, addr)
			}
		}
	}

	if len(vm.PublicAddresses) == 0 {
		for _, key := range []string{"accessIPv4", "accessIPv6"} {
			if addr := stringValue(server.Get(key)); addr != "" {
				vm.PublicAddresses = appendUnique(vm.PublicAddresses, addr)
			}
		}
	}
}

func (t *Nova) VLANs(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.VLAN, error) {
	if err := expectJSON(p); err != nil || p.Empty() {
		return nil, err
	}

	vlans := []*resource.VLAN{}
	for _, network := range envelope(p.JSON, "network", "networks") {
		id := stringValue(network.Get("id"))
		if id == "" || IsReservedNetwork(id) {
			continue
		}

		owner := stringValue(network.Get("tenant_id"))
		if owner == "" {
			owner = scope.Owner
		}

		md, tags := DecodeVLANMetadata(stringMap(network.Get("metadata")))

		name := stringValue(network.Get("name"))
		if name == "" {
			name = stringValue(network.Get("label"))
		}
		if name == "" {
			name = md.Name
		}

		vlan := &resource.VLAN{
			ID:          id,
			OwnerID:     owner,
			RegionID:    scope.Region,
			CIDR:        stringValue(network.Get("cidr")),
			Name:        name,
			Description: md.Description,
			State:       VLANState(ctx, stringValue(network.Get("status"))),
			DomainName:  md.Domain,
			DNSServers:  md.DNSServers,
			NTPServers:  md.NTPServers,
			Tags:        tags,
		}
		finishVLAN(vlan)
		vlans = append(vlans, vlan)
	}
	return vlans, nil
}

func (t *Nova) Subnets(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.Subnet, error) {
	if err := expectJSON(p); err != nil || p.Empty() {
		return nil, err
	}

	subnets := []*resource.Subnet{}
	for _, js := range envelope(p.JSON, "subnet", "subnets") {
		id := stringValue(js.Get("id"))
		vlanID := stringValue(js.Get("network_id"))
		if id == "" || vlanID == "" {
			context.LoggerFromContext(ctx).WithFields(logrus.Fields{
				"self":      "translate/nova",
				"subnet_id": id,
			}).Debug("dropping subnet without id or network")
			continue
		}

		owner := stringValue(js.Get("tenant_id"))
		if owner == "" {
			owner = scope.Owner
		}

		md, tags := DecodeVLANMetadata(stringMap(js.Get("metadata")))

		name := stringValue(js.Get("name"))
		if name == "" {
			name = md.Name
		}
		description := stringValue(js.Get("description"))
		if description == "" {
			description = md.Description
		}
		cidr := stringValue(js.Get("cidr"))
		if cidr == "" {
			cidr = scope.vlanCIDR(ctx, vlanID)
		}

		subnet := &resource.Subnet{
			ID:          id,
			VlanID:      vlanID,
			OwnerID:     owner,
			RegionID:    scope.Region,
			CIDR:        cidr,
			Name:        name,
			Description: description,
			State:       resource.SubnetStateAvailable,
			IPVersion:   resource.IPv4,
			Tags:        tags,
		}
		if stringValue(js.Get("ip_version")) == "6" {
			subnet.IPVersion = resource.IPv6
		}
		finishSubnet(subnet)
		subnets = append(subnets, subnet)
	}
	return subnets, nil
}

func (t *Nova) Password(ctx gocontext.Context, p *wire.Payload) (string, error) {
	if err := expectJSON(p); err != nil || p.Empty() {
		return "", err
	}
	return stringValue(p.JSON.Get("password")), nil
}

// envelope unwraps {"server": {...}} or {"servers": [...]}.
func envelope(js *simplejson.Json, single, plural string) []*simplejson.Json {
	if one, ok := js.CheckGet(single); ok {
		return []*simplejson.Json{one}
	}

	list, ok := js.CheckGet(plural)
	if !ok {
		return nil
	}

	entries, err := list.Array()
	if err != nil {
		return nil
	}

	out := make([]*simplejson.Json, 0, len(entries))
	for i := range entries {
		out = append(out, list.GetIndex(i))
	}
	return out
}

// stringValue renders scalars as strings; missing values, null, objects and
// arrays are "".
func stringValue(js *simplejson.Json) string {
	switch v := js.Interface().(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func stringMap(js *simplejson.Json) map[string]string {
	m, err := js.Map()
	if err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for key := range m {
		out[key] = stringValue(js.Get(key))
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
