package translate

import (
	"strings"

	gocontext "context"

	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/wire"
)

// EC2 translates the XML query dialect.
type EC2 struct{}

func (t *EC2) Dialect() Dialect { return DialectEC2 }

func (t *EC2) VirtualMachines(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.VirtualMachine, error) {
	root, err := expectXML(p)
	if err != nil || root == nil {
		return nil, err
	}

	vms := []*resource.VirtualMachine{}
	for _, item := range setItems(root, "instancesSet") {
		if vm := t.virtualMachine(ctx, scope, item); vm != nil {
			vms = append(vms, vm)
		}
	}
	return vms, nil
}

func (t *EC2) virtualMachine(ctx gocontext.Context, scope *Scope, item *wire.Node) *resource.VirtualMachine {
	id := item.ChildText("instanceId")
	if id == "" {
		context.LoggerFromContext(ctx).WithField("self", "translate/ec2").Debug("dropping instance without id")
		return nil
	}

	vm := &resource.VirtualMachine{
		ID:           id,
		OwnerID:      scope.Owner,
		RegionID:     scope.Region,
		DataCenterID: item.PathText("placement", "availabilityZone"),
		ImageID:      item.ChildText("imageId"),
		VlanID:       item.ChildText("vpcId"),
		State:        EC2State(ctx, item.PathText("instanceState", "name")),
		Persistent:   strings.EqualFold(item.ChildText("rootDeviceType"), "ebs"),
		Tags:         map[string]string{},
	}

	if vm.DataCenterID == "" {
		vm.DataCenterID = resource.UnknownZone
	}

	if addr := item.ChildText("privateIpAddress"); addr != "" {
		vm.PrivateAddresses = []string{addr}
	}
	if addr := item.ChildText("ipAddress"); addr != "" {
		vm.PublicAddresses = []string{addr}
	}

	vm.PrivateDNSName = item.ChildText("privateDnsName")
	if vm.PrivateDNSName != "" && len(vm.PrivateAddresses) == 0 {
		if addr := GuessPrivateAddress(vm.PrivateDNSName); addr != "" {
			vm.PrivateAddresses = []string{addr}
		}
	}

	vm.PublicDNSName = item.ChildText("dnsName")
	if vm.PublicDNSName != "" && len(vm.PublicAddresses) == 0 {
		if addr := ResolvePublicAddress(ctx, scope.Resolver, vm.PublicDNSName); addr != "" {
			vm.PublicAddresses = []string{addr}
		}
	}

	for _, tag := range item.All("tagSet", "item") {
		key := tag.ChildText("key")
		if key == "" {
			continue
		}
		value := tag.ChildText("value")
		switch {
		case strings.EqualFold(key, "name"):
			vm.Name = value
		case strings.EqualFold(key, "description"):
			vm.Description = value
		default:
			vm.Tags[key] = value
		}
	}

	if productID := item.ChildText("instanceType"); productID != "" {
		vm.Product = scope.product(productID)
		vm.Architecture = resource.ArchitectureForProduct(productID)
	}

	if launched := parseTime(ctx, item.ChildText("launchTime")); !launched.IsZero() {
		vm.CreationTime = launched
		vm.LastBootTime = launched
	}

	if platform := item.ChildText("platform"); platform != "" {
		vm.Platform = resource.GuessPlatform(platform)
	}

	finishVirtualMachine(vm)
	return vm
}

func (t *EC2) VLANs(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.VLAN, error) {
	root, err := expectXML(p)
	if err != nil || root == nil {
		return nil, err
	}

	items := setItems(root, "vpcSet")
	if single := root.Find("vpc"); single != nil {
		items = append(items, single)
	}

	vlans := []*resource.VLAN{}
	for _, item := range items {
		id := item.ChildText("vpcId")
		if id == "" {
			continue
		}

		md, tags := DecodeVLANMetadata(tagSet(item))
		if name, ok := popFold(tags, "name"); ok && md.Name == "" {
			md.Name = name
		}

		vlan := &resource.VLAN{
			ID:          id,
			OwnerID:     scope.Owner,
			RegionID:    scope.Region,
			CIDR:        item.ChildText("cidrBlock"),
			Name:        md.Name,
			Description: md.Description,
			State:       VLANState(ctx, item.ChildText("state")),
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

func (t *EC2) Subnets(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.Subnet, error) {
	root, err := expectXML(p)
	if err != nil || root == nil {
		return nil, err
	}

	items := setItems(root, "subnetSet")
	if single := root.Find("subnet"); single != nil {
		items = append(items, single)
	}

	subnets := []*resource.Subnet{}
	for _, item := range items {
		id := item.ChildText("subnetId")
		vlanID := item.ChildText("vpcId")
		if id == "" || vlanID == "" {
			context.LoggerFromContext(ctx).WithFields(logrus.Fields{
				"self":      "translate/ec2",
				"subnet_id": id,
			}).Debug("dropping subnet without id or vpc")
			continue
		}

		md, tags := DecodeVLANMetadata(tagSet(item))
		if name, ok := popFold(tags, "name"); ok && md.Name == "" {
			md.Name = name
		}

		subnet := &resource.Subnet{
			ID:          id,
			VlanID:      vlanID,
			OwnerID:     scope.Owner,
			RegionID:    scope.Region,
			CIDR:        item.ChildText("cidrBlock"),
			Name:        md.Name,
			Description: md.Description,
			State:       SubnetState(item.ChildText("state")),
			IPVersion:   resource.IPv4,
			Tags:        tags,
		}
		finishSubnet(subnet)
		subnets = append(subnets, subnet)
	}
	return subnets, nil
}

func (t *EC2) Password(ctx gocontext.Context, p *wire.Payload) (string, error) {
	root, err := expectXML(p)
	if err != nil || root == nil {
		return "", err
	}
	return root.Find("passwordData").Text(), nil
}

// setItems returns the items of every element named set, wherever it is
// nested (RunInstances has one, DescribeInstances one per reservation).
func setItems(root *wire.Node, set string) []*wire.Node {
	var items []*wire.Node
	var walk func(n *wire.Node)
	walk = func(n *wire.Node) {
		if n.Name() == set {
			items = append(items, n.ChildrenNamed("item")...)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return items
}

func tagSet(item *wire.Node) map[string]string {
	tags := map[string]string{}
	for _, tag := range item.All("tagSet", "item") {
		if key := tag.ChildText("key"); key != "" {
			tags[key] = tag.ChildText("value")
		}
	}
	return tags
}

// popFold removes key from tags, ignoring case, and returns its value.
func popFold(tags map[string]string, key string) (string, bool) {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			delete(tags, k)
			return v, true
		}
	}
	return "", false
}

func finishVLAN(vlan *resource.VLAN) {
	if vlan.Name == "" {
		vlan.Name = vlan.CIDR
	}
	if vlan.Name == "" {
		vlan.Name = vlan.ID
	}
	if vlan.CIDR == "" {
		vlan.CIDR = "0.0.0.0/0"
	}
	if vlan.Description == "" {
		vlan.Description = vlan.Name
	}
	if vlan.DNSServers == nil {
		vlan.DNSServers = []string{}
	}
	if vlan.NTPServers == nil {
		vlan.NTPServers = []string{}
	}
	if vlan.Tags == nil {
		vlan.Tags = map[string]string{}
	}
}

func finishSubnet(subnet *resource.Subnet) {
	if subnet.Name == "" {
		subnet.Name = subnet.ID + " - " + subnet.CIDR
	}
	if subnet.Description == "" {
		subnet.Description = subnet.Name
	}
	if subnet.IPVersion == "" {
		subnet.IPVersion = resource.IPv4
	}
	if subnet.Tags == nil {
		subnet.Tags = map[string]string{}
	}
}
