package translate

import (
	"testing"
	"time"

	gocontext "context"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travis-ci/cloudadapter/catalog"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/wire"
)

type fakeHostResolver struct {
	addrs map[string][]string
}

func (fr *fakeHostResolver) LookupHost(ctx gocontext.Context, host string) ([]string, error) {
	if addrs, ok := fr.addrs[host]; ok {
		return addrs, nil
	}
	return nil, errors.Errorf("no such host: %s", host)
}

func testScope() *Scope {
	return &Scope{
		Region:   "nova",
		Owner:    "demo",
		Products: catalog.Builtin(),
		Resolver: &fakeHostResolver{addrs: map[string][]string{}},
	}
}

func mustXML(t *testing.T, body string) *wire.Payload {
	p, err := wire.Decode(wire.FormatXML, 200, []byte(body))
	require.Nil(t, err)
	return p
}

const describeInstances = `<?xml version="1.0" encoding="UTF-8"?>
<DescribeInstancesResponse xmlns="http://ec2.amazonaws.com/doc/2009-11-30/">
  <requestId>req-1</requestId>
  <reservationSet>
    <item>
      <reservationId>r-1</reservationId>
      <ownerId>demo</ownerId>
      <instancesSet>
        <item>
          <instanceId>i-00000001</instanceId>
          <imageId>ami-00000002</imageId>
          <instanceState><code>32</code><name>shutting-down</name></instanceState>
          <privateDnsName>ip-10-0-0-5.nova.internal</privateDnsName>
          <dnsName>ec2-203-0-113-9.compute.example.com</dnsName>
          <instanceType>m1.small</instanceType>
          <launchTime>2013-05-01T12:00:00.000Z</launchTime>
          <placement><availabilityZone>nova-az1</availabilityZone></placement>
          <rootDeviceType>ebs</rootDeviceType>
          <tagSet>
            <item><key>NAME</key><value>builder</value></item>
            <item><key>team</key><value>infra</value></item>
          </tagSet>
        </item>
        <item>
          <instanceId></instanceId>
          <instanceId>i-00000002</instanceId>
          <instanceState><name>hibernating</name></instanceState>
          <privateIpAddress>10.1.1.1</privateIpAddress>
          <privateDnsName>ip-10-9-9-9.nova.internal</privateDnsName>
          <ipAddress>198.51.100.7</ipAddress>
          <instanceType>m1.large</instanceType>
          <platform>windows</platform>
          <placement></placement>
        </item>
        <item>
          <imageId>ami-orphan</imageId>
        </item>
      </instancesSet>
    </item>
  </reservationSet>
</DescribeInstancesResponse>`

func TestEC2_VirtualMachines(t *testing.T) {
	vms, err := (&EC2{}).VirtualMachines(gocontext.TODO(), testScope(), mustXML(t, describeInstances))
	require.Nil(t, err)
	require.Len(t, vms, 2)

	vm := vms[0]
	assert.Equal(t, "i-00000001", vm.ID)
	assert.Equal(t, "demo", vm.OwnerID)
	assert.Equal(t, "nova", vm.RegionID)
	assert.Equal(t, "nova-az1", vm.DataCenterID)
	assert.Equal(t, "ami-00000002", vm.ImageID)
	assert.Equal(t, resource.VmStateStopping, vm.State)
	assert.Equal(t, []string{"10.0.0.5"}, vm.PrivateAddresses)
	assert.Equal(t, []string{"203.0.113.9"}, vm.PublicAddresses)
	assert.Equal(t, "builder", vm.Name)
	assert.Equal(t, "builder (Small Instance (m1.small))", vm.Description)
	assert.Equal(t, map[string]string{"team": "infra"}, vm.Tags)
	assert.Equal(t, resource.ArchitectureI32, vm.Architecture)
	assert.Equal(t, resource.PlatformUnknown, vm.Platform)
	assert.True(t, vm.Persistent)
	assert.Equal(t, time.Date(2013, 5, 1, 12, 0, 0, 0, time.UTC), vm.CreationTime)
	assert.Equal(t, vm.CreationTime, vm.LastBootTime)

	vm = vms[1]
	assert.Equal(t, "i-00000002", vm.ID)
	assert.Equal(t, resource.VmStatePending, vm.State)
	assert.Equal(t, resource.UnknownZone, vm.DataCenterID)
	assert.False(t, vm.ZoneAssigned())
	assert.Equal(t, []string{"10.1.1.1"}, vm.PrivateAddresses)
	assert.Equal(t, []string{"198.51.100.7"}, vm.PublicAddresses)
	assert.Equal(t, "i-00000002", vm.Name)
	assert.Equal(t, resource.ArchitectureI64, vm.Architecture)
	assert.Equal(t, resource.PlatformWindows, vm.Platform)
	assert.False(t, vm.Persistent)
}

func TestEC2_VirtualMachines_RunInstances(t *testing.T) {
	body := `<RunInstancesResponse>
  <reservationId>r-2</reservationId>
  <instancesSet>
    <item>
      <instanceId>i-00000003</instanceId>
      <instanceState><name>pending</name></instanceState>
      <instanceType>m1.unheardof</instanceType>
    </item>
  </instancesSet>
</RunInstancesResponse>`

	vms, err := (&EC2{}).VirtualMachines(gocontext.TODO(), testScope(), mustXML(t, body))
	require.Nil(t, err)
	require.Len(t, vms, 1)
	assert.Nil(t, vms[0].Product)
	assert.Equal(t, "i-00000003 (unknown)", vms[0].Description)
	assert.Equal(t, resource.ArchitectureI64, vms[0].Architecture)
	assert.Equal(t, resource.UnknownZone, vms[0].DataCenterID)
}

func TestEC2_VirtualMachines_ArchitectureWithoutCatalog(t *testing.T) {
	scope := testScope()
	scope.Products = nil

	vms, err := (&EC2{}).VirtualMachines(gocontext.TODO(), scope, mustXML(t, describeInstances))
	require.Nil(t, err)
	require.Len(t, vms, 2)
	assert.Nil(t, vms[0].Product)
	assert.Equal(t, resource.ArchitectureI32, vms[0].Architecture)
	assert.Equal(t, resource.ArchitectureI64, vms[1].Architecture)
}

func TestEC2_VirtualMachines_PublicDNSResolution(t *testing.T) {
	scope := testScope()
	scope.Resolver = &fakeHostResolver{addrs: map[string][]string{
		"ec2-203-0-113-9.compute.example.com": {"192.0.2.44"},
	}}

	vms, err := (&EC2{}).VirtualMachines(gocontext.TODO(), scope, mustXML(t, describeInstances))
	require.Nil(t, err)
	assert.Equal(t, []string{"192.0.2.44"}, vms[0].PublicAddresses)
}

func TestEC2_EmptyAndWrongPayloads(t *testing.T) {
	vms, err := (&EC2{}).VirtualMachines(gocontext.TODO(), testScope(), &wire.Payload{Format: wire.FormatXML})
	assert.Nil(t, err)
	assert.Nil(t, vms)

	vms, err = (&EC2{}).VirtualMachines(gocontext.TODO(), testScope(), mustXML(t, `<DescribeInstancesResponse/>`))
	assert.Nil(t, err)
	assert.Len(t, vms, 0)

	js, err := wire.Decode(wire.FormatJSON, 200, []byte(`{"servers": []}`))
	require.Nil(t, err)
	_, err = (&EC2{}).VirtualMachines(gocontext.TODO(), testScope(), js)
	assert.True(t, adaptererrors.IsTranslation(err))
}

func TestEC2_VLANs(t *testing.T) {
	body := `<DescribeVpcsResponse>
  <vpcSet>
    <item>
      <vpcId>vpc-1</vpcId>
      <state>available</state>
      <cidrBlock>10.0.0.0/16</cidrBlock>
      <tagSet>
        <item><key>Name</key><value>build</value></item>
        <item><key>org.dasein.domain</key><value>example.com</value></item>
        <item><key>org.dasein.dns.2</key><value>8.8.4.4</value></item>
        <item><key>org.dasein.dns.1</key><value>8.8.8.8</value></item>
        <item><key>org.dasein.ntp.x</key><value>ignored</value></item>
        <item><key>env</key><value>prod</value></item>
      </tagSet>
    </item>
    <item>
      <vpcId>vpc-2</vpcId>
      <state>pending</state>
    </item>
  </vpcSet>
</DescribeVpcsResponse>`

	vlans, err := (&EC2{}).VLANs(gocontext.TODO(), testScope(), mustXML(t, body))
	require.Nil(t, err)
	require.Len(t, vlans, 2)

	assert.Equal(t, "vpc-1", vlans[0].ID)
	assert.Equal(t, "build", vlans[0].Name)
	assert.Equal(t, "build", vlans[0].Description)
	assert.Equal(t, "example.com", vlans[0].DomainName)
	assert.Equal(t, []string{"8.8.8.8", "8.8.4.4"}, vlans[0].DNSServers)
	assert.Equal(t, []string{}, vlans[0].NTPServers)
	assert.Equal(t, map[string]string{"env": "prod"}, vlans[0].Tags)
	assert.Equal(t, resource.VLANStateAvailable, vlans[0].State)

	assert.Equal(t, "0.0.0.0/0", vlans[1].CIDR)
	assert.Equal(t, "vpc-2", vlans[1].Name)
	assert.Equal(t, resource.VLANStatePending, vlans[1].State)
}

func TestEC2_Subnets(t *testing.T) {
	body := `<CreateSubnetResponse>
  <subnet>
    <subnetId>subnet-1</subnetId>
    <state>pending</state>
    <vpcId>vpc-1</vpcId>
    <cidrBlock>10.0.1.0/24</cidrBlock>
  </subnet>
</CreateSubnetResponse>`

	subnets, err := (&EC2{}).Subnets(gocontext.TODO(), testScope(), mustXML(t, body))
	require.Nil(t, err)
	require.Len(t, subnets, 1)
	assert.Equal(t, "vpc-1", subnets[0].VlanID)
	assert.Equal(t, "subnet-1 - 10.0.1.0/24", subnets[0].Name)
	assert.Equal(t, subnets[0].Name, subnets[0].Description)
	assert.Equal(t, resource.SubnetStatePending, subnets[0].State)
}

func TestEC2_Password(t *testing.T) {
	body := `<GetPasswordDataResponse><requestId>r</requestId><instanceId>i-1</instanceId><timestamp>2013-05-01T12:00:00Z</timestamp><passwordData>c2VjcmV0</passwordData></GetPasswordDataResponse>`

	password, err := (&EC2{}).Password(gocontext.TODO(), mustXML(t, body))
	require.Nil(t, err)
	assert.Equal(t, "c2VjcmV0", password)

	password, err = (&EC2{}).Password(gocontext.TODO(), mustXML(t, `<GetPasswordDataResponse><passwordData/></GetPasswordDataResponse>`))
	require.Nil(t, err)
	assert.Equal(t, "", password)
}

func TestFor(t *testing.T) {
	tr, err := For(DialectEC2)
	require.Nil(t, err)
	assert.Equal(t, DialectEC2, tr.Dialect())

	tr, err = For(DialectNova)
	require.Nil(t, err)
	assert.Equal(t, DialectNova, tr.Dialect())

	_, err = For("gce")
	assert.True(t, adaptererrors.IsConfiguration(err))
}
