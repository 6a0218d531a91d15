package cloudadapter

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"

	gocontext "context"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"
	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/config"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/request"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/translate"
	"github.com/travis-ci/cloudadapter/wire"
)

const ec2APIVersion = "2013-02-01"

var (
	ec2Help = map[string]string{
		"ENDPOINT":          "[REQUIRED] EC2 query API endpoint, e.g. http://nova.example.com:8773/services/Cloud",
		"ACCESS_KEY_ID":     "[REQUIRED] access key id",
		"SECRET_ACCESS_KEY": "[REQUIRED] secret access key",
	}

	ec2VMActions = map[vmAction]string{
		vmActionBoot:      "StartInstances",
		vmActionPause:     "StopInstances",
		vmActionReboot:    "RebootInstances",
		vmActionTerminate: "TerminateInstances",
	}
)

func init() {
	registerDialect(&Dialect{
		Alias:             translate.DialectEC2,
		HumanReadableName: "EC2 query API",
		Help:              ec2Help,
		setup:             setupEC2,
	})
}

func setupEC2(s *Session, cfg *config.ProviderConfig) (auth.Acquirer, request.Authorizer, dialectAPI, error) {
	if !cfg.IsSet("ENDPOINT") {
		return nil, nil, nil, adaptererrors.NewConfigurationFault("missing ENDPOINT")
	}

	creds := credentials.NewStaticCredentials(cfg.Get("ACCESS_KEY_ID"), cfg.Get("SECRET_ACCESS_KEY"), "")

	acquirer := &auth.StaticAcquirer{
		Credentials: creds,
		Endpoints:   map[string]string{auth.ServiceEC2: cfg.Get("ENDPOINT")},
	}
	authorizer := &request.SignatureAuthorizer{
		Credentials: creds,
		Region:      s.Scope.Region,
	}

	return acquirer, authorizer, &ec2API{s: s}, nil
}

// ec2API speaks the form-encoded, signed EC2 query API.
type ec2API struct {
	s *Session
}

func (api *ec2API) call(ctx gocontext.Context, action string, params url.Values) (*wire.Payload, error) {
	form := url.Values{}
	for key, values := range params {
		form[key] = values
	}
	form.Set("Action", action)
	form.Set("Version", ec2APIVersion)

	return api.s.client.Execute(ctx, &request.Call{
		Service: auth.ServiceEC2,
		Method:  "POST",
		Format:  wire.FormatXML,
		Form:    form,
	})
}

func (api *ec2API) firstVM(ctx gocontext.Context, p *wire.Payload) (*resource.VirtualMachine, error) {
	vms, err := api.s.Translator.VirtualMachines(ctx, api.s.translateScope(), p)
	if err != nil || len(vms) == 0 {
		return nil, err
	}
	return vms[0], nil
}

func (api *ec2API) launch(ctx gocontext.Context, opts *LaunchOptions) (*resource.VirtualMachine, error) {
	params := url.Values{
		"ImageId":      {opts.ImageID},
		"MinCount":     {"1"},
		"MaxCount":     {"1"},
		"InstanceType": {opts.ProductID},
	}
	if opts.KeypairID != "" {
		params.Set("KeyName", opts.KeypairID)
	}
	if opts.DataCenterID != "" {
		params.Set("Placement.AvailabilityZone", opts.DataCenterID)
	}
	if opts.SubnetID != "" {
		params.Set("SubnetId", opts.SubnetID)
	}
	for i, id := range opts.FirewallIDs {
		params.Set(fmt.Sprintf("SecurityGroupId.%d", i+1), id)
	}

	p, err := api.call(ctx, "RunInstances", params)
	if err != nil {
		return nil, err
	}
	return api.firstVM(ctx, p)
}

func (api *ec2API) getVirtualMachine(ctx gocontext.Context, id string) (*resource.VirtualMachine, error) {
	p, err := api.call(ctx, "DescribeInstances", url.Values{"InstanceId.1": {id}})
	if err != nil {
		return nil, err
	}
	return api.firstVM(ctx, p)
}

func (api *ec2API) listVirtualMachines(ctx gocontext.Context) ([]*resource.VirtualMachine, error) {
	p, err := api.call(ctx, "DescribeInstances", nil)
	if err != nil {
		return nil, err
	}
	return api.s.Translator.VirtualMachines(ctx, api.s.translateScope(), p)
}

func (api *ec2API) applyTags(ctx gocontext.Context, id string, tags []resource.Tag) error {
	params := url.Values{"ResourceId.1": {id}}
	for i, tag := range tags {
		params.Set(fmt.Sprintf("Tag.%d.Key", i+1), tag.Key)
		params.Set(fmt.Sprintf("Tag.%d.Value", i+1), tag.Value)
	}

	_, err := api.call(ctx, "CreateTags", params)
	return err
}

func (api *ec2API) vmAction(ctx gocontext.Context, id string, action vmAction) error {
	_, err := api.call(ctx, ec2VMActions[action], url.Values{"InstanceId.1": {id}})
	return err
}

func (api *ec2API) consoleOutput(ctx gocontext.Context, id string) (string, error) {
	p, err := api.call(ctx, "GetConsoleOutput", url.Values{"InstanceId": {id}})
	if err != nil || p.Empty() {
		return "", err
	}

	encoded := p.XML.Find("output").Text()
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, "couldn't decode console output")
	}
	return string(decoded), nil
}

func (api *ec2API) firewalls(ctx gocontext.Context, id string) ([]string, error) {
	p, err := api.call(ctx, "DescribeInstances", url.Values{"InstanceId.1": {id}})
	if err != nil || p.Empty() {
		return nil, err
	}

	ids := []string{}
	seen := map[string]bool{}
	var walk func(n *wire.Node)
	walk = func(n *wire.Node) {
		if n.Name() == "groupSet" {
			for _, item := range n.ChildrenNamed("item") {
				if gid := item.ChildText("groupId"); gid != "" && !seen[gid] {
					seen[gid] = true
					ids = append(ids, gid)
				}
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p.XML)

	return ids, nil
}

func (api *ec2API) password(ctx gocontext.Context, id string) (string, error) {
	p, err := api.call(ctx, "GetPasswordData", url.Values{"InstanceId": {id}})
	if err != nil {
		return "", err
	}
	return api.s.Translator.Password(ctx, p)
}

func (api *ec2API) ping(ctx gocontext.Context) error {
	_, err := api.call(ctx, "DescribeAvailabilityZones", nil)
	return err
}

// metadataTags carries the VLAN metadata as tags, plus a plain Name tag so
// consoles show something sensible.
func (api *ec2API) metadataTags(md *translate.VLANMetadata) []resource.Tag {
	tags := []resource.Tag{}
	if md.Name != "" {
		tags = append(tags, resource.Tag{Key: "Name", Value: md.Name})
	}
	encoded := md.Encode()
	keys := make([]string, 0, len(encoded))
	for key := range encoded {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		tags = append(tags, resource.Tag{Key: key, Value: encoded[key]})
	}
	return tags
}

func (api *ec2API) createVlan(ctx gocontext.Context, cidr string, md *translate.VLANMetadata) (*resource.VLAN, error) {
	p, err := api.call(ctx, "CreateVpc", url.Values{"CidrBlock": {cidr}})
	if err != nil {
		return nil, err
	}

	vlans, err := api.s.Translator.VLANs(ctx, api.s.translateScope(), p)
	if err != nil {
		return nil, err
	}
	if len(vlans) == 0 {
		return nil, adaptererrors.NewTranslationFault("CreateVpc returned no vpc")
	}

	id := vlans[0].ID
	if err := api.applyTags(ctx, id, api.metadataTags(md)); err != nil {
		return nil, err
	}

	fresh, err := api.getVlan(ctx, id)
	if err != nil || fresh == nil {
		return vlans[0], err
	}
	return fresh, nil
}

func (api *ec2API) getVlan(ctx gocontext.Context, id string) (*resource.VLAN, error) {
	p, err := api.call(ctx, "DescribeVpcs", url.Values{"VpcId.1": {id}})
	if err != nil {
		return nil, err
	}
	vlans, err := api.s.Translator.VLANs(ctx, api.s.translateScope(), p)
	if err != nil || len(vlans) == 0 {
		return nil, err
	}
	return vlans[0], nil
}

func (api *ec2API) listVlans(ctx gocontext.Context) ([]*resource.VLAN, error) {
	p, err := api.call(ctx, "DescribeVpcs", nil)
	if err != nil {
		return nil, err
	}
	return api.s.Translator.VLANs(ctx, api.s.translateScope(), p)
}

func (api *ec2API) removeVlan(ctx gocontext.Context, id string) error {
	_, err := api.call(ctx, "DeleteVpc", url.Values{"VpcId": {id}})
	return err
}

func (api *ec2API) createSubnet(ctx gocontext.Context, vlanID, cidr string, ipVersion resource.IPVersion, md *translate.VLANMetadata) (*resource.Subnet, error) {
	if ipVersion == resource.IPv6 {
		return nil, adaptererrors.NewNotSupportedFault("IPv6 subnets are not supported by the EC2 dialect")
	}

	p, err := api.call(ctx, "CreateSubnet", url.Values{
		"VpcId":     {vlanID},
		"CidrBlock": {cidr},
	})
	if err != nil {
		return nil, err
	}

	subnets, err := api.s.Translator.Subnets(ctx, api.s.translateScope(), p)
	if err != nil {
		return nil, err
	}
	if len(subnets) == 0 {
		return nil, adaptererrors.NewTranslationFault("CreateSubnet returned no subnet")
	}

	id := subnets[0].ID
	if err := api.applyTags(ctx, id, api.metadataTags(md)); err != nil {
		return nil, err
	}

	fresh, err := api.getSubnet(ctx, id)
	if err != nil || fresh == nil {
		return subnets[0], err
	}
	return fresh, nil
}

func (api *ec2API) getSubnet(ctx gocontext.Context, id string) (*resource.Subnet, error) {
	p, err := api.call(ctx, "DescribeSubnets", url.Values{"SubnetId.1": {id}})
	if err != nil {
		return nil, err
	}
	subnets, err := api.s.Translator.Subnets(ctx, api.s.translateScope(), p)
	if err != nil || len(subnets) == 0 {
		return nil, err
	}
	return subnets[0], nil
}

func (api *ec2API) listSubnets(ctx gocontext.Context, vlanID string) ([]*resource.Subnet, error) {
	p, err := api.call(ctx, "DescribeSubnets", url.Values{
		"Filter.1.Name":    {"vpc-id"},
		"Filter.1.Value.1": {vlanID},
	})
	if err != nil {
		return nil, err
	}
	return api.s.Translator.Subnets(ctx, api.s.translateScope(), p)
}

func (api *ec2API) removeSubnet(ctx gocontext.Context, id string) error {
	_, err := api.call(ctx, "DeleteSubnet", url.Values{"SubnetId": {id}})
	return err
}

func (api *ec2API) createPort(ctx gocontext.Context, vlanID, subnetID, name string) (string, error) {
	return "", adaptererrors.NewNotSupportedFault("ports are not supported by the %s dialect", strings.ToUpper(string(translate.DialectEC2)))
}
