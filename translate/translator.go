// Package translate turns decoded provider payloads into resource records.
// Each dialect has its own Translator; callers pick one with For.
package translate

import (
	"time"

	gocontext "context"

	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/wire"
)

type Dialect string

const (
	DialectEC2  Dialect = "ec2"
	DialectNova Dialect = "nova"
)

// ProductLookup finds catalog products by id.
type ProductLookup interface {
	Product(id string) (*resource.Product, bool)
}

// HostResolver is satisfied by *net.Resolver.
type HostResolver interface {
	LookupHost(ctx gocontext.Context, host string) ([]string, error)
}

// VLANLookup finds the CIDR of a VLAN for subnets that don't carry their
// own.
type VLANLookup interface {
	VlanCIDR(ctx gocontext.Context, vlanID string) (string, bool)
}

// Scope is what a translator needs to know about the session a payload came
// from, since providers rarely echo it back.
type Scope struct {
	Region   string
	Owner    string
	Products ProductLookup
	Resolver HostResolver
	VLANs    VLANLookup
}

func (s *Scope) vlanCIDR(ctx gocontext.Context, vlanID string) string {
	if s.VLANs == nil {
		return ""
	}
	cidr, _ := s.VLANs.VlanCIDR(ctx, vlanID)
	return cidr
}

func (s *Scope) product(id string) *resource.Product {
	if s.Products == nil || id == "" {
		return nil
	}
	p, ok := s.Products.Product(id)
	if !ok {
		return nil
	}
	return p
}

// Translator maps one dialect's payloads onto resource records. Records
// without an id are dropped, never returned half-filled.
type Translator interface {
	Dialect() Dialect

	VirtualMachines(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.VirtualMachine, error)
	VLANs(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.VLAN, error)
	Subnets(ctx gocontext.Context, scope *Scope, p *wire.Payload) ([]*resource.Subnet, error)

	// Password extracts a root password; empty means not available yet.
	Password(ctx gocontext.Context, p *wire.Payload) (string, error)
}

// For returns the translator of a dialect.
func For(dialect Dialect) (Translator, error) {
	switch dialect {
	case DialectEC2:
		return &EC2{}, nil
	case DialectNova:
		return &Nova{}, nil
	}
	return nil, adaptererrors.NewConfigurationFault("unknown dialect %q", dialect)
}

func expectXML(p *wire.Payload) (*wire.Node, error) {
	if p.Empty() {
		return nil, nil
	}
	if p.XML == nil {
		return nil, adaptererrors.NewTranslationFault("expected an xml payload, got %s", p.Format)
	}
	return p.XML, nil
}

func expectJSON(p *wire.Payload) error {
	if p.Empty() {
		return nil
	}
	if p.JSON == nil {
		return adaptererrors.NewTranslationFault("expected a json payload, got %s", p.Format)
	}
	return nil
}

// parseTime accepts the RFC 3339 variants both dialects emit. Unparseable
// values are logged and yield the zero time.
func parseTime(ctx gocontext.Context, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.000000"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	context.LoggerFromContext(ctx).WithField("self", "translate").WithField("value", value).Warn("unparseable timestamp")
	return time.Time{}
}

func finishVirtualMachine(vm *resource.VirtualMachine) {
	if vm.Platform == "" {
		vm.Platform = resource.PlatformUnknown
	}
	if vm.Name == "" {
		vm.Name = vm.ID
	}
	if vm.Description == "" {
		productName := "unknown"
		if vm.Product != nil {
			productName = vm.Product.Name
		}
		vm.Description = vm.Name + " (" + productName + ")"
	}
	if vm.Architecture == "" {
		vm.Architecture = resource.ArchitectureI64
		if vm.Product != nil {
			vm.Architecture = resource.ArchitectureForProduct(vm.Product.ID)
		}
	}
	if vm.Tags == nil {
		vm.Tags = map[string]string{}
	}
	if vm.PrivateAddresses == nil {
		vm.PrivateAddresses = []string{}
	}
	if vm.PublicAddresses == nil {
		vm.PublicAddresses = []string{}
	}
}
