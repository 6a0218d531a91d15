package cloudadapter

import (
	"sort"
	"sync"

	gocontext "context"

	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/config"
	"github.com/travis-ci/cloudadapter/request"
	"github.com/travis-ci/cloudadapter/resource"
	"github.com/travis-ci/cloudadapter/translate"
)

var (
	dialectRegistry      = map[translate.Dialect]*Dialect{}
	dialectRegistryMutex sync.Mutex
)

type vmAction int

const (
	vmActionBoot vmAction = iota
	vmActionPause
	vmActionReboot
	vmActionTerminate
)

func (a vmAction) String() string {
	return [...]string{"boot", "pause", "reboot", "terminate"}[a]
}

// dialectAPI builds and sends the provider requests of one dialect. Lookups
// of missing resources may return NotFound faults; the session turns those
// into absent results.
type dialectAPI interface {
	launch(ctx gocontext.Context, opts *LaunchOptions) (*resource.VirtualMachine, error)
	getVirtualMachine(ctx gocontext.Context, id string) (*resource.VirtualMachine, error)
	listVirtualMachines(ctx gocontext.Context) ([]*resource.VirtualMachine, error)
	applyTags(ctx gocontext.Context, id string, tags []resource.Tag) error
	vmAction(ctx gocontext.Context, id string, action vmAction) error
	consoleOutput(ctx gocontext.Context, id string) (string, error)
	firewalls(ctx gocontext.Context, id string) ([]string, error)
	password(ctx gocontext.Context, id string) (string, error)
	ping(ctx gocontext.Context) error

	createVlan(ctx gocontext.Context, cidr string, md *translate.VLANMetadata) (*resource.VLAN, error)
	getVlan(ctx gocontext.Context, id string) (*resource.VLAN, error)
	listVlans(ctx gocontext.Context) ([]*resource.VLAN, error)
	removeVlan(ctx gocontext.Context, id string) error

	createSubnet(ctx gocontext.Context, vlanID, cidr string, ipVersion resource.IPVersion, md *translate.VLANMetadata) (*resource.Subnet, error)
	getSubnet(ctx gocontext.Context, id string) (*resource.Subnet, error)
	listSubnets(ctx gocontext.Context, vlanID string) ([]*resource.Subnet, error)
	removeSubnet(ctx gocontext.Context, id string) error

	createPort(ctx gocontext.Context, vlanID, subnetID, name string) (string, error)
}

// Dialect wraps up an alias, a human readable name, config help and the
// setup func for one wire dialect.
type Dialect struct {
	Alias             translate.Dialect
	HumanReadableName string
	Help              map[string]string

	// setup returns the credential source, the request authorizer (nil for
	// the token header) and the request builder of a session.
	setup func(s *Session, cfg *config.ProviderConfig) (auth.Acquirer, request.Authorizer, dialectAPI, error)
}

func registerDialect(d *Dialect) {
	dialectRegistryMutex.Lock()
	defer dialectRegistryMutex.Unlock()

	dialectRegistry[d.Alias] = d
}

func lookupDialect(alias translate.Dialect) (*Dialect, bool) {
	dialectRegistryMutex.Lock()
	defer dialectRegistryMutex.Unlock()

	d, ok := dialectRegistry[alias]
	return d, ok
}

// EachDialect calls f for each registered dialect, sorted by alias.
func EachDialect(f func(*Dialect)) {
	dialectRegistryMutex.Lock()
	aliases := []string{}
	for alias := range dialectRegistry {
		aliases = append(aliases, string(alias))
	}
	dialectRegistryMutex.Unlock()

	sort.Strings(aliases)

	for _, alias := range aliases {
		d, _ := lookupDialect(translate.Dialect(alias))
		f(d)
	}
}
