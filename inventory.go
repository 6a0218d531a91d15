package cloudadapter

import (
	gocontext "context"

	"github.com/travis-ci/cloudadapter/resource"
	"golang.org/x/sync/errgroup"
)

// Inventory is a snapshot of the instances and VLANs of a session.
type Inventory struct {
	VirtualMachines []*resource.VirtualMachine `json:"virtual_machines"`
	VLANs           []*resource.VLAN           `json:"vlans"`
}

// Inventory lists instances and VLANs concurrently. The first failure
// cancels the other listing.
func (s *Session) Inventory(ctx gocontext.Context) (*Inventory, error) {
	inv := &Inventory{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vms, err := s.ListVirtualMachines(gctx)
		inv.VirtualMachines = vms
		return err
	})

	g.Go(func() error {
		vlans, err := s.ListVlans(gctx)
		inv.VLANs = vlans
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inv, nil
}
