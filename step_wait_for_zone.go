package cloudadapter

import (
	"time"

	gocontext "context"

	"github.com/mitchellh/multistep"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/metrics"
	"github.com/travis-ci/cloudadapter/resource"
)

// stepWaitForZone re-fetches the instance until the provider has placed it
// in a data center, it disappears, or the timeout passes.
type stepWaitForZone struct {
	api      dialectAPI
	interval time.Duration
	timeout  time.Duration
}

func (s *stepWaitForZone) Run(state multistep.StateBag) multistep.StepAction {
	ctx := state.Get("ctx").(gocontext.Context)
	vm := state.Get("vm").(*resource.VirtualMachine)

	if vm.ZoneAssigned() {
		return multistep.ActionContinue
	}

	logger := context.LoggerFromContext(ctx).WithField("self", "step_wait_for_zone").WithField("instance", vm.ID)
	logger.Info("waiting for zone assignment")

	startTime := time.Now()
	defer context.TimeSince(ctx, "launch.zone_wait", startTime)

	pollCtx, cancel := gocontext.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				state.Put("err", ctx.Err())
				return multistep.ActionHalt
			}

			metrics.Mark("cloudadapter.launch.zone_timeout")
			logger.WithField("timeout", s.timeout).Error("timed out waiting for zone assignment")
			state.Put("err", adaptererrors.NewTimeoutFault("instance %s had no zone after %v", vm.ID, s.timeout))
			return multistep.ActionHalt
		case <-ticker.C:
		}

		fresh, err := s.api.getVirtualMachine(pollCtx, vm.ID)
		if adaptererrors.IsNotFound(err) || (err == nil && fresh == nil) {
			logger.Warn("instance disappeared while waiting for zone assignment")
			state.Put("vm", nil)
			return multistep.ActionHalt
		}
		if err != nil {
			logger.WithField("err", err).Warn("couldn't refresh instance, will retry")
			continue
		}

		// the password is not part of the instance listing
		fresh.Password = vm.Password
		if vm.Platform == resource.PlatformWindows {
			fresh.Platform = vm.Platform
		}
		vm = fresh

		if vm.ZoneAssigned() {
			logger.WithField("datacenter", vm.DataCenterID).Info("zone assigned")
			state.Put("vm", vm)
			return multistep.ActionContinue
		}
	}
}

func (s *stepWaitForZone) Cleanup(multistep.StateBag) {}
