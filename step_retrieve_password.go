package cloudadapter

import (
	gocontext "context"

	"github.com/mitchellh/multistep"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/metrics"
	"github.com/travis-ci/cloudadapter/resource"
)

// stepRetrievePassword makes one attempt at the root password of instances
// launched with a keypair. It never fails the launch.
type stepRetrievePassword struct {
	api dialectAPI
}

func (s *stepRetrievePassword) Run(state multistep.StateBag) multistep.StepAction {
	ctx := state.Get("ctx").(gocontext.Context)
	opts := state.Get("opts").(*LaunchOptions)
	vm := state.Get("vm").(*resource.VirtualMachine)

	if opts.KeypairID == "" || vm.Password.Ready() {
		return multistep.ActionContinue
	}

	logger := context.LoggerFromContext(ctx).WithField("self", "step_retrieve_password").WithField("instance", vm.ID)

	password, err := s.api.password(ctx, vm.ID)
	if err != nil {
		logger.WithField("err", err).Warn("couldn't retrieve password, leaving it pending")
	}

	if err != nil || password == "" {
		metrics.Mark("cloudadapter.password.pending")
		vm.Password = resource.PasswordPendingResult(vm.ID)
		return multistep.ActionContinue
	}

	logger.Debug("retrieved password")
	vm.Password = resource.PasswordReadyResult(password)
	vm.Platform = resource.PlatformWindows

	return multistep.ActionContinue
}

func (s *stepRetrievePassword) Cleanup(multistep.StateBag) {}
