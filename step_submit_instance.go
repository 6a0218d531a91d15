package cloudadapter

import (
	gocontext "context"

	"github.com/mitchellh/multistep"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/metrics"
)

type stepSubmitInstance struct {
	api dialectAPI
}

func (s *stepSubmitInstance) Run(state multistep.StateBag) multistep.StepAction {
	ctx := state.Get("ctx").(gocontext.Context)
	opts := state.Get("opts").(*LaunchOptions)
	logger := context.LoggerFromContext(ctx).WithField("self", "step_submit_instance")

	vm, err := s.api.launch(ctx, opts)
	if err != nil {
		if adaptererrors.IsCapacity(err) {
			logger.WithField("err", err).Warn("provider has no capacity, no instance created")
			metrics.Mark("cloudadapter.launch.capacity")
			return multistep.ActionHalt
		}

		logger.WithField("err", err).Error("couldn't submit instance")
		state.Put("err", err)
		return multistep.ActionHalt
	}

	if vm == nil {
		logger.Warn("launch response carried no instance")
		return multistep.ActionHalt
	}

	logger.WithField("instance", vm.ID).Info("submitted instance")
	state.Put("vm", vm)

	return multistep.ActionContinue
}

func (s *stepSubmitInstance) Cleanup(multistep.StateBag) {}
