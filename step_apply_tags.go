package cloudadapter

import (
	gocontext "context"

	"github.com/mitchellh/multistep"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/resource"
)

type stepApplyTags struct {
	api dialectAPI
}

func (s *stepApplyTags) Run(state multistep.StateBag) multistep.StepAction {
	ctx := state.Get("ctx").(gocontext.Context)
	opts := state.Get("opts").(*LaunchOptions)
	vm := state.Get("vm").(*resource.VirtualMachine)
	logger := context.LoggerFromContext(ctx).WithField("self", "step_apply_tags").WithField("instance", vm.ID)

	tags := LaunchTags(opts.Name, opts.Description, opts.Tags)

	if err := s.api.applyTags(ctx, vm.ID, tags); err != nil {
		logger.WithField("err", err).Error("couldn't apply tags")
		state.Put("err", err)
		return multistep.ActionHalt
	}

	if vm.Tags == nil {
		vm.Tags = map[string]string{}
	}
	for _, tag := range tags {
		switch tag.Key {
		case "Name":
			if tag.Value != "" {
				vm.Name = tag.Value
			}
		case "Description":
			if tag.Value != "" {
				vm.Description = tag.Value
			}
		default:
			vm.Tags[tag.Key] = tag.Value
		}
	}

	logger.WithField("count", len(tags)).Debug("applied tags")

	return multistep.ActionContinue
}

func (s *stepApplyTags) Cleanup(multistep.StateBag) {}
