package cloudadapter

import (
	"sort"
	"strings"
	"time"

	gocontext "context"

	"github.com/mitchellh/multistep"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/resource"
)

// LaunchOptions describes the instance to launch.
type LaunchOptions struct {
	ImageID      string
	ProductID    string
	DataCenterID string
	Name         string
	Description  string
	KeypairID    string
	VlanID       string
	SubnetID     string
	FirewallIDs  []string
	Tags         map[string]string
}

// Launch creates an instance and walks it through tagging, password retrieval
// and zone assignment. A nil record and nil error mean the provider had no
// capacity, or the instance disappeared while waiting for its zone.
//
// Launch is not rollback safe: an error after submission leaves a live
// instance behind which the caller finds by listing.
func (s *Session) Launch(ctx gocontext.Context, opts *LaunchOptions) (*resource.VirtualMachine, error) {
	ctx = s.opContext(ctx, "launch")
	logger := context.LoggerFromContext(ctx).WithField("self", "session/launch")

	logger.WithFields(logrus.Fields{
		"image":      opts.ImageID,
		"product":    opts.ProductID,
		"datacenter": opts.DataCenterID,
		"name":       opts.Name,
	}).Info("launching instance")

	state := new(multistep.BasicStateBag)
	state.Put("ctx", ctx)
	state.Put("opts", opts)

	steps := []multistep.Step{
		&stepSubmitInstance{api: s.api},
		&stepRetrievePassword{api: s.api},
		&stepApplyTags{api: s.api},
		&stepWaitForZone{
			api:      s.api,
			interval: s.zonePollInterval,
			timeout:  s.zonePollTimeout,
		},
	}

	startTime := time.Now()
	runner := &multistep.BasicRunner{Steps: steps}
	runner.Run(state)

	if err, ok := state.Get("err").(error); ok {
		return nil, err
	}

	vm, ok := state.Get("vm").(*resource.VirtualMachine)
	if !ok {
		return nil, nil
	}

	context.TimeSince(ctx, "launch", startTime)
	logger.WithFields(logrus.Fields{
		"instance":   vm.ID,
		"datacenter": vm.DataCenterID,
		"password":   vm.Password.State,
	}).Info("launched instance")

	return vm, nil
}

// LaunchTags is the tag set written for a launch: every caller tag except the
// name and description ones (compared case-insensitively), then exactly one
// Name and one Description tag.
func LaunchTags(name, description string, tags map[string]string) []resource.Tag {
	keys := []string{}
	for key := range tags {
		switch strings.ToLower(key) {
		case "name", "description":
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := []resource.Tag{}
	for _, key := range keys {
		result = append(result, resource.Tag{Key: key, Value: tags[key]})
	}

	return append(result,
		resource.Tag{Key: "Name", Value: name},
		resource.Tag{Key: "Description", Value: description})
}
