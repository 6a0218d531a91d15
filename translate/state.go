package translate

import (
	"strings"

	gocontext "context"

	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/resource"
)

var ec2States = map[string]resource.VmState{
	"pending":       resource.VmStatePending,
	"running":       resource.VmStateRunning,
	"terminating":   resource.VmStateStopping,
	"stopping":      resource.VmStateStopping,
	"shutting-down": resource.VmStateStopping,
	"stopped":       resource.VmStatePaused,
	"terminated":    resource.VmStateTerminated,
	"rebooting":     resource.VmStateRebooting,
}

var novaStates = map[string]resource.VmState{
	"ACTIVE":      resource.VmStateRunning,
	"BUILD":       resource.VmStatePending,
	"REBUILD":     resource.VmStatePending,
	"REBOOT":      resource.VmStateRebooting,
	"HARD_REBOOT": resource.VmStateRebooting,
	"SHUTOFF":     resource.VmStatePaused,
	"STOPPED":     resource.VmStatePaused,
	"PAUSED":      resource.VmStatePaused,
	"SUSPENDED":   resource.VmStatePaused,
	"DELETED":     resource.VmStateTerminated,
}

var vlanStates = map[string]resource.VLANState{
	"active":    resource.VLANStateAvailable,
	"available": resource.VLANStateAvailable,
	"build":     resource.VLANStatePending,
	"pending":   resource.VLANStatePending,
}

// EC2State maps an EC2 instanceState name. Unknown states are PENDING.
func EC2State(ctx gocontext.Context, state string) resource.VmState {
	if s, ok := ec2States[state]; ok {
		return s
	}
	warnUnknownState(ctx, "ec2", state)
	return resource.VmStatePending
}

// NovaState maps a Nova server status. Unknown states are PENDING.
func NovaState(ctx gocontext.Context, status string) resource.VmState {
	if s, ok := novaStates[strings.ToUpper(status)]; ok {
		return s
	}
	warnUnknownState(ctx, "nova", status)
	return resource.VmStatePending
}

// VLANState maps a network status. A network without a status is available.
func VLANState(ctx gocontext.Context, status string) resource.VLANState {
	if status == "" {
		return resource.VLANStateAvailable
	}
	if s, ok := vlanStates[strings.ToLower(status)]; ok {
		return s
	}
	warnUnknownState(ctx, "network", status)
	return resource.VLANStatePending
}

func warnUnknownState(ctx gocontext.Context, dialect, state string) {
	// create responses often carry no state at all
	if state == "" {
		return
	}
	context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":    "translate/state",
		"dialect": dialect,
		"state":   state,
	}).Warn("unknown state, treating as pending")
}

// SubnetState maps a subnet state. Subnets that report nothing are
// available.
func SubnetState(status string) resource.SubnetState {
	if strings.EqualFold(status, "pending") {
		return resource.SubnetStatePending
	}
	return resource.SubnetStateAvailable
}
