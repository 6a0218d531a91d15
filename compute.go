package cloudadapter

import (
	gocontext "context"

	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/resource"
)

// GetVirtualMachine returns the instance with the given id, or nil when the
// provider doesn't know it.
func (s *Session) GetVirtualMachine(ctx gocontext.Context, id string) (*resource.VirtualMachine, error) {
	ctx = s.opContext(ctx, "get_vm")

	vm, err := s.api.getVirtualMachine(ctx, id)
	if adaptererrors.IsNotFound(err) {
		return nil, nil
	}
	return vm, err
}

func (s *Session) ListVirtualMachines(ctx gocontext.Context) ([]*resource.VirtualMachine, error) {
	return s.api.listVirtualMachines(s.opContext(ctx, "list_vms"))
}

// ListVirtualMachineStatus lists only the id and state of every instance.
func (s *Session) ListVirtualMachineStatus(ctx gocontext.Context) ([]resource.ResourceStatus, error) {
	vms, err := s.ListVirtualMachines(ctx)
	if err != nil {
		return nil, err
	}

	status := []resource.ResourceStatus{}
	for _, vm := range vms {
		status = append(status, resource.ResourceStatus{ID: vm.ID, State: string(vm.State)})
	}
	return status, nil
}

func (s *Session) Boot(ctx gocontext.Context, id string) error {
	return s.vmAction(ctx, id, vmActionBoot)
}

func (s *Session) Pause(ctx gocontext.Context, id string) error {
	return s.vmAction(ctx, id, vmActionPause)
}

func (s *Session) Reboot(ctx gocontext.Context, id string) error {
	return s.vmAction(ctx, id, vmActionReboot)
}

func (s *Session) Terminate(ctx gocontext.Context, id string) error {
	return s.vmAction(ctx, id, vmActionTerminate)
}

func (s *Session) vmAction(ctx gocontext.Context, id string, action vmAction) error {
	ctx = s.opContext(ctx, action.String())

	err := s.api.vmAction(ctx, id, action)
	if err != nil {
		context.LoggerFromContext(ctx).WithFields(logrus.Fields{
			"self":     "session/compute",
			"err":      err,
			"instance": id,
		}).Error("couldn't change instance state")
		return err
	}

	context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":     "session/compute",
		"instance": id,
	}).Info("requested instance state change")
	return nil
}

func (s *Session) ConsoleOutput(ctx gocontext.Context, id string) (string, error) {
	return s.api.consoleOutput(s.opContext(ctx, "console_output"), id)
}

// ListFirewalls returns the ids of the security groups of an instance.
func (s *Session) ListFirewalls(ctx gocontext.Context, id string) ([]string, error) {
	return s.api.firewalls(s.opContext(ctx, "list_firewalls"), id)
}

// IsSubscribed reports whether the credentials give access to the compute
// service at all. Authentication failures are a negative answer, not an error.
func (s *Session) IsSubscribed(ctx gocontext.Context) (bool, error) {
	ctx = s.opContext(ctx, "is_subscribed")

	err := s.api.ping(ctx)
	if adaptererrors.IsAuth(err) {
		context.LoggerFromContext(ctx).WithFields(logrus.Fields{
			"self": "session/compute",
			"err":  err,
		}).Debug("not subscribed")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
