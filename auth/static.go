package auth

import (
	gocontext "context"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
)

// StaticAcquirer serves EC2-style access keys. The "token" of the context is
// the access key id; requests are signed with the full credentials.
type StaticAcquirer struct {
	Credentials *credentials.Credentials
	Endpoints   map[string]string
}

// Acquire re-reads the credentials, so a rotated key is picked up after an
// invalidation.
func (s *StaticAcquirer) Acquire(ctx gocontext.Context, scope Scope) (*Context, error) {
	if s.Credentials == nil {
		return nil, adaptererrors.NewConfigurationFault("missing ACCESS_KEY_ID and SECRET_ACCESS_KEY")
	}

	s.Credentials.Expire()
	v, err := s.Credentials.Get()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read access keys")
	}
	if v.AccessKeyID == "" || v.SecretAccessKey == "" {
		return nil, adaptererrors.NewConfigurationFault("missing ACCESS_KEY_ID or SECRET_ACCESS_KEY")
	}

	endpoints := map[string]string{}
	for service, u := range s.Endpoints {
		endpoints[service] = u
	}

	return &Context{
		Token:     v.AccessKeyID,
		TenantID:  scope.Account,
		Endpoints: endpoints,
	}, nil
}
