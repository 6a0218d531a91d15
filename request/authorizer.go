package request

import (
	"bytes"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/pkg/errors"
	"github.com/travis-ci/cloudadapter/auth"
)

// Authorizer adds credentials to an outgoing request's headers.
type Authorizer interface {
	Authorize(actx *auth.Context, method, url string, headers http.Header, body []byte) error
}

// TokenAuthorizer sends the context token in X-Auth-Token (OpenStack).
type TokenAuthorizer struct{}

func (TokenAuthorizer) Authorize(actx *auth.Context, method, url string, headers http.Header, body []byte) error {
	headers.Set("X-Auth-Token", actx.Token)
	return nil
}

// SignatureAuthorizer signs EC2 query requests with AWS Signature Version 4.
type SignatureAuthorizer struct {
	Credentials *credentials.Credentials
	Region      string
	Service     string

	now func() time.Time
}

func (sa *SignatureAuthorizer) Authorize(actx *auth.Context, method, url string, headers http.Header, body []byte) error {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return errors.Wrap(err, "couldn't build request to sign")
	}
	// the signer writes into req.Header, which is the caller's header map
	req.Header = headers

	now := time.Now
	if sa.now != nil {
		now = sa.now
	}

	service := sa.Service
	if service == "" {
		service = "ec2"
	}

	_, err = v4.NewSigner(sa.Credentials).Sign(req, bytes.NewReader(body), service, sa.Region, now())
	return errors.Wrap(err, "couldn't sign request")
}
