// Package errors defines the faults raised by the request and translation
// layers.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a Fault.
type Kind int

const (
	// KindProvider is any non-2xx response that does not fit another kind.
	KindProvider Kind = iota
	KindConfiguration
	KindAuth
	KindNotFound
	KindCapacity
	KindCommunication
	KindTranslation
	KindTransport
	KindTimeout
	KindNotSupported
)

var kindNames = map[Kind]string{
	KindProvider:      "provider",
	KindConfiguration: "configuration",
	KindAuth:          "auth",
	KindNotFound:      "not found",
	KindCapacity:      "capacity",
	KindCommunication: "communication",
	KindTranslation:   "translation",
	KindTransport:     "transport",
	KindTimeout:       "timeout",
	KindNotSupported:  "not supported",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fault is a structured failure carrying whatever the provider told us.
// Body holds the raw response body when one was received.
type Fault struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Body    string

	err error
}

// we do not implement Cause(), because we want
// errors.Cause() to bottom out here

func (f *Fault) Error() string {
	msg := f.Message
	if msg == "" && f.err != nil {
		msg = f.err.Error()
	}

	switch {
	case f.Status != 0 && f.Code != "":
		return fmt.Sprintf("%s fault: status=%d code=%s: %s", f.Kind, f.Status, f.Code, msg)
	case f.Status != 0:
		return fmt.Sprintf("%s fault: status=%d: %s", f.Kind, f.Status, msg)
	case f.Code != "":
		return fmt.Sprintf("%s fault: code=%s: %s", f.Kind, f.Code, msg)
	}
	return fmt.Sprintf("%s fault: %s", f.Kind, msg)
}

// Unwrap exposes the underlying error, if any, to the standard library
// errors.Is/As.
func (f *Fault) Unwrap() error {
	return f.err
}

func NewConfigurationFault(format string, args ...interface{}) error {
	return &Fault{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func NewTranslationFault(format string, args ...interface{}) error {
	return &Fault{Kind: KindTranslation, Message: fmt.Sprintf(format, args...)}
}

func NewNotSupportedFault(format string, args ...interface{}) error {
	return &Fault{Kind: KindNotSupported, Message: fmt.Sprintf(format, args...)}
}

func NewTimeoutFault(format string, args ...interface{}) error {
	return &Fault{Kind: KindTimeout, Message: fmt.Sprintf(format, args...)}
}

// NewCommunicationFault reports a response body that could not be parsed.
// The raw body is kept for diagnosis.
func NewCommunicationFault(status int, code string, body []byte, err error) error {
	return &Fault{
		Kind:    KindCommunication,
		Status:  status,
		Code:    code,
		Message: "unparseable response body",
		Body:    string(body),
		err:     err,
	}
}

func NewTransportFault(err error) error {
	return &Fault{Kind: KindTransport, err: err}
}

// FaultFrom returns the Fault at the bottom of err's cause chain.
func FaultFrom(err error) (*Fault, bool) {
	if err == nil {
		return nil, false
	}
	f, ok := errors.Cause(err).(*Fault)
	return f, ok
}

// KindOf returns the fault kind of err, or KindProvider with false if err
// isn't a Fault.
func KindOf(err error) (Kind, bool) {
	f, ok := FaultFrom(err)
	if !ok {
		return KindProvider, false
	}
	return f.Kind, true
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsAuth(err error) bool          { return isKind(err, KindAuth) }
func IsNotFound(err error) bool      { return isKind(err, KindNotFound) }
func IsCapacity(err error) bool      { return isKind(err, KindCapacity) }
func IsCommunication(err error) bool { return isKind(err, KindCommunication) }
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }
func IsTranslation(err error) bool   { return isKind(err, KindTranslation) }
func IsTransport(err error) bool     { return isKind(err, KindTransport) }
func IsTimeout(err error) bool       { return isKind(err, KindTimeout) }
func IsNotSupported(err error) bool  { return isKind(err, KindNotSupported) }
