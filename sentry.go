package cloudadapter

import (
	"fmt"
	"time"

	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultSentryTimeout = 5 * time.Second

var (
	sentrySeverities = map[logrus.Level]raven.Severity{
		logrus.PanicLevel: raven.FATAL,
		logrus.FatalLevel: raven.FATAL,
		logrus.ErrorLevel: raven.ERROR,
		logrus.WarnLevel:  raven.WARNING,
		logrus.InfoLevel:  raven.INFO,
		logrus.DebugLevel: raven.DEBUG,
	}

	// sentryTagFields are promoted from log fields to sentry tags.
	sentryTagFields = []string{"region", "account", "operation", "service"}
)

// SentryHook ships log entries to Sentry.
type SentryHook struct {
	Timeout time.Duration

	levels  []logrus.Level
	capture func(*raven.Packet, map[string]string) (string, chan error)
}

// NewSentryHook creates a hook sending entries of the given levels to the
// Sentry project at dsn.
func NewSentryHook(dsn string, levels []logrus.Level) (*SentryHook, error) {
	client, err := raven.New(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create raven client")
	}

	return &SentryHook{
		Timeout: defaultSentryTimeout,
		levels:  levels,
		capture: client.Capture,
	}, nil
}

// InstallSentryHook adds a SentryHook for panics and fatals, and errors too
// when withErrors is set, to the standard logger.
func InstallSentryHook(dsn string, withErrors bool) error {
	levels := []logrus.Level{logrus.PanicLevel, logrus.FatalLevel}
	if withErrors {
		levels = append(levels, logrus.ErrorLevel)
	}

	hook, err := NewSentryHook(dsn, levels)
	if err != nil {
		return err
	}
	logrus.AddHook(hook)

	return errors.Wrap(raven.SetDSN(dsn), "couldn't set DSN in raven")
}

func (hook *SentryHook) Levels() []logrus.Level {
	return hook.levels
}

// Fire sends the entry and waits up to Timeout for Sentry to accept it.
func (hook *SentryHook) Fire(entry *logrus.Entry) error {
	packet, tags := sentryPacket(entry)

	_, ch := hook.capture(packet, tags)

	timeout := hook.Timeout
	if timeout == 0 {
		timeout = defaultSentryTimeout
	}

	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return errors.Errorf("no response from sentry after %v", timeout)
	}
}

func sentryPacket(entry *logrus.Entry) (*raven.Packet, map[string]string) {
	packet := raven.NewPacket(entry.Message)
	packet.Timestamp = raven.Timestamp(entry.Time)
	packet.Level = sentrySeverities[entry.Level]
	packet.Logger = "cloud-adapter"
	packet.Extra = map[string]interface{}{}

	tags := map[string]string{}
	for _, key := range sentryTagFields {
		if v, ok := entry.Data[key]; ok {
			tags[key] = fmt.Sprintf("%v", v)
		}
	}

	for key, value := range entry.Data {
		if err, ok := value.(error); ok && (key == "err" || key == logrus.ErrorKey) {
			packet.Interfaces = append(packet.Interfaces, raven.NewException(err, raven.NewStacktrace(4, 3, nil)))
			packet.Extra[key] = err.Error()
			continue
		}
		packet.Extra[key] = value
	}

	return packet, tags
}
