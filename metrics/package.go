// Package metrics provides easy methods to record metrics in the default
// go-metrics registry
package metrics

import (
	"fmt"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Mark increases the meter metric with the given name by 1
func Mark(name string) {
	gometrics.GetOrRegisterMeter(name, gometrics.DefaultRegistry).Mark(1)
}

// Markf is Mark with a formatted name
func Markf(format string, args ...interface{}) {
	Mark(fmt.Sprintf(format, args...))
}

// Gauge sets a gauge metric to a given value
func Gauge(name string, value int64) {
	gometrics.GetOrRegisterGauge(name, gometrics.DefaultRegistry).Update(value)
}

// TimeSince updates a timer metric with time.Since(timestamp)
func TimeSince(name string, timestamp time.Time) {
	gometrics.GetOrRegisterTimer(name, gometrics.DefaultRegistry).UpdateSince(timestamp)
}
