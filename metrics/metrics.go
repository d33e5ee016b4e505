// Package metrics defines the instrumentation contract for the
// gateway. NoopRecorder is the default; the Prometheus implementation
// can be enabled through configuration.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
