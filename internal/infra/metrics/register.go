// Package metrics holds the Prometheus collectors for the billing
// service. Each file declares its collectors under the shared namespace
// and enqueues them from init(); MustRegister flushes the queue into the
// default registry exactly once at process start.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every metric this service exports.
const namespace = "billing"

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs all declared collectors. Safe to call from more
// than one entrypoint; only the first call registers.
func MustRegister() {
	registerOnce.Do(func() {
		if len(pending) > 0 {
			prometheus.MustRegister(pending...)
		}
	})
}
