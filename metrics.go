package memprotogw

import "sync/atomic"

// Metrics tracks per-listener operational counters using plain atomics
// rather than a metrics library, so it has no opinion on export format;
// wire a Prometheus/otel exporter by reading the fields, which are safe
// for concurrent access.
type Metrics struct {
	ConnectionsAccepted atomic.Uint64
	ConnectionsClosed   atomic.Uint64

	GetOps    atomic.Uint64
	SetOps    atomic.Uint64
	DeleteOps atomic.Uint64
	NoopOps   atomic.Uint64
	FlushOps  atomic.Uint64

	GetHits   atomic.Uint64
	GetMisses atomic.Uint64

	ProtocolErrors atomic.Uint64
	BackendErrors  atomic.Uint64

	// QueueDepthTotal/QueueDepthSamples let callers compute the average
	// number of slots the response queue holds right after each
	// PushEntry (pending or ready but not yet drained, counting the one
	// just pushed), a cheap proxy for backend tail latency.
	QueueDepthTotal   atomic.Uint64
	QueueDepthSamples atomic.Uint64
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observeQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthSamples.Add(1)
}

// AverageQueueDepth returns the mean queue depth observed at push time,
// or 0 if nothing has been observed yet.
func (m *Metrics) AverageQueueDepth() float64 {
	n := m.QueueDepthSamples.Load()
	if n == 0 {
		return 0
	}
	return float64(m.QueueDepthTotal.Load()) / float64(n)
}
