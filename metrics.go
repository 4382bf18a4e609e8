package authgate

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics system.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterConflict
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricLogout
	MetricLogoutAll
	MetricSessionCreated
	MetricSessionRevoked
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRegisterSuccess:      "register_success",
	MetricRegisterConflict:     "register_conflict",
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricLoginRateLimited:     "login_rate_limited",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricLogout:               "logout",
	MetricLogoutAll:            "logout_all",
	MetricSessionCreated:       "session_created",
	MetricSessionRevoked:       "session_revoked",
}

// MetricCount is the number of defined metric IDs, for exporters that
// iterate the full set.
const MetricCount = int(metricIDCount)

// MetricName returns the stable exposition name for a metric ID.
func MetricName(id MetricID) string {
	if int(id) >= len(metricNames) {
		return ""
	}
	return metricNames[id]
}

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds per-operation atomic counters. When disabled, every
// operation is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a Metrics instance per the given config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].value.Add(1)
}

// Snapshot is a point-in-time copy of all counters, indexable by
// [MetricID].
type Snapshot struct {
	Counters [metricIDCount]uint64
}

// Get returns one counter from the snapshot.
func (s Snapshot) Get(id MetricID) uint64 {
	if id >= metricIDCount {
		return 0
	}
	return s.Counters[id]
}

// Snapshot copies the live counters.
func (m *Metrics) Snapshot() Snapshot {
	var snap Snapshot
	if m == nil || !m.enabled {
		return snap
	}
	for i := range m.counters {
		snap.Counters[i] = m.counters[i].value.Load()
	}
	return snap
}
