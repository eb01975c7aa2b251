package quality

import (
	"sync"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/connection"
)

// Quality thresholds.
const (
	// DegradedRSSIThreshold is the signal level (dBm) below which a ready
	// link is demoted to unstable.
	DegradedRSSIThreshold = -85

	// RecoveryRSSIThreshold is the signal level (dBm) at or above which an
	// unstable link is promoted back to ready.
	RecoveryRSSIThreshold = -70

	// MaxMissedHeartbeats is the miss count at which a link is unhealthy.
	MaxMissedHeartbeats = 3

	// MinSuccessRate is the command success rate below which a link is
	// unhealthy.
	MinSuccessRate = 0.8

	// SuccessRateWindow is the number of recent command outcomes the
	// rolling success rate covers.
	SuccessRateWindow = 20
)

// Quality is an immutable snapshot of a peripheral's link quality.
type Quality struct {
	// RSSI is the most recent signal strength sample in dBm.
	RSSI int

	// LastHeartbeat is when the last heartbeat response arrived.
	LastHeartbeat time.Time

	// HeartbeatLatency is the round-trip time of the last heartbeat.
	HeartbeatLatency time.Duration

	// MissedHeartbeats counts consecutive unanswered probes.
	MissedHeartbeats int

	// SuccessRate is the rolling command success rate in [0, 1].
	SuccessRate float64
}

// Healthy reports the derived health verdict: adequate signal, few missed
// heartbeats, and a high command success rate.
func (q Quality) Healthy() bool {
	return q.RSSI > DegradedRSSIThreshold &&
		q.MissedHeartbeats < MaxMissedHeartbeats &&
		q.SuccessRate > MinSuccessRate
}

// Tracker aggregates RSSI samples, command outcomes, and heartbeat results
// into a Quality record.
type Tracker struct {
	mu sync.Mutex

	q        Quality
	outcomes []bool // ring buffer of recent command outcomes
	next     int
	filled   bool

	onChange    func(Quality)
	onDegraded  func(rssi int)
	onRecovered func(rssi int)
}

// NewTracker creates a tracker with a neutral quality record (no samples,
// success rate 1.0).
func NewTracker() *Tracker {
	return &Tracker{
		q:        Quality{SuccessRate: 1.0},
		outcomes: make([]bool, SuccessRateWindow),
	}
}

// OnChange sets the callback fired after every quality update.
func (t *Tracker) OnChange(fn func(Quality)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// OnDegraded sets the callback fired when a ready link's signal drops
// below the degraded threshold.
func (t *Tracker) OnDegraded(fn func(rssi int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDegraded = fn
}

// OnRecovered sets the callback fired when an unstable link's signal rises
// to the recovery threshold.
func (t *Tracker) OnRecovered(fn func(rssi int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecovered = fn
}

// Snapshot returns the current quality record.
func (t *Tracker) Snapshot() Quality {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q
}

// RecordRSSI records a signal strength sample. The caller passes its
// current connection state so the tracker can apply the recovery rule.
func (t *Tracker) RecordRSSI(rssi int, state connection.State) {
	t.mu.Lock()
	t.q.RSSI = rssi
	onChange := t.onChange
	q := t.q

	var transition func(int)
	switch {
	case state == connection.StateReady && rssi < DegradedRSSIThreshold:
		transition = t.onDegraded
	case state == connection.StateUnstable && rssi >= RecoveryRSSIThreshold:
		transition = t.onRecovered
	}
	t.mu.Unlock()

	if onChange != nil {
		onChange(q)
	}
	if transition != nil {
		transition(rssi)
	}
}

// RecordCommandOutcome records the terminal outcome of a command.
func (t *Tracker) RecordCommandOutcome(success bool) {
	t.mu.Lock()
	t.outcomes[t.next] = success
	t.next++
	if t.next == len(t.outcomes) {
		t.next = 0
		t.filled = true
	}

	n := t.next
	if t.filled {
		n = len(t.outcomes)
	}
	ok := 0
	for i := 0; i < n; i++ {
		if t.outcomes[i] {
			ok++
		}
	}
	t.q.SuccessRate = float64(ok) / float64(n)

	onChange := t.onChange
	q := t.q
	t.mu.Unlock()

	if onChange != nil {
		onChange(q)
	}
}

// RecordHeartbeatSuccess records an answered probe and its round-trip
// latency, resetting the miss counter.
func (t *Tracker) RecordHeartbeatSuccess(latency time.Duration) {
	t.mu.Lock()
	t.q.LastHeartbeat = time.Now()
	t.q.HeartbeatLatency = latency
	t.q.MissedHeartbeats = 0
	onChange := t.onChange
	q := t.q
	t.mu.Unlock()

	if onChange != nil {
		onChange(q)
	}
}

// RecordHeartbeatMiss records an unanswered probe.
func (t *Tracker) RecordHeartbeatMiss() {
	t.mu.Lock()
	t.q.MissedHeartbeats++
	onChange := t.onChange
	q := t.q
	t.mu.Unlock()

	if onChange != nil {
		onChange(q)
	}
}

// Reset restores the neutral record (fresh connection).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.q = Quality{SuccessRate: 1.0}
	t.outcomes = make([]bool, SuccessRateWindow)
	t.next = 0
	t.filled = false
}
