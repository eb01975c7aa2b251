package heartbeat

import (
	"sync"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/command"
)

// Heartbeat constants.
const (
	// Opcode is the wire opcode of a heartbeat probe.
	Opcode byte = 0x01

	// DefaultInterval is the default time between probes.
	DefaultInterval = 3 * time.Second

	// DefaultProbeTimeout is the default per-probe response timeout.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultMaxMisses is the default number of consecutive misses before
	// the monitor reports failure.
	DefaultMaxMisses = 3
)

// Config configures a heartbeat monitor.
type Config struct {
	// Interval is the time between probes.
	Interval time.Duration

	// ProbeTimeout is the per-probe response timeout.
	ProbeTimeout time.Duration

	// MaxMisses is the consecutive miss count that triggers failure.
	MaxMisses int
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		ProbeTimeout: DefaultProbeTimeout,
		MaxMisses:    DefaultMaxMisses,
	}
}

// DetectionDelay returns the worst-case time to detect a dead link.
func (c Config) DetectionDelay() time.Duration {
	return c.Interval*time.Duration(c.MaxMisses) + c.ProbeTimeout
}

// SubmitFunc submits a probe command to the device's command queue.
type SubmitFunc func(cmd command.Command, complete command.CompletionFunc)

// Monitor issues periodic liveness probes for one peripheral.
type Monitor struct {
	config Config
	submit SubmitFunc

	onSuccess func(latency time.Duration)
	onFailure func()
	onMiss    func(misses int)

	mu           sync.Mutex
	running      bool
	probePending bool
	probeSent    time.Time
	misses       int
	lastResponse time.Time
	stopCh       chan struct{}
}

// NewMonitor creates a heartbeat monitor. onSuccess fires for every
// answered probe with its round-trip latency; onFailure fires once when
// the miss threshold is reached.
func NewMonitor(config Config, submit SubmitFunc, onSuccess func(latency time.Duration), onFailure func()) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	if config.MaxMisses <= 0 {
		config.MaxMisses = DefaultMaxMisses
	}

	return &Monitor{
		config:    config,
		submit:    submit,
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
}

// OnMiss sets a callback fired for every unanswered probe with the
// running consecutive miss count. Set before Start.
func (m *Monitor) OnMiss(fn func(misses int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMiss = fn
}

// Start begins probing. A second Start while running is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.misses = 0
	m.probePending = false
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.loop(stopCh)
}

// Stop cancels the probe timer. No further ticks fire after Stop returns;
// a probe already in flight is ignored when it completes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// IsRunning returns true while the monitor is probing.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats reports current monitor statistics.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Misses:       m.misses,
		ProbePending: m.probePending,
		LastResponse: m.lastResponse,
	}
}

// Stats holds monitor statistics.
type Stats struct {
	Misses       int
	ProbePending bool
	LastResponse time.Time
}

func (m *Monitor) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	// First probe immediately rather than one interval in.
	m.sendProbe()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.sendProbe()
		}
	}
}

// sendProbe submits one probe unless the previous one is still pending.
func (m *Monitor) sendProbe() {
	m.mu.Lock()
	if !m.running || m.probePending {
		m.mu.Unlock()
		return
	}
	m.probePending = true
	m.probeSent = time.Now()
	m.mu.Unlock()

	probe := command.Command{
		Opcode:           Opcode,
		ResponseRequired: true,
		Timeout:          m.config.ProbeTimeout,
		Heartbeat:        true,
	}
	m.submit(probe, m.handleOutcome)
}

// handleOutcome processes a probe's terminal result.
func (m *Monitor) handleOutcome(r command.Result) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.probePending = false

	if r.OK() {
		latency := time.Since(m.probeSent)
		m.misses = 0
		m.lastResponse = time.Now()
		onSuccess := m.onSuccess
		m.mu.Unlock()

		if onSuccess != nil {
			onSuccess(latency)
		}
		return
	}

	m.misses++
	misses := m.misses
	threshold := m.misses >= m.config.MaxMisses
	if threshold {
		// Fire once per threshold crossing; the counter restarts so a
		// link that keeps missing does not re-trigger every probe.
		m.misses = 0
	}
	onMiss := m.onMiss
	onFailure := m.onFailure
	m.mu.Unlock()

	if onMiss != nil {
		onMiss(misses)
	}
	if threshold && onFailure != nil {
		onFailure()
	}
}
