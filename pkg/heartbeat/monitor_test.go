package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/command"
)

func TestConfigDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.Interval != DefaultInterval || c.ProbeTimeout != DefaultProbeTimeout || c.MaxMisses != DefaultMaxMisses {
		t.Errorf("unexpected defaults: %+v", c)
	}

	// 3 * 3s + 2s = 11s worst case.
	if d := c.DetectionDelay(); d != 11*time.Second {
		t.Errorf("DetectionDelay = %v, want 11s", d)
	}
}

func TestProbesAreHeartbeatFlagged(t *testing.T) {
	probes := make(chan command.Command, 1)
	m := NewMonitor(Config{Interval: time.Hour},
		func(cmd command.Command, complete command.CompletionFunc) {
			probes <- cmd
		},
		nil, nil)

	m.Start()
	defer m.Stop()

	select {
	case cmd := <-probes:
		if !cmd.Heartbeat {
			t.Error("probe not heartbeat-flagged")
		}
		if cmd.Opcode != Opcode {
			t.Errorf("probe opcode = %#x, want %#x", cmd.Opcode, Opcode)
		}
		if !cmd.ResponseRequired {
			t.Error("probe must require a response")
		}
		if cmd.Timeout != DefaultProbeTimeout {
			t.Errorf("probe timeout = %v, want %v", cmd.Timeout, DefaultProbeTimeout)
		}
	case <-time.After(time.Second):
		t.Fatal("no probe submitted")
	}
}

func TestSuccessResetsMissesAndReportsLatency(t *testing.T) {
	var complete atomic.Value // command.CompletionFunc
	m := NewMonitor(Config{Interval: 30 * time.Millisecond},
		func(cmd command.Command, c command.CompletionFunc) {
			complete.Store(c)
		},
		nil, nil)

	latencies := make(chan time.Duration, 4)
	m.onSuccess = func(d time.Duration) { latencies <- d }

	m.Start()
	defer m.Stop()

	time.Sleep(10 * time.Millisecond)
	if c, ok := complete.Load().(command.CompletionFunc); ok {
		c(command.Success(nil))
	}

	select {
	case d := <-latencies:
		if d <= 0 {
			t.Errorf("latency = %v, want > 0", d)
		}
	case <-time.After(time.Second):
		t.Fatal("success callback never fired")
	}

	if s := m.Stats(); s.Misses != 0 || s.LastResponse.IsZero() {
		t.Errorf("stats = %+v, want zero misses and recorded response", s)
	}
}

func TestMissThresholdFiresFailureOnce(t *testing.T) {
	var failures atomic.Int32

	// Submit completes every probe with a timeout immediately.
	m := NewMonitor(Config{Interval: 10 * time.Millisecond, MaxMisses: 3},
		func(cmd command.Command, complete command.CompletionFunc) {
			go complete(command.Timeout())
		},
		nil,
		func() { failures.Add(1) },
	)

	m.Start()

	// 3 probes at 10ms spacing reach the threshold well within 200ms.
	time.Sleep(200 * time.Millisecond)
	m.Stop()

	// The counter restarts after firing, so a second crossing may occur in
	// a long window; what must not happen is one firing per miss.
	n := failures.Load()
	if n < 1 {
		t.Fatal("failure callback never fired")
	}
	if n > 7 {
		t.Errorf("failure fired %d times, expected once per threshold crossing", n)
	}
}

func TestSingleProbeInFlight(t *testing.T) {
	var outstanding atomic.Int32
	var peak atomic.Int32

	m := NewMonitor(Config{Interval: 10 * time.Millisecond},
		func(cmd command.Command, complete command.CompletionFunc) {
			n := outstanding.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			// Never complete: the probe stays pending.
		},
		nil, nil)

	m.Start()
	time.Sleep(100 * time.Millisecond)
	m.Stop()

	if peak.Load() != 1 {
		t.Errorf("peak outstanding probes = %d, want 1", peak.Load())
	}
}

func TestStopSilencesLateCompletions(t *testing.T) {
	var complete atomic.Value
	var successes atomic.Int32

	m := NewMonitor(Config{Interval: time.Hour},
		func(cmd command.Command, c command.CompletionFunc) {
			complete.Store(c)
		},
		func(time.Duration) { successes.Add(1) },
		nil)

	m.Start()
	time.Sleep(10 * time.Millisecond)
	m.Stop()

	// A completion arriving after Stop must be ignored.
	if c, ok := complete.Load().(command.CompletionFunc); ok {
		c(command.Success(nil))
	}
	if successes.Load() != 0 {
		t.Errorf("late completion counted: %d", successes.Load())
	}
	if m.IsRunning() {
		t.Error("monitor still running after Stop")
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	var probes atomic.Int32
	m := NewMonitor(Config{Interval: time.Hour},
		func(cmd command.Command, complete command.CompletionFunc) {
			probes.Add(1)
		},
		nil, nil)

	m.Start()
	m.Start()
	defer m.Stop()

	time.Sleep(20 * time.Millisecond)
	if probes.Load() != 1 {
		t.Errorf("probes = %d, want 1 (single loop)", probes.Load())
	}
}
