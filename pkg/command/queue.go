package command

import (
	"errors"
	"sync"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/frame"
)

// Queue errors.
var (
	// ErrNoWriteChannel is returned by a WriteFunc when the device has no
	// usable write channel. The queue maps it to
	// FailureCharacteristicNotFound.
	ErrNoWriteChannel = errors.New("write channel not available")
)

// CompletionFunc receives the terminal outcome of a command.
type CompletionFunc func(Result)

// WriteFunc delivers encoded frame chunks to the transport, in order.
type WriteFunc func(chunks [][]byte) error

// OutcomeFunc observes terminal command outcomes (for success-rate
// tracking). Called with true on success, false on failure or timeout.
type OutcomeFunc func(success bool)

// task is the execution-time wrapper around a Command.
type task struct {
	cmd      Command
	attempts int
	complete CompletionFunc
	timer    *time.Timer
}

// Queue is a per-device FIFO command queue with single in-flight
// execution, timeout, and retry.
//
// Queue bookkeeping (enqueue, dequeue, in-flight tracking, clear) is
// guarded by an internal mutex; frame encoding and transport writes happen
// outside the lock so a slow link never blocks other devices.
type Queue struct {
	mu       sync.Mutex
	pending  []*task
	inflight *task

	write     WriteFunc
	onOutcome OutcomeFunc
}

// NewQueue creates a command queue that writes frames through write.
func NewQueue(write WriteFunc) *Queue {
	return &Queue{write: write}
}

// SetOutcomeCallback sets the observer for terminal command outcomes.
func (q *Queue) SetOutcomeCallback(fn OutcomeFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onOutcome = fn
}

// Submit enqueues a command and nudges the engine.
// The completion callback fires exactly once unless Clear abandons the
// task first.
func (q *Queue) Submit(cmd Command, complete CompletionFunc) {
	if cmd.Timeout <= 0 {
		cmd.Timeout = DefaultTimeout
	}

	q.mu.Lock()
	q.pending = append(q.pending, &task{cmd: cmd, complete: complete})
	q.mu.Unlock()

	q.process()
}

// HandleResponse correlates a decoded response frame with the in-flight
// command. Returns true if the response completed a command; false when
// nothing was in flight or the opcode did not match (unsolicited frames
// are the caller's concern).
func (q *Queue) HandleResponse(opcode byte, payload []byte) bool {
	q.mu.Lock()
	t := q.inflight
	if t == nil || !t.cmd.ResponseRequired || t.cmd.Opcode != opcode {
		q.mu.Unlock()
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	q.inflight = nil
	q.mu.Unlock()

	t.complete(Success(payload))
	q.recordOutcome(true)
	q.process()
	return true
}

// Clear cancels the in-flight timer and drops all queued tasks without
// invoking their completions. Invoked on disconnect/cleanup, when the
// caller has already decided the device is gone.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight != nil && q.inflight.timer != nil {
		q.inflight.timer.Stop()
		q.inflight.timer = nil
	}
	q.inflight = nil
	q.pending = nil
}

// Len returns the number of queued (not in-flight) tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns true while a command is awaiting completion.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight != nil
}

// process dequeues and executes the next task if nothing is in flight.
func (q *Queue) process() {
	for {
		q.mu.Lock()
		if q.inflight != nil || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.inflight = t
		write := q.write
		q.mu.Unlock()

		// Encode and write outside the lock.
		chunks, err := frame.Encode(t.cmd.Opcode, t.cmd.Payload)
		if err == nil {
			t.attempts++
			err = write(chunks)
		}

		if err != nil {
			kind := FailureSendFailed
			if errors.Is(err, ErrNoWriteChannel) {
				kind = FailureCharacteristicNotFound
			}
			q.finish(t, Failure(kind))
			continue
		}

		if !t.cmd.ResponseRequired {
			q.finish(t, Success(nil))
			continue
		}

		// Arm the response timeout. The response may already have raced
		// in, so re-check that the task is still in flight.
		q.mu.Lock()
		if q.inflight == t {
			t.timer = time.AfterFunc(t.cmd.Timeout, func() {
				q.handleTimeout(t)
			})
		}
		q.mu.Unlock()
		return
	}
}

// handleTimeout fires when an in-flight command's response window expires.
func (q *Queue) handleTimeout(t *task) {
	q.mu.Lock()
	if q.inflight != t {
		// Response or Clear won the race.
		q.mu.Unlock()
		return
	}
	t.timer = nil
	q.inflight = nil

	if t.attempts <= t.cmd.MaxRetries {
		// Immediate re-attempt: front of the queue, attempts preserved.
		q.pending = append([]*task{t}, q.pending...)
		q.mu.Unlock()
		q.process()
		return
	}
	q.mu.Unlock()

	t.complete(Timeout())
	q.recordOutcome(false)
	q.process()
}

// finish completes a task with a terminal result and records the outcome.
// Must be called without holding the queue lock.
func (q *Queue) finish(t *task, r Result) {
	q.mu.Lock()
	if q.inflight == t {
		q.inflight = nil
	}
	q.mu.Unlock()

	t.complete(r)
	q.recordOutcome(r.OK())
}

func (q *Queue) recordOutcome(success bool) {
	q.mu.Lock()
	fn := q.onOutcome
	q.mu.Unlock()
	if fn != nil {
		fn(success)
	}
}
