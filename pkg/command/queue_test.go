package command

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitWithoutResponseCompletesImmediately(t *testing.T) {
	var writes atomic.Int32
	q := NewQueue(func(chunks [][]byte) error {
		writes.Add(1)
		return nil
	})

	done := make(chan Result, 1)
	q.Submit(New(0x10, nil, false), func(r Result) {
		done <- r
	})

	select {
	case r := <-done:
		if !r.OK() {
			t.Errorf("result = %v, want success", r.Status)
		}
		if r.Payload != nil {
			t.Errorf("payload = %x, want nil", r.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("completion never fired")
	}

	if writes.Load() != 1 {
		t.Errorf("writes = %d, want 1", writes.Load())
	}
	if q.InFlight() {
		t.Error("queue still in flight after completion")
	}
}

func TestResponseCorrelation(t *testing.T) {
	q := NewQueue(func(chunks [][]byte) error { return nil })

	done := make(chan Result, 1)
	cmd := New(0x21, []byte{0x01}, true)
	q.Submit(cmd, func(r Result) { done <- r })

	// Wrong opcode must not complete the command.
	if q.HandleResponse(0x22, nil) {
		t.Error("mismatched opcode completed the command")
	}

	if !q.HandleResponse(0x21, []byte{0xAB}) {
		t.Fatal("matching response not correlated")
	}

	select {
	case r := <-done:
		if !r.OK() {
			t.Errorf("result = %v, want success", r.Status)
		}
		if len(r.Payload) != 1 || r.Payload[0] != 0xAB {
			t.Errorf("payload = %x, want ab", r.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("completion never fired")
	}
}

func TestRetryProducesExactWriteCount(t *testing.T) {
	var writes atomic.Int32
	q := NewQueue(func(chunks [][]byte) error {
		writes.Add(1)
		return nil
	})

	cmd := Command{
		Opcode:           0x33,
		ResponseRequired: true,
		Timeout:          20 * time.Millisecond,
		MaxRetries:       2,
	}

	done := make(chan Result, 1)
	q.Submit(cmd, func(r Result) { done <- r })

	select {
	case r := <-done:
		if r.Status != StatusTimeout {
			t.Errorf("result = %v, want timeout", r.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("completion never fired")
	}

	// 1 initial attempt + 2 retries.
	if writes.Load() != 3 {
		t.Errorf("writes = %d, want 3", writes.Load())
	}
}

func TestFIFOCompletionOrder(t *testing.T) {
	q := NewQueue(func(chunks [][]byte) error { return nil })

	var mu sync.Mutex
	var got []byte
	var wg sync.WaitGroup
	wg.Add(3)
	for _, op := range []byte{0x0A, 0x0B, 0x0C} {
		op := op
		q.Submit(New(op, nil, false), func(r Result) {
			mu.Lock()
			got = append(got, op)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []byte{0x0A, 0x0B, 0x0C}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("completion order = %x, want %x", got, want)
		}
	}
}

func TestSingleInFlight(t *testing.T) {
	release := make(chan struct{})
	var concurrent atomic.Int32
	var peak atomic.Int32

	q := NewQueue(func(chunks [][]byte) error {
		n := concurrent.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		concurrent.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		q.Submit(New(0x01, nil, false), func(Result) { wg.Done() })
	}()
	go func() {
		q.Submit(New(0x02, nil, false), func(Result) { wg.Done() })
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak concurrent writes = %d, want 1", peak.Load())
	}
}

func TestWriteChannelMissing(t *testing.T) {
	q := NewQueue(func(chunks [][]byte) error {
		return ErrNoWriteChannel
	})

	done := make(chan Result, 1)
	q.Submit(New(0x05, nil, true), func(r Result) { done <- r })

	select {
	case r := <-done:
		if r.Status != StatusFailure || r.Failure != FailureCharacteristicNotFound {
			t.Errorf("result = %v/%v, want failure/characteristic not found", r.Status, r.Failure)
		}
	case <-time.After(time.Second):
		t.Fatal("completion never fired")
	}
}

func TestSendFailed(t *testing.T) {
	q := NewQueue(func(chunks [][]byte) error {
		return errors.New("radio rejected write")
	})

	done := make(chan Result, 1)
	q.Submit(New(0x06, nil, false), func(r Result) { done <- r })

	r := <-done
	if r.Status != StatusFailure || r.Failure != FailureSendFailed {
		t.Errorf("result = %v/%v, want failure/send failed", r.Status, r.Failure)
	}
}

func TestClearAbandonsTasks(t *testing.T) {
	q := NewQueue(func(chunks [][]byte) error { return nil })

	var completions atomic.Int32
	cmd := Command{Opcode: 0x44, ResponseRequired: true, Timeout: 50 * time.Millisecond}
	q.Submit(cmd, func(Result) { completions.Add(1) })
	q.Submit(cmd, func(Result) { completions.Add(1) })

	q.Clear()

	// Give any stray timer a chance to fire.
	time.Sleep(100 * time.Millisecond)

	if n := completions.Load(); n != 0 {
		t.Errorf("completions after Clear = %d, want 0", n)
	}
	if q.Len() != 0 {
		t.Errorf("queue length after Clear = %d, want 0", q.Len())
	}
	if q.InFlight() {
		t.Error("queue in flight after Clear")
	}
}

func TestOutcomeCallback(t *testing.T) {
	q := NewQueue(func(chunks [][]byte) error { return nil })

	var successes, failures atomic.Int32
	q.SetOutcomeCallback(func(ok bool) {
		if ok {
			successes.Add(1)
		} else {
			failures.Add(1)
		}
	})

	done := make(chan struct{}, 2)
	q.Submit(New(0x01, nil, false), func(Result) { done <- struct{}{} })
	<-done

	cmd := Command{Opcode: 0x02, ResponseRequired: true, Timeout: 10 * time.Millisecond}
	q.Submit(cmd, func(Result) { done <- struct{}{} })
	<-done

	if successes.Load() != 1 {
		t.Errorf("successes = %d, want 1", successes.Load())
	}
	if failures.Load() != 1 {
		t.Errorf("failures = %d, want 1", failures.Load())
	}
}

func TestRetryPreemptsQueuedCommands(t *testing.T) {
	var mu sync.Mutex
	var writeOrder []byte

	q := NewQueue(func(chunks [][]byte) error {
		mu.Lock()
		// First chunk starts with the 2-byte header; opcode is third.
		writeOrder = append(writeOrder, chunks[0][2])
		mu.Unlock()
		return nil
	})

	timingOut := Command{
		Opcode:           0xA1,
		ResponseRequired: true,
		Timeout:          20 * time.Millisecond,
		MaxRetries:       1,
	}

	done := make(chan struct{}, 2)
	q.Submit(timingOut, func(Result) { done <- struct{}{} })
	q.Submit(New(0xB2, nil, false), func(Result) { done <- struct{}{} })

	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	// The timed-out command re-attempts before the queued one runs.
	want := []byte{0xA1, 0xA1, 0xB2}
	if len(writeOrder) != len(want) {
		t.Fatalf("write order = %x, want %x", writeOrder, want)
	}
	for i := range want {
		if writeOrder[i] != want[i] {
			t.Fatalf("write order = %x, want %x", writeOrder, want)
		}
	}
}
