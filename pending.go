package cats

import (
	"sync"
	"time"
)

// pendingResult is delivered to the handler goroutine blocked in
// Request.Input when the peer answers, cancels, or the connection closes.
type pendingResult struct {
	req *InputRequest
	err error
}

// pendingInput is one entry in the per-connection pending-inputs table
// (spec.md §3): a promise keyed by message_id, with an optional timer and
// the channel the awaiting handler goroutine blocks on.
type pendingInput struct {
	ch    chan pendingResult
	timer *time.Timer
}

// pendingTable owns the connection's pending-inputs map. Mutated only from
// the connection's reactor goroutine and resolved from it too, except for
// Connection.Close which may run concurrently with the read loop during
// teardown — hence the mutex (spec.md §5 "owned and mutated only from its
// reactor task" is relaxed exactly for the close path).
type pendingTable struct {
	mu      sync.Mutex
	entries map[uint16]*pendingInput
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint16]*pendingInput)}
}

// register installs a new pending entry for messageID, starting a timer
// that resolves it with ErrInputTimeout after d (0 disables the timer).
func (t *pendingTable) register(messageID uint16, d time.Duration) *pendingInput {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &pendingInput{ch: make(chan pendingResult, 1)}
	if d > 0 {
		p.timer = time.AfterFunc(d, func() {
			t.resolve(messageID, pendingResult{err: ErrInputTimeout})
		})
	}
	t.entries[messageID] = p
	return p
}

// resolve delivers result to the pending entry for messageID, if any, and
// removes it. Returns false if no entry was pending (an unexpected
// InputRequest/CancelInput per spec.md §4.3).
func (t *pendingTable) resolve(messageID uint16, result pendingResult) bool {
	t.mu.Lock()
	p, ok := t.entries[messageID]
	if ok {
		delete(t.entries, messageID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.ch <- result
	return true
}

// closeAll resolves every still-pending entry with err, used when the
// connection closes (spec.md §5).
func (t *pendingTable) closeAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint16]*pendingInput)
	t.mu.Unlock()
	for id, p := range entries {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.ch <- pendingResult{err: err}
		_ = id
	}
}
