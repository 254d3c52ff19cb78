// Package track correlates outbound request identifiers with the
// acknowledgments the exchange sends back and measures per-ack latency.
// The protocol can emit up to two acknowledgments per request: a
// synchronous ack followed by an asynchronous result.
package track

import (
	"sync"
	"time"

	"gateprobe/models"
)

// maxAcks is the number of acknowledgments after which an entry is
// retired regardless of status.
const maxAcks = 2

// Latency records one acknowledgment's delay relative to submission.
type Latency struct {
	AckIndex int
	Latency  time.Duration
}

// Summary is produced when an entry retires and carries every recorded
// latency plus the delta between the first and second acknowledgment
// when both exist.
type Summary struct {
	RequestID string
	Latencies []Latency
	PairDelta time.Duration
	HasPair   bool
}

type entry struct {
	sentAt   time.Time
	received []Latency
}

// Tracker maps outstanding request identifiers to their send timestamps.
// All methods are safe for concurrent use; calls for the same id are
// serialized so acknowledgment counts are never lost.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*entry
	clock   func() time.Time
}

// New creates an empty tracker using the wall clock.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock creates a tracker with an injectable clock.
func NewWithClock(clock func() time.Time) *Tracker {
	return &Tracker{
		pending: make(map[string]*entry),
		clock:   clock,
	}
}

// Begin records the send timestamp for a request identifier. The id must
// not already be pending; identifiers are never reused while tracked.
func (t *Tracker) Begin(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = &entry{sentAt: t.clock()}
}

// Observe matches an inbound acknowledgment to its request. It appends
// the acknowledgment's latency to the entry and returns it together
// with the acknowledgment's index. Unknown or already-retired
// identifiers return ok=false: the frame is not a tracked response and
// must not resurrect anything.
func (t *Tracker) Observe(id string, receivedAt time.Time) (Latency, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.pending[id]
	if !ok {
		return Latency{}, false
	}
	ack := Latency{AckIndex: len(e.received) + 1, Latency: receivedAt.Sub(e.sentAt)}
	e.received = append(e.received, ack)
	return ack, true
}

// Complete retires the entry when a terminal condition holds: two or
// more acknowledgments received, or a status signalling definitive
// success or rejection. It returns the latency summary and true when the
// entry was retired; otherwise the entry stays pending and ok is false.
func (t *Tracker) Complete(id, status string) (Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.pending[id]
	if !ok {
		return Summary{}, false
	}
	terminal := len(e.received) >= maxAcks ||
		status == models.StatusOrderCreated || status == models.StatusOrderReject
	if !terminal {
		return Summary{}, false
	}

	s := Summary{
		RequestID: id,
		Latencies: append([]Latency(nil), e.received...),
	}
	if len(e.received) >= 2 {
		s.PairDelta = e.received[1].Latency - e.received[0].Latency
		s.HasPair = true
	}
	delete(t.pending, id)
	return s, true
}

// Pending reports the number of outstanding entries.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
