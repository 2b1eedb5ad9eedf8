package memprotogw

import "sync"

// slotID identifies a reserved response-queue position: stable, unique
// per request, and meaningless once the slot has been filled. A plain
// monotonic counter stands in for the pointer-identity matching a
// reference-counted entry pointer would give for free in a language
// with that idiom.
type slotID uint64

// slotState is either pending (reserved, no bytes yet) or ready
// (formatted bytes in hand, possibly zero-length for a quiet
// miss/error).
type slotState int

const (
	slotPending slotState = iota
	slotReady
)

type slot struct {
	id    slotID
	state slotState
	vec   [][]byte // nil until ready; len(vec)==0 means ready-no-emit
	zone  *Zone
}

// Writer performs a gathered write of vec to the wire. It always
// releases zone exactly once, whether or not the write succeeds.
// Connection supplies the concrete implementation (iovecWriter, see
// iovec.go); the queue never touches the socket directly, keeping wire
// I/O separate from ordering bookkeeping.
type Writer interface {
	WriteVectored(vec [][]byte, zone *Zone) error
}

// ResponseQueue is the per-connection ordered slot list that lets
// out-of-order backend completions still produce strictly in-order
// wire output: every request reserves a slot when it arrives, and
// completions fill their slot whenever they happen to finish; bytes
// only reach the wire once every slot ahead of them is also filled.
type ResponseQueue struct {
	mu    sync.Mutex
	valid bool
	next  slotID
	w     Writer
	slots []*slot
}

// NewResponseQueue returns a valid, empty queue that writes through w.
func NewResponseQueue(w Writer) *ResponseQueue {
	return &ResponseQueue{valid: true, w: w}
}

// PushEntry reserves the next slot in arrival order, attaching the
// request's zone (the same zone the eventual response will be formatted
// into), and returns the slot's id. Called synchronously while a
// request is being framed/dispatched, strictly
// before the corresponding backend.Submit call, so the slot always
// exists before any possible synchronous completion.
func (q *ResponseQueue) PushEntry(zone *Zone) slotID {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.next
	q.next++
	q.slots = append(q.slots, &slot{id: id, state: slotPending, zone: zone})
	return id
}

// ReachedTrySend supplies the formatted response for id (vec may be nil
// or empty for a ready-no-emit slot) and, if id is now the queue head,
// drains every consecutive ready slot to the wire. It is a no-op if the
// queue has been invalidated or id has no pending slot (already
// completed, or belongs to a torn-down connection).
func (q *ResponseQueue) ReachedTrySend(id slotID, vec [][]byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.valid {
		return
	}

	idx := -1
	for i, s := range q.slots {
		if s.id == id && s.state == slotPending {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	q.slots[idx].state = slotReady
	q.slots[idx].vec = vec

	if idx != 0 {
		return
	}

	q.drainLocked()
}

// drainLocked emits and removes every consecutive ready slot at the
// queue head. Caller holds q.mu; the mutex stays held across the write
// call itself, which keeps the ordering logic simple at the cost of
// blocking other slots' completions for the duration of one write.
func (q *ResponseQueue) drainLocked() {
	for len(q.slots) > 0 {
		s := q.slots[0]
		if s.state != slotReady {
			break
		}
		if len(s.vec) > 0 {
			// WriteVectored releases s.zone itself, on both the success
			// and the error path.
			if err := q.w.WriteVectored(s.vec, s.zone); err != nil {
				// The write failed; the connection is going away and will
				// invalidate the queue shortly. Stop draining further
				// slots; Invalidate releases whatever remains.
				q.slots = q.slots[1:]
				return
			}
		} else if s.zone != nil {
			s.zone.Release()
		}
		q.slots = q.slots[1:]
	}
}

// Len reports how many slots (pending or ready but not yet drained) the
// queue currently holds.
func (q *ResponseQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.slots)
}

// IsValid reports whether the queue still accepts completions.
func (q *ResponseQueue) IsValid() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.valid
}

// Invalidate marks the queue dead: every still-pending slot is dropped
// (its zone, if any, released) and all subsequent ReachedTrySend calls
// become silent no-ops. Called on connection teardown so in-flight
// backend completions observe invalidity and stop touching the queue.
func (q *ResponseQueue) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.valid = false
	for _, s := range q.slots {
		if s.zone != nil {
			s.zone.Release()
		}
	}
	q.slots = nil
}
