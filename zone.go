package memprotogw

import "sync/atomic"

// Zone is a per-request lifetime handle: a reference count plus a set
// of finalizers that run in LIFO order when the last holder releases
// it. Every parsed request gets a fresh Zone with one reference, which
// the Connection hands to the request's response-queue slot; the queue
// releases it once the response has been written, or when the queue is
// invalidated. Any further holder extends the lifetime by calling
// Retain. The byte buffers themselves are ordinary garbage-collected
// memory (see Alloc); the zone keeps no reference to them.
//
// A Zone is not safe for concurrent mutation: it is written by exactly
// one owner at a time (the Connection while building a request, then a
// single backend completion callback while building the response).
// These phases never overlap for a given Zone, since the Connection
// moves on to a fresh Zone as soon as the current one is submitted.
type Zone struct {
	refs       atomic.Int32
	finalizers []func()
}

// NewZone returns a Zone with one implicit reference, held by the
// caller until it calls Release.
func NewZone() *Zone {
	z := &Zone{}
	z.refs.Store(1)
	return z
}

// Retain adds one reference to the zone. Pair with Release.
func (z *Zone) Retain() {
	z.refs.Add(1)
}

// Release drops one reference. When the last reference is dropped, all
// registered finalizers run in LIFO order.
func (z *Zone) Release() {
	if z.refs.Add(-1) == 0 {
		for i := len(z.finalizers) - 1; i >= 0; i-- {
			z.finalizers[i]()
		}
		z.finalizers = nil
	}
}

// PushFinalizer registers f to run (LIFO with other finalizers) when
// the zone's last reference is released.
func (z *Zone) PushFinalizer(f func()) {
	z.finalizers = append(z.finalizers, f)
}

// Alloc returns a zero-filled byte slice of length n, owned by the
// zone. It is a plain heap allocation (Go has no placement-new bump
// arena primitive); the zone's value is in lifetime management, not in
// avoiding the allocator.
func (z *Zone) Alloc(n int) []byte {
	return make([]byte, n)
}
