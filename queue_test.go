package memprotogw

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingWriter captures every WriteVectored call's concatenated
// bytes, in the order the queue issued them.
type recordingWriter struct {
	mu      sync.Mutex
	writes  [][]byte
	release []*Zone
}

func (w *recordingWriter) WriteVectored(vec [][]byte, zone *Zone) error {
	defer zone.Release()
	w.mu.Lock()
	defer w.mu.Unlock()
	var buf []byte
	for _, b := range vec {
		buf = append(buf, b...)
	}
	w.writes = append(w.writes, buf)
	return nil
}

func TestResponseQueueDrainsInArrivalOrderDespiteOutOfOrderCompletion(t *testing.T) {
	w := &recordingWriter{}
	q := NewResponseQueue(w)

	id1 := q.PushEntry(NewZone())
	id2 := q.PushEntry(NewZone())
	id3 := q.PushEntry(NewZone())

	// Complete out of order: 3, then 1, then 2.
	q.ReachedTrySend(id3, [][]byte{[]byte("three")})
	require.Empty(t, w.writes, "nothing should drain until the head slot is ready")

	q.ReachedTrySend(id1, [][]byte{[]byte("one")})
	require.Equal(t, [][]byte{[]byte("one")}, w.writes)

	q.ReachedTrySend(id2, [][]byte{[]byte("two")})
	require.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, w.writes)
}

func TestResponseQueueReadyNoEmitSlotIsSkippedButKeepsOrder(t *testing.T) {
	w := &recordingWriter{}
	q := NewResponseQueue(w)

	id1 := q.PushEntry(NewZone())
	id2 := q.PushEntry(NewZone()) // quiet miss: zero-length completion
	id3 := q.PushEntry(NewZone())

	q.ReachedTrySend(id2, nil)
	q.ReachedTrySend(id3, [][]byte{[]byte("three")})
	require.Empty(t, w.writes)

	q.ReachedTrySend(id1, [][]byte{[]byte("one")})
	require.Equal(t, [][]byte{[]byte("one"), []byte("three")}, w.writes)
}

func TestResponseQueueInvalidateReleasesPendingZones(t *testing.T) {
	w := &recordingWriter{}
	q := NewResponseQueue(w)

	released := false
	z := NewZone()
	z.PushFinalizer(func() { released = true })
	q.PushEntry(z)

	require.True(t, q.IsValid())
	q.Invalidate()
	require.False(t, q.IsValid())
	require.True(t, released)

	// A completion arriving after invalidation is a silent no-op.
	q.ReachedTrySend(0, [][]byte{[]byte("late")})
	require.Empty(t, w.writes)
}

func TestResponseQueueSingleSlotDrainsImmediately(t *testing.T) {
	w := &recordingWriter{}
	q := NewResponseQueue(w)

	id := q.PushEntry(NewZone())
	q.ReachedTrySend(id, [][]byte{[]byte("only")})
	require.Equal(t, [][]byte{[]byte("only")}, w.writes)
}
