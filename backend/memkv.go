// Package backend provides reference memprotogw.Backend implementations.
package backend

import (
	"sync"

	"github.com/kumofs/memprotogw"
	"github.com/kumofs/memprotogw/internal/workerpool"
)

// shardCount is fixed rather than derived from an expected key count:
// this backend exists to exercise the gateway's ordering guarantees
// under test and in the example binary, not to scale a real cache.
const shardCount = 64

type entry struct {
	val []byte
}

type shard struct {
	mu sync.RWMutex
	m  map[string]entry
}

// Memory is a sharded in-memory key/value store implementing
// memprotogw.Backend. Every submission runs on a worker pool so
// completions can land out of order relative to submission. This is
// what makes Memory useful for testing Connection's response
// reordering rather than a trivial synchronous stand-in.
type Memory struct {
	shards [shardCount]shard
	pool   *workerpool.Pool
}

// NewMemory returns a Memory backend whose completions are dispatched
// across workers worker goroutines.
func NewMemory(workers int) *Memory {
	m := &Memory{pool: workerpool.New(workers)}
	for i := range m.shards {
		m.shards[i].m = make(map[string]entry)
	}
	return m
}

// Close stops the backend's worker pool, waiting for in-flight
// submissions to finish. Safe to call once all connections using this
// backend have closed.
func (m *Memory) Close() {
	m.pool.Close()
}

func (m *Memory) shardFor(hash uint64) *shard {
	return &m.shards[hash%shardCount]
}

// SubmitGet implements memprotogw.Backend.
func (m *Memory) SubmitGet(req memprotogw.GetRequest) {
	key := string(req.Key)
	m.pool.Submit(func() {
		s := m.shardFor(req.Hash)
		s.mu.RLock()
		e, ok := s.m[key]
		s.mu.RUnlock()

		if !ok {
			req.Callback(memprotogw.GetResponse{Key: req.Key})
			return
		}
		req.Callback(memprotogw.GetResponse{Key: req.Key, Val: e.val})
	})
}

// SubmitSet implements memprotogw.Backend.
func (m *Memory) SubmitSet(req memprotogw.SetRequest) {
	key := string(req.Key)
	val := make([]byte, len(req.Val))
	copy(val, req.Val)
	m.pool.Submit(func() {
		s := m.shardFor(req.Hash)
		s.mu.Lock()
		s.m[key] = entry{val: val}
		s.mu.Unlock()
		req.Callback(memprotogw.SetResponse{})
	})
}

// SubmitDelete implements memprotogw.Backend.
func (m *Memory) SubmitDelete(req memprotogw.DeleteRequest) {
	key := string(req.Key)
	m.pool.Submit(func() {
		s := m.shardFor(req.Hash)
		s.mu.Lock()
		_, existed := s.m[key]
		delete(s.m, key)
		s.mu.Unlock()
		req.Callback(memprotogw.DeleteResponse{Deleted: existed})
	})
}
