package memprotogw

// Backend is the external routing/hashing layer this gateway submits
// work to: submit returns immediately, and the matching callback may be
// invoked later on any goroutine, in any order relative to other
// submissions on the same connection. Reimposing per-connection order
// on top of this is the whole reason ResponseQueue exists.
//
// The production router (hash-space gossip, node selection, RPC to
// storage nodes) is out of this module's scope; package backend ships
// memkv, a sharded in-memory Backend used by tests and the example
// binary.
type Backend interface {
	SubmitGet(req GetRequest)
	SubmitSet(req SetRequest)
	SubmitDelete(req DeleteRequest)
}

// GetRequest is a get/getq/getk/getkq submission.
type GetRequest struct {
	Key      []byte
	Hash     uint64
	Zone     *Zone
	Callback func(GetResponse)
}

// GetResponse is the completion of a GetRequest. Err set means the
// backend failed the request. Err unset and Val nil means a miss.
type GetResponse struct {
	Err  error
	Key  []byte
	Val  []byte
	Zone *Zone
}

// SetRequest is a set submission.
type SetRequest struct {
	Key      []byte
	Val      []byte
	Hash     uint64
	Zone     *Zone
	Callback func(SetResponse)
}

// SetResponse is the completion of a SetRequest.
type SetResponse struct {
	Err error
}

// DeleteRequest is a delete submission.
type DeleteRequest struct {
	Key      []byte
	Hash     uint64
	Zone     *Zone
	Callback func(DeleteResponse)
}

// DeleteResponse is the completion of a DeleteRequest. Deleted is only
// meaningful when Err is nil.
type DeleteResponse struct {
	Err     error
	Deleted bool
}

// keyHash is the stable, host-agreed hash function used for routing:
// identical input always maps to the same node regardless of which
// gateway instance computes it. FNV-1a is cheap, allocation-free, and
// matches the "stable host-agreed function" requirement without
// pulling in a dedicated hashing dependency for a single 64-bit digest.
func keyHash(key []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range key {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}
