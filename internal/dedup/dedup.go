// Package dedup implements the Deduplicator: a concurrent set of
// envelope uuids seen so far, backed by a mutex-guarded map.
package dedup

import "sync"

// Deduplicator is a thread-safe set of 16-byte envelope uuids. It grows
// monotonically for the life of the process — there is no removal
// operation, per spec.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[[16]byte]struct{}
}

// New creates an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{seen: make(map[[16]byte]struct{})}
}

// IsDuplicateAndMark atomically checks whether uuid has been seen
// before and marks it as seen. It returns true if uuid was already
// present (a duplicate), false the first time a given uuid is
// encountered. Exactly one concurrent caller for a given uuid ever
// observes false.
func (d *Deduplicator) IsDuplicateAndMark(uuid [16]byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[uuid]; ok {
		return true
	}
	d.seen[uuid] = struct{}{}
	return false
}
