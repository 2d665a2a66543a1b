// Package storage holds each node's per-topic ordered envelope log.
//
// A plain in-memory, volatile map — no write-ahead log, no snapshotting,
// no garbage collection across restarts. Mirrors an ordered
// map<topic, map<seq, bytes>>.
package storage

import (
	"sort"
	"sync"
)

// Storage is a per-topic map from sequence number to a serialized
// envelope. It is safe for concurrent use; every operation is atomic
// with respect to the others and range reads see a consistent snapshot
// (no torn iteration).
type Storage struct {
	mu     sync.RWMutex
	topics map[string]map[uint64][]byte
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{topics: make(map[string]map[uint64][]byte)}
}

// Append stores serialized under (topic, seq), overwriting any existing
// entry there. Idempotent for identical bytes; for differing bytes the
// last writer wins — not expected to matter when uuid dedup upstream is
// correct.
func (s *Storage) Append(topic string, seq uint64, serialized []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.topics[topic]
	if !ok {
		bucket = make(map[uint64][]byte)
		s.topics[topic] = bucket
	}
	bucket[seq] = serialized
}

// Fetch returns all serialized envelopes stored for topic with
// from <= seq <= to, in ascending seq order. Missing slots in the
// range are silently skipped. Returns an empty slice if from > to or
// nothing is stored in range.
func (s *Storage) Fetch(topic string, from, to uint64) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from > to {
		return nil
	}

	bucket, ok := s.topics[topic]
	if !ok {
		return nil
	}

	seqs := make([]uint64, 0, len(bucket))
	for seq := range bucket {
		if seq >= from && seq <= to {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	out := make([][]byte, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, bucket[seq])
	}
	return out
}

// LastSeq returns the greatest seq stored for topic, or 0 if topic has
// no entries.
func (s *Storage) LastSeq(topic string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.topics[topic]
	if !ok || len(bucket) == 0 {
		return 0
	}

	var max uint64
	for seq := range bucket {
		if seq > max {
			max = seq
		}
	}
	return max
}
