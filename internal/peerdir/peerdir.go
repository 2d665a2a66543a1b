// Package peerdir implements the node's view of its peers: the
// node_id -> (addr, per-topic frontier) directory built from received
// heartbeats.
//
// RWMutex-guarded map with snapshot-by-copy reads. There is no notion
// of key ownership here — every peer is just an address plus a
// per-topic frontier, not a partition owner.
package peerdir

import "sync"

// Info is one peer's directory entry: its unicast fetch endpoint and
// the highest seq it has advertised per topic.
type Info struct {
	Addr    string
	LastSeq map[string]uint64
}

// Directory is the node's peer directory. Safe for concurrent use.
// Readers who need to perform network I/O must Snapshot first and
// release the lock before calling out — see internal/node's repair
// protocol, the one place this matters.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]Info
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{peers: make(map[string]Info)}
}

// Update applies a heartbeat from peer nodeID: addr is replaced
// wholesale, and each (topic, seq) pair in lastSeq overwrites that
// topic's frontier. Topics absent from lastSeq are left untouched —
// they retain whatever frontier was previously advertised, since a
// node that heartbeats only its active topics shouldn't look like it
// regressed on the others.
func (d *Directory) Update(nodeID, addr string, lastSeq map[string]uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.peers[nodeID]
	if !ok {
		info = Info{LastSeq: make(map[string]uint64)}
	}
	info.Addr = addr
	for topic, seq := range lastSeq {
		info.LastSeq[topic] = seq
	}
	d.peers[nodeID] = info
}

// Snapshot returns a deep copy of the directory, safe to range over
// without holding the Directory's lock across blocking I/O.
func (d *Directory) Snapshot() map[string]Info {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]Info, len(d.peers))
	for id, info := range d.peers {
		lastSeq := make(map[string]uint64, len(info.LastSeq))
		for topic, seq := range info.LastSeq {
			lastSeq[topic] = seq
		}
		out[id] = Info{Addr: info.Addr, LastSeq: lastSeq}
	}
	return out
}

// Addrs returns a snapshot mapping node_id -> unicast addr only,
// exposing addresses without the per-topic frontiers even though the
// internal map carries them too.
func (d *Directory) Addrs() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]string, len(d.peers))
	for id, info := range d.peers {
		out[id] = info.Addr
	}
	return out
}
