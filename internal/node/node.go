// Package node implements the Node orchestrator: the object that owns
// a publisher's outbound sequence counters, wires the multicast and
// unicast transports to storage/dedup/peerdir, and runs the
// background receive, heartbeat, and fetch-server loops.
//
// Lifecycle is created -> running -> stopped: an atomic running flag
// guards idempotent Start/Stop, background loops join through a
// sync.WaitGroup, and shutdown is bounded the way a graceful HTTP
// server shutdown is.
package node

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"spiderweb/internal/dedup"
	"spiderweb/internal/peerdir"
	"spiderweb/internal/storage"
	"spiderweb/internal/transport"
	"spiderweb/internal/wire"
)

const heartbeatInterval = 2 * time.Second

// Config carries a node's startup parameters: identity, the unicast
// fetch endpoint, and the two multicast groups (payload and control).
type Config struct {
	NodeID       string
	UnicastAddr  string // this node's own bind address, advertised in heartbeats
	PayloadMcast string
	PayloadPort  int
	CtrlMcast    string
	CtrlPort     int
}

// Node is one spiderweb overlay participant.
type Node struct {
	cfg Config

	storage *storage.Storage
	dedup   *dedup.Deduplicator
	peers   *peerdir.Directory

	payloadTransport *transport.DatagramTransport
	ctrlTransport    *transport.DatagramTransport
	fetchServer      *transport.FetchServer
	fetchClient      *transport.FetchClient

	outMu  sync.Mutex
	outSeq map[string]uint64 // last seq assigned per topic, this node's own publications

	running atomic.Bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// New constructs a Node. Transports and servers are not yet open; call
// Start to bring the node up.
func New(cfg Config) *Node {
	return &Node{
		cfg:              cfg,
		storage:          storage.New(),
		dedup:            dedup.New(),
		peers:            peerdir.New(),
		payloadTransport: transport.New(cfg.PayloadMcast, cfg.PayloadPort),
		ctrlTransport:    transport.New(cfg.CtrlMcast, cfg.CtrlPort),
		fetchClient:      transport.NewFetchClient(),
		outSeq:           make(map[string]uint64),
	}
}

// Start joins both multicast groups, starts the fetch server, and
// launches the receive and heartbeat loops. It is not safe to call
// Start more than once.
func (n *Node) Start() error {
	if !n.running.CompareAndSwap(false, true) {
		return fmt.Errorf("node: already running")
	}
	n.stopCh = make(chan struct{})

	if err := n.payloadTransport.InitSender(); err != nil {
		return fmt.Errorf("node: payload sender: %w", err)
	}
	if err := n.payloadTransport.InitReceiver(); err != nil {
		return fmt.Errorf("node: payload receiver: %w", err)
	}
	if err := n.ctrlTransport.InitSender(); err != nil {
		return fmt.Errorf("node: control sender: %w", err)
	}
	if err := n.ctrlTransport.InitReceiver(); err != nil {
		return fmt.Errorf("node: control receiver: %w", err)
	}

	n.fetchServer = transport.NewFetchServer(n.cfg.UnicastAddr, n.handleFetch)
	n.fetchServer.Start()

	n.payloadTransport.StartRecv(n.handlePayload)
	n.ctrlTransport.StartRecv(n.handleHeartbeat)

	n.wg.Add(1)
	go n.heartbeatLoop()

	return nil
}

// Stop brings the node down idempotently: it is safe to call more
// than once, and safe to call without a prior Start.
func (n *Node) Stop() {
	if !n.running.CompareAndSwap(true, false) {
		return
	}
	close(n.stopCh)
	n.wg.Wait()

	n.payloadTransport.StopRecv()
	n.ctrlTransport.StopRecv()
	n.payloadTransport.Close()
	n.ctrlTransport.Close()
	if n.fetchServer != nil {
		n.fetchServer.Stop()
	}
}

// Publish allocates the next sequence number for topic, broadcasts the
// envelope on the payload multicast group, and only then appends it to
// local storage — send-then-store, so a slow local append never delays
// the wire send.
func (n *Node) Publish(topic string, payload []byte) error {
	seq := n.nextSeq(topic)

	env, err := wire.NewEnvelope(topic, seq, wire.Payload{Data: payload})
	if err != nil {
		return fmt.Errorf("node: publish: %w", err)
	}
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("node: publish: %w", err)
	}

	if err := n.payloadTransport.Send(data); err != nil {
		return fmt.Errorf("node: publish: send: %w", err)
	}

	n.dedup.IsDuplicateAndMark(env.UUID)
	n.storage.Append(topic, seq, data)
	return nil
}

// Peers returns the current node_id -> unicast addr view. Per-topic
// frontiers are intentionally not exposed here — advertising a
// frontier is an offer to serve repairs, and that detail belongs to
// the peer directory, not the public surface.
func (n *Node) Peers() map[string]string {
	return n.peers.Addrs()
}

func (n *Node) nextSeq(topic string) uint64 {
	n.outMu.Lock()
	defer n.outMu.Unlock()
	n.outSeq[topic]++
	return n.outSeq[topic]
}

// handlePayload is the payload multicast receive callback: parse,
// dedup, store, and detect-and-repair a gap. Runs on the transport's
// receive goroutine, so it must not block on network I/O while holding
// any lock — the repair call below snapshots peerdir before it dials
// out.
func (n *Node) handlePayload(data []byte) {
	env, err := wire.UnmarshalEnvelope(data)
	if err != nil {
		return
	}
	if n.dedup.IsDuplicateAndMark(env.UUID) {
		return
	}

	prevLast := n.storage.LastSeq(env.Topic)
	n.storage.Append(env.Topic, env.Seq, data)

	if env.Seq > prevLast+1 {
		n.repair(env.Topic, prevLast+1, env.Seq-1)
	}
}

// repair fetches envelopes for topic in [from, to] from the first peer
// whose advertised frontier covers the gap and whose response carries
// at least one envelope. That response ends the attempt even if it
// does not cover the whole range; a transport failure, a parse
// failure, or an empty envelope list moves on to the next peer.
func (n *Node) repair(topic string, from, to uint64) {
	snapshot := n.peers.Snapshot()

	req := wire.FetchRequest{Topic: topic, From: from, To: to}
	reqBytes, err := req.Marshal()
	if err != nil {
		return
	}

	for _, info := range snapshot {
		if info.LastSeq[topic] < to {
			continue
		}

		respBytes := n.fetchClient.FetchFrom(info.Addr, reqBytes)
		if len(respBytes) == 0 {
			continue
		}
		resp, err := wire.UnmarshalFetchResponse(respBytes)
		if err != nil || len(resp.Envelopes) == 0 {
			continue
		}

		for _, env := range resp.Envelopes {
			if n.dedup.IsDuplicateAndMark(env.UUID) {
				continue
			}
			serialized, err := env.Marshal()
			if err != nil {
				continue
			}
			n.storage.Append(env.Topic, env.Seq, serialized)
		}
		return
	}
}

// handleHeartbeat is the control multicast receive callback.
func (n *Node) handleHeartbeat(data []byte) {
	hb, err := wire.UnmarshalHeartbeat(data)
	if err != nil {
		return
	}
	if hb.NodeID == n.cfg.NodeID {
		return
	}
	n.peers.Update(hb.NodeID, hb.Addr, hb.LastSeq)
}

// handleFetch answers a unicast fetch request from local storage. An
// unparseable request yields an empty response body rather than
// propagating the error onto the wire.
func (n *Node) handleFetch(reqBytes []byte) []byte {
	req, err := wire.UnmarshalFetchRequest(reqBytes)
	if err != nil {
		empty, _ := wire.FetchResponse{}.Marshal()
		return empty
	}

	serializedEnvs := n.storage.Fetch(req.Topic, req.From, req.To)
	envs := make([]wire.Envelope, 0, len(serializedEnvs))
	for _, raw := range serializedEnvs {
		env, err := wire.UnmarshalEnvelope(raw)
		if err != nil {
			continue
		}
		envs = append(envs, env)
	}

	resp := wire.FetchResponse{Envelopes: envs}
	out, err := resp.Marshal()
	if err != nil {
		empty, _ := wire.FetchResponse{}.Marshal()
		return empty
	}
	return out
}

// heartbeatLoop broadcasts this node's identity and per-topic
// frontiers on the control group immediately on entry, then every
// heartbeatInterval thereafter, sleeping in twenty 100ms increments so
// Stop is observed promptly rather than blocking for the full
// interval. Sending before the first sleep means a peer directory
// starts converging as soon as the node starts, not one full interval
// later.
func (n *Node) heartbeatLoop() {
	defer n.wg.Done()

	const tick = 100 * time.Millisecond
	ticksPerBeat := int(heartbeatInterval / tick)

	for {
		n.sendHeartbeat()

		for i := 0; i < ticksPerBeat; i++ {
			select {
			case <-n.stopCh:
				return
			case <-time.After(tick):
			}
		}
	}
}

func (n *Node) sendHeartbeat() {
	n.outMu.Lock()
	topics := make([]string, 0, len(n.outSeq))
	for topic := range n.outSeq {
		topics = append(topics, topic)
	}
	n.outMu.Unlock()

	lastSeq := make(map[string]uint64, len(topics))
	for _, topic := range topics {
		lastSeq[topic] = n.storage.LastSeq(topic)
	}

	hb := wire.Heartbeat{NodeID: n.cfg.NodeID, Addr: n.cfg.UnicastAddr, LastSeq: lastSeq}
	data, err := hb.Marshal()
	if err != nil {
		log.Printf("node: heartbeat marshal: %v", err)
		return
	}
	if err := n.ctrlTransport.Send(data); err != nil {
		log.Printf("node: heartbeat send: %v", err)
	}
}
