// Package wire defines the on-the-wire messages exchanged between
// spiderweb nodes and their JSON encoding.
//
// Every message type round-trips through encoding/json. Payload.Data's
// raw bytes travel as base64 inside the JSON, the same way keyed
// values are encoded elsewhere in this codebase; Envelope.UUID is a
// fixed-size [16]byte and marshals as a plain JSON array of numbers,
// not base64. There is no protobuf/codegen step involved.
package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Payload wraps a publisher's raw bytes with an optional type tag so a
// subscriber that knows the schema can interpret them. Type is purely
// informational; spiderweb never inspects it.
type Payload struct {
	Type string `json:"type,omitempty"`
	Data []byte `json:"data"`
}

// Envelope is the unit of publication. For a given (publisher, topic),
// Seq is strictly monotonic starting at 1. UUID content-addresses the
// envelope for dedup and is not derived from (topic, seq).
type Envelope struct {
	Topic   string    `json:"topic"`
	Seq     uint64    `json:"seq"`
	UUID    [16]byte  `json:"uuid"`
	Ts      time.Time `json:"ts"`
	Payload Payload   `json:"payload"`
}

// NewEnvelope builds an envelope with a fresh random UUID and the current
// timestamp.
func NewEnvelope(topic string, seq uint64, payload Payload) (Envelope, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		Topic:   topic,
		Seq:     seq,
		Ts:      time.Now(),
		Payload: payload,
	}
	copy(env.UUID[:], id[:])
	return env, nil
}

// Marshal serializes the envelope for transport.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope parses bytes received off the payload multicast
// transport. Callers drop the datagram on error per spec.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// Heartbeat is the periodic control message advertising a node's
// identity, its unicast fetch endpoint, and its per-topic frontiers.
type Heartbeat struct {
	NodeID  string            `json:"node_id"`
	Addr    string            `json:"addr"`
	LastSeq map[string]uint64 `json:"last_seq"`
}

// Marshal serializes the heartbeat for transport.
func (h Heartbeat) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// UnmarshalHeartbeat parses bytes received off the control multicast
// transport. Callers drop the datagram on error per spec.
func UnmarshalHeartbeat(data []byte) (Heartbeat, error) {
	var h Heartbeat
	err := json.Unmarshal(data, &h)
	return h, err
}

// FetchRequest asks a peer for the envelopes it holds for topic in
// [From, To] inclusive.
type FetchRequest struct {
	Topic string `json:"topic"`
	From  uint64 `json:"from"`
	To    uint64 `json:"to"`
}

// Marshal serializes the request for the unicast transport.
func (r FetchRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalFetchRequest parses a request body. A parse failure yields a
// zero-value request and an error; the fetch server responds with an
// empty FetchResponse rather than propagating the error on the wire.
func UnmarshalFetchRequest(data []byte) (FetchRequest, error) {
	var r FetchRequest
	err := json.Unmarshal(data, &r)
	return r, err
}

// FetchResponse carries the envelopes a peer had in range for a
// FetchRequest, in ascending seq order.
type FetchResponse struct {
	Envelopes []Envelope `json:"envelopes"`
}

// Marshal serializes the response for the unicast transport.
func (r FetchResponse) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalFetchResponse parses a response body received from
// fetch_from. An empty body yields a response with no envelopes and no
// error; a malformed body yields an error.
func UnmarshalFetchResponse(data []byte) (FetchResponse, error) {
	var r FetchResponse
	if len(data) == 0 {
		return r, nil
	}
	err := json.Unmarshal(data, &r)
	return r, err
}
