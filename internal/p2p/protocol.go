package p2p

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vantage-chain/core/internal/types"
)

// MessageType identifies the type of record or data-sync message on the
// wire.
type MessageType byte

const (
	MsgBlock        MessageType = 0x01
	MsgVote         MessageType = 0x02
	MsgQC           MessageType = 0x03
	MsgTimeout      MessageType = 0x04
	MsgNotification MessageType = 0x05
	MsgRequest      MessageType = 0x06
	MsgResponse     MessageType = 0x07
)

// MaxMessageSize is the maximum allowed message size (4 MB).
const MaxMessageSize = 4 * 1024 * 1024

func (mt MessageType) String() string {
	switch mt {
	case MsgBlock:
		return "block"
	case MsgVote:
		return "vote"
	case MsgQC:
		return "quorum_certificate"
	case MsgTimeout:
		return "timeout"
	case MsgNotification:
		return "notification"
	case MsgRequest:
		return "request"
	case MsgResponse:
		return "response"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(mt))
	}
}

// Envelope wraps a typed message for wire encoding.
type Envelope struct {
	Type    MessageType
	Payload []byte
}

// Encode serializes the envelope as [type_byte | json_payload].
func (e *Envelope) Encode() []byte {
	buf := make([]byte, 1+len(e.Payload))
	buf[0] = byte(e.Type)
	copy(buf[1:], e.Payload)
	return buf
}

// DecodeEnvelope parses a wire-format message into an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, errors.New("p2p: empty message")
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("p2p: message too large: %d > %d", len(data), MaxMessageSize)
	}
	return &Envelope{
		Type:    MessageType(data[0]),
		Payload: data[1:],
	}, nil
}

// EncodeBlock serializes a Block into wire format.
func EncodeBlock(b *types.Block) ([]byte, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal block: %w", err)
	}
	env := &Envelope{Type: MsgBlock, Payload: payload}
	return env.Encode(), nil
}

// DecodeBlock deserializes a Block from JSON payload bytes.
func DecodeBlock(payload []byte) (*types.Block, error) {
	b := &types.Block{}
	if err := json.Unmarshal(payload, b); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal block: %w", err)
	}
	return b, nil
}

// EncodeVote serializes a Vote into wire format.
func EncodeVote(v *types.Vote) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal vote: %w", err)
	}
	env := &Envelope{Type: MsgVote, Payload: payload}
	return env.Encode(), nil
}

// DecodeVote deserializes a Vote from JSON payload bytes.
func DecodeVote(payload []byte) (*types.Vote, error) {
	v := &types.Vote{}
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal vote: %w", err)
	}
	return v, nil
}

// EncodeQC serializes a QuorumCertificate into wire format.
func EncodeQC(qc *types.QuorumCertificate) ([]byte, error) {
	payload, err := json.Marshal(qc)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal quorum certificate: %w", err)
	}
	env := &Envelope{Type: MsgQC, Payload: payload}
	return env.Encode(), nil
}

// DecodeQC deserializes a QuorumCertificate from JSON payload bytes.
func DecodeQC(payload []byte) (*types.QuorumCertificate, error) {
	qc := &types.QuorumCertificate{}
	if err := json.Unmarshal(payload, qc); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal quorum certificate: %w", err)
	}
	return qc, nil
}

// EncodeTimeout serializes a Timeout into wire format.
func EncodeTimeout(t *types.Timeout) ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal timeout: %w", err)
	}
	env := &Envelope{Type: MsgTimeout, Payload: payload}
	return env.Encode(), nil
}

// DecodeTimeout deserializes a Timeout from JSON payload bytes.
func DecodeTimeout(payload []byte) (*types.Timeout, error) {
	t := &types.Timeout{}
	if err := json.Unmarshal(payload, t); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal timeout: %w", err)
	}
	return t, nil
}

// Notification summarizes a replica's position so peers can detect when
// they have fallen behind (spec §4.5). It travels on the sync topic as its
// own message; BroadcastRecord does not attach one. ProposedBlock is
// only populated when the sender is itself the block's author, to avoid
// reshare amplification.
type Notification struct {
	Author                    types.Author
	CurrentEpoch              types.EpochId
	HighestCommitCertificate  *types.QuorumCertificate
	HighestQuorumCertificate  *types.QuorumCertificate
	Timeouts                  []*types.Timeout
	CurrentVote               *types.Vote
	ProposedBlock             *types.Block
}

// Request asks a peer for every record it holds beyond the rounds the
// requester already knows about, expressed as the sparse digest
// recordstore.Store.KnownQuorumCertificateRounds produces (spec §4.5).
type Request struct {
	Author       types.Author
	CurrentEpoch types.EpochId
	KnownQCRounds []types.Round
}

// EpochBatch carries the records one epoch's Record Store judged unknown
// to a requester (spec §4.5 "records: list of (epoch_id, list<Record>)").
type EpochBatch struct {
	EpochID  types.EpochId
	Blocks   []*types.Block
	QCs      []*types.QuorumCertificate
	Timeouts []*types.Timeout
}

// Response answers a Request with the records the peer judged unknown to
// the requester, batched per epoch in increasing-epoch order so a
// requester lagging across an epoch boundary can process the batches in
// order (spec §4.5).
type Response struct {
	CurrentEpoch types.EpochId
	Batches      []EpochBatch
}

// EncodeNotification serializes a Notification into wire format.
func EncodeNotification(n *Notification) ([]byte, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal notification: %w", err)
	}
	env := &Envelope{Type: MsgNotification, Payload: payload}
	return env.Encode(), nil
}

// DecodeNotification deserializes a Notification from JSON payload bytes.
func DecodeNotification(payload []byte) (*Notification, error) {
	n := &Notification{}
	if err := json.Unmarshal(payload, n); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal notification: %w", err)
	}
	return n, nil
}

// EncodeRequest serializes a Request into wire format.
func EncodeRequest(r *Request) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal request: %w", err)
	}
	env := &Envelope{Type: MsgRequest, Payload: payload}
	return env.Encode(), nil
}

// DecodeRequest deserializes a Request from JSON payload bytes.
func DecodeRequest(payload []byte) (*Request, error) {
	r := &Request{}
	if err := json.Unmarshal(payload, r); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal request: %w", err)
	}
	return r, nil
}

// EncodeResponse serializes a Response into wire format.
func EncodeResponse(r *Response) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal response: %w", err)
	}
	env := &Envelope{Type: MsgResponse, Payload: payload}
	return env.Encode(), nil
}

// DecodeResponse deserializes a Response from JSON payload bytes.
func DecodeResponse(payload []byte) (*Response, error) {
	r := &Response{}
	if err := json.Unmarshal(payload, r); err != nil {
		return nil, fmt.Errorf("p2p: unmarshal response: %w", err)
	}
	return r, nil
}

// EncodeMessage dispatches to the matching Encode* helper by concrete type.
func EncodeMessage(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *types.Block:
		return EncodeBlock(m)
	case *types.Vote:
		return EncodeVote(m)
	case *types.QuorumCertificate:
		return EncodeQC(m)
	case *types.Timeout:
		return EncodeTimeout(m)
	case *Notification:
		return EncodeNotification(m)
	case *Request:
		return EncodeRequest(m)
	case *Response:
		return EncodeResponse(m)
	default:
		return nil, fmt.Errorf("p2p: unsupported message type %T", v)
	}
}

// DecodeMessage decodes a wire-format message into its type and domain
// object. Returns (MessageType, one of *types.Block|*types.Vote|
// *types.QuorumCertificate|*types.Timeout|*Notification|*Request|
// *Response, error).
func DecodeMessage(data []byte) (MessageType, interface{}, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return 0, nil, err
	}

	switch env.Type {
	case MsgBlock:
		b, err := DecodeBlock(env.Payload)
		return MsgBlock, b, err
	case MsgVote:
		v, err := DecodeVote(env.Payload)
		return MsgVote, v, err
	case MsgQC:
		qc, err := DecodeQC(env.Payload)
		return MsgQC, qc, err
	case MsgTimeout:
		t, err := DecodeTimeout(env.Payload)
		return MsgTimeout, t, err
	case MsgNotification:
		n, err := DecodeNotification(env.Payload)
		return MsgNotification, n, err
	case MsgRequest:
		r, err := DecodeRequest(env.Payload)
		return MsgRequest, r, err
	case MsgResponse:
		r, err := DecodeResponse(env.Payload)
		return MsgResponse, r, err
	default:
		return env.Type, nil, fmt.Errorf("p2p: unknown message type: 0x%02x", byte(env.Type))
	}
}
