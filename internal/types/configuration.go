package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Peer describes one member of a Configuration: its identity, public key,
// and voting weight.
type Peer struct {
	Author    Author
	PublicKey [32]byte
	Weight    uint64
}

// Configuration is the voting-rights snapshot in force at the start of an
// epoch (spec ยง3, "configuration"). It is supplied by the epoch-
// configuration oracle (spec ยง6) and never mutates once an epoch starts.
type Configuration struct {
	Peers       []Peer
	TotalWeight uint64
}

// NewConfiguration builds a Configuration from a peer list, computing
// TotalWeight automatically.
func NewConfiguration(peers []Peer) (*Configuration, error) {
	if len(peers) == 0 {
		return nil, errors.New("types: configuration must not be empty")
	}
	var total uint64
	for _, p := range peers {
		if p.Weight == 0 {
			return nil, fmt.Errorf("types: peer %s has zero weight", p.Author)
		}
		total += p.Weight
	}
	return &Configuration{Peers: peers, TotalWeight: total}, nil
}

// QuorumThreshold returns 2W/3 + 1 for total weight W (spec ยง8).
func (c *Configuration) QuorumThreshold() uint64 {
	return 2*c.TotalWeight/3 + 1
}

// ValidityThreshold returns (W+2)/3 for total weight W (spec ยง8).
func (c *Configuration) ValidityThreshold() uint64 {
	return (c.TotalWeight + 2) / 3
}

// HasQuorum reports whether the given weight meets the quorum threshold.
func (c *Configuration) HasQuorum(weight uint64) bool {
	return weight >= c.QuorumThreshold()
}

// GetByAuthor looks up a peer by author identity.
func (c *Configuration) GetByAuthor(author Author) (*Peer, bool) {
	for i := range c.Peers {
		if c.Peers[i].Author == author {
			return &c.Peers[i], true
		}
	}
	return nil, false
}

// Size returns the number of peers in the configuration.
func (c *Configuration) Size() int {
	return len(c.Peers)
}

// MarshalBinary encodes the configuration for persistence: a peer count
// followed by each peer's author, public key, and weight, fixed-width and
// in list order. This is a storage encoding, not the domain-separated
// signing payload of encoding.go.
func (c *Configuration) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4, 4+len(c.Peers)*(AuthorSize+32+8))
	binary.BigEndian.PutUint32(buf, uint32(len(c.Peers)))
	for _, p := range c.Peers {
		buf = append(buf, p.Author[:]...)
		buf = append(buf, p.PublicKey[:]...)
		var w [8]byte
		binary.BigEndian.PutUint64(w[:], p.Weight)
		buf = append(buf, w[:]...)
	}
	return buf, nil
}

// UnmarshalConfiguration decodes a configuration previously encoded by
// MarshalBinary.
func UnmarshalConfiguration(data []byte) (*Configuration, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("types: configuration: truncated peer count")
	}
	count := binary.BigEndian.Uint32(data[:4])
	const peerWidth = AuthorSize + 32 + 8
	want := 4 + int(count)*peerWidth
	if len(data) != want {
		return nil, fmt.Errorf("types: configuration: want %d bytes, got %d", want, len(data))
	}

	peers := make([]Peer, count)
	offset := 4
	for i := range peers {
		copy(peers[i].Author[:], data[offset:offset+AuthorSize])
		offset += AuthorSize
		copy(peers[i].PublicKey[:], data[offset:offset+32])
		offset += 32
		peers[i].Weight = binary.BigEndian.Uint64(data[offset : offset+8])
		offset += 8
	}
	return NewConfiguration(peers)
}
