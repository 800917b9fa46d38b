package crypto

import (
	"encoding/binary"

	"github.com/vantage-chain/core/internal/types"
)

// Capability is the crypto capability object spec ยง6/ยง9 describes: "the
// core depends only on the interface; verification calls the object with
// (author, hash, signature)." Implementations range from test doubles
// (deterministic hash, identity signatures) to production (Ed25519 +
// BLAKE2b).
type Capability interface {
	Hash(signable []byte) types.HashValue
	Sign(hash types.HashValue) [64]byte
	Verify(author types.Author, hash types.HashValue, signature [64]byte) bool
	Author() types.Author
}

// Ed25519Capability is the production crypto capability: Ed25519
// signatures over a BLAKE2b-256 domain-separated hash.
type Ed25519Capability struct {
	privKey PrivateKey
	pubKeys map[types.Author]PublicKey
	self    types.Author
}

// NewEd25519Capability builds a production capability for one replica's
// key pair. pubKeys maps every configuration peer's Author to its public
// key so Verify can resolve the key to check against.
func NewEd25519Capability(priv PrivateKey, pubKeys map[types.Author]PublicKey) *Ed25519Capability {
	self := AuthorFromPubKey(priv.Public().(PublicKey))
	return &Ed25519Capability{privKey: priv, pubKeys: pubKeys, self: self}
}

// Hash implements Capability.
func (c *Ed25519Capability) Hash(signable []byte) types.HashValue {
	return HashRecord(signable)
}

// Sign implements Capability. It signs the hash bytes directly, matching
// the record types' own SigningPayload-then-sign convention.
func (c *Ed25519Capability) Sign(hash types.HashValue) [64]byte {
	return SigTo64(Sign(c.privKey, hash[:]))
}

// Verify implements Capability.
func (c *Ed25519Capability) Verify(author types.Author, hash types.HashValue, signature [64]byte) bool {
	pub, ok := c.pubKeys[author]
	if !ok {
		return false
	}
	return Verify(pub, hash[:], signature[:])
}

// Author implements Capability.
func (c *Ed25519Capability) Author() types.Author {
	return c.self
}

// DeterministicCapability is a test double: hashing is the same
// HashRecord digest the production capability uses, and a "signature" is
// the hash itself, followed by the author length as a little-endian
// uint64 and the first 24 bytes of the author, with no secret key
// involved — no real cryptography, as spec ยง9 allows for test doubles
// ("deterministic hash, identity signatures").
type DeterministicCapability struct {
	self types.Author
}

// NewDeterministicCapability builds a test-double capability for the
// given author identity.
func NewDeterministicCapability(self types.Author) *DeterministicCapability {
	return &DeterministicCapability{self: self}
}

// Hash implements Capability.
func (c *DeterministicCapability) Hash(signable []byte) types.HashValue {
	return HashRecord(signable)
}

// Sign implements Capability.
func (c *DeterministicCapability) Sign(hash types.HashValue) [64]byte {
	var sig [64]byte
	copy(sig[:32], hash[:])
	binary.LittleEndian.PutUint64(sig[32:40], uint64(len(c.self.Bytes())))
	copy(sig[40:], c.self[:24])
	return sig
}

// Verify implements Capability: recomputes the same deterministic
// signature a matching Sign call would have produced.
func (c *DeterministicCapability) Verify(author types.Author, hash types.HashValue, signature [64]byte) bool {
	want := (&DeterministicCapability{self: author}).Sign(hash)
	return want == signature
}

// Author implements Capability.
func (c *DeterministicCapability) Author() types.Author {
	return c.self
}
