package types

import "crypto/ed25519"

// Vote is cast by a replica that has re-executed a block on top of its
// parent state and obtained State. CommittedState is set iff a 3-chain
// commit rule fires at this block (spec ยง3, ยง4.2.2).
type Vote struct {
	EpochID           EpochId
	Round             Round
	CertifiedBlockHash BlockHash
	State             HashValue
	CommittedState    *HashValue
	Author            Author
	Signature         [64]byte
}

// SigningPayload returns the canonical, domain-separated bytes to sign
// for this vote.
func (v *Vote) SigningPayload() []byte {
	e := newCanonicalEncoder("vantage.vote.v1")
	e.u64(uint64(v.EpochID))
	e.u64(uint64(v.Round))
	e.hash(v.CertifiedBlockHash.Hash())
	e.hash(v.State)
	e.optionalHash(v.CommittedState)
	e.author(v.Author)
	return e.bytesOut()
}

// Verify checks an Ed25519 signature made over the raw SigningPayload
// bytes against the voter's public key. Signatures produced through a
// crypto.Capability are made over the payload's hash instead and do not
// verify here; the Record Store checks those with Capability.Verify.
func (v *Vote) Verify(pubKey [32]byte) bool {
	if v.Signature == ([64]byte{}) {
		return false
	}
	return ed25519.Verify(pubKey[:], v.SigningPayload(), v.Signature[:])
}

// IsEquivocation reports whether two votes by the same author at the same
// round certify different blocks.
func IsEquivocation(a, b *Vote) bool {
	return a.Author == b.Author &&
		a.Round == b.Round &&
		a.CertifiedBlockHash != b.CertifiedBlockHash
}

// VoteSignature is the (author, signature) pair a QC embeds per
// contributing vote (spec ยง3).
type VoteSignature struct {
	Author    Author
	Signature [64]byte
}
