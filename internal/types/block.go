package types

// Block is a proposed extension of the chain at a given round, carrying
// one opaque application command (spec ยง3). It extends a parent QC;
// round must strictly exceed the parent block's round, or be >= 1 when
// the parent is the epoch's genesis hash.
type Block struct {
	Command        []byte
	Time           NodeTime
	PreviousQCHash QuorumCertificateHash
	Round          Round
	Author         Author
	Signature      [64]byte
}

// SigningPayload returns the canonical, domain-separated bytes to sign
// and hash for this block. The signature field itself is excluded, per
// spec ยง3 ("hash excludes the signature field").
func (b *Block) SigningPayload() []byte {
	e := newCanonicalEncoder("vantage.block.v1")
	e.bytes(b.Command)
	e.i64(int64(b.Time))
	e.hash(b.PreviousQCHash.Hash())
	e.u64(uint64(b.Round))
	e.author(b.Author)
	return e.bytesOut()
}

// Validate checks the block's structural invariants (spec ยง3): the
// round must be >= 1. The parent QC hash is not checked here.
func (b *Block) Validate() error {
	if b.Round < 1 {
		return errValidation("block round must be >= 1")
	}
	return nil
}
