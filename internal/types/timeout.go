package types

// Timeout declares that Author abandons Round (spec ยง3). It carries the
// highest round for which the author holds a certified block, so peers
// can tell whether a quorum of timeouts should also advance the highest
// QC round they know about.
type Timeout struct {
	EpochID                  EpochId
	Round                    Round
	HighestCertifiedBlockRound Round
	Author                   Author
	Signature                [64]byte
}

// SigningPayload returns the canonical, domain-separated bytes to sign
// for this timeout.
func (t *Timeout) SigningPayload() []byte {
	e := newCanonicalEncoder("vantage.timeout.v1")
	e.u64(uint64(t.EpochID))
	e.u64(uint64(t.Round))
	e.u64(uint64(t.HighestCertifiedBlockRound))
	e.author(t.Author)
	return e.bytesOut()
}

// TimeoutCertificate is a quorum of timeouts at one round, permitting
// round advance without a QC (spec GLOSSARY, ยง4.2.4).
type TimeoutCertificate struct {
	Round     Round
	Timeouts  []Timeout
}
