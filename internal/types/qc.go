package types

import "fmt"

// QuorumCertificate aggregates votes that agree on (certified_block_hash,
// state) and whose combined weight meets the quorum threshold. The QC's
// own author is always the certified block's author (spec ยง3).
type QuorumCertificate struct {
	EpochID            EpochId
	Round              Round
	CertifiedBlockHash BlockHash
	State              HashValue
	CommittedState     *HashValue
	Votes              []VoteSignature
	Author             Author
	Signature          [64]byte
}

// SigningPayload returns the canonical, domain-separated bytes to sign
// for this QC (excludes the QC's own signature and the embedded vote
// signatures, which are each verified independently against a
// reconstructed vote record).
func (qc *QuorumCertificate) SigningPayload() []byte {
	e := newCanonicalEncoder("vantage.qc.v1")
	e.u64(uint64(qc.EpochID))
	e.u64(uint64(qc.Round))
	e.hash(qc.CertifiedBlockHash.Hash())
	e.hash(qc.State)
	e.optionalHash(qc.CommittedState)
	e.author(qc.Author)
	e.u64(uint64(len(qc.Votes)))
	for _, v := range qc.Votes {
		e.author(v.Author)
	}
	return e.bytesOut()
}

// Hash returns the QC's content hash (used to form a QuorumCertificateHash).
func (qc *QuorumCertificate) Hash(hasher func([]byte) HashValue) QuorumCertificateHash {
	return NewQuorumCertificateHash(hasher(qc.SigningPayload()))
}

// ReconstructVote rebuilds the vote record a given embedded (author,
// signature) pair must verify against, per spec ยง4.2.1's QC verification
// rule ("each embedded pair verifies against a canonicalized vote record
// reconstructed from the QC's fields"). The caller verifies the result's
// SigningPayload against the embedded signature through a crypto
// Capability, so this package never hardcodes a signature scheme.
func (qc *QuorumCertificate) ReconstructVote(author Author) *Vote {
	return &Vote{
		EpochID:            qc.EpochID,
		Round:              qc.Round,
		CertifiedBlockHash: qc.CertifiedBlockHash,
		State:              qc.State,
		CommittedState:     qc.CommittedState,
		Author:             author,
	}
}

// CheckQuorum reports whether the QC's signers, restricted to members of
// cfg, meet the quorum threshold. It does not check signatures; the
// caller verifies those via a crypto Capability first.
func (qc *QuorumCertificate) CheckQuorum(cfg *Configuration) error {
	if cfg == nil {
		return fmt.Errorf("types: nil configuration")
	}
	if len(qc.Votes) == 0 {
		return fmt.Errorf("types: qc has no votes")
	}
	seen := make(map[Author]bool, len(qc.Votes))
	for i, vs := range qc.Votes {
		if seen[vs.Author] {
			return fmt.Errorf("types: qc vote %d: duplicate author %s", i, vs.Author)
		}
		seen[vs.Author] = true
		if _, ok := cfg.GetByAuthor(vs.Author); !ok {
			return fmt.Errorf("types: qc vote %d: unknown author %s", i, vs.Author)
		}
	}
	if weight := qc.VotingWeight(cfg); !cfg.HasQuorum(weight) {
		return fmt.Errorf("types: qc voting weight %d below quorum threshold %d", weight, cfg.QuorumThreshold())
	}
	return nil
}

// VotingWeight returns the combined weight of the QC's signers that are
// present in the configuration.
func (qc *QuorumCertificate) VotingWeight(cfg *Configuration) uint64 {
	var w uint64
	for _, vs := range qc.Votes {
		if peer, ok := cfg.GetByAuthor(vs.Author); ok {
			w += peer.Weight
		}
	}
	return w
}
