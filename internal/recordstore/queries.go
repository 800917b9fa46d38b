package recordstore

import (
	"sort"

	"github.com/vantage-chain/core/internal/types"
)

// HighestQuorumCertificateHash returns the recorded highest QC hash, or
// the epoch's genesis hash if none has been inserted yet (spec ยง4.2.5).
func (s *Store) HighestQuorumCertificateHash() types.QuorumCertificateHash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestQCHash
}

// HighestTimeoutCertificate returns the highest timeout certificate this
// store has materialized, if any.
func (s *Store) HighestTimeoutCertificate() (*types.TimeoutCertificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestTC, s.highestTC != nil
}

// HighestCommitCertificateHash returns the QC hash that most recently
// served as a 3-chain commit certificate, if any.
func (s *Store) HighestCommitCertificateHash() (types.QuorumCertificateHash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.highestCommitCertificateHash == nil {
		return types.QuorumCertificateHash{}, false
	}
	return *s.highestCommitCertificateHash, true
}

// CommittedState is one state delivered by CommittedStatesAfter.
type CommittedState struct {
	Round types.Round
	State types.HashValue
}

// CommittedStatesAfter walks backward from the commit certificate,
// skipping its two topmost QCs, and yields (round, state) pairs in
// increasing-round order for every round strictly greater than
// afterRound (spec ยง4.2.5).
func (s *Store) CommittedStatesAfter(afterRound types.Round) []CommittedState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.highestCommitCertificateHash == nil {
		return nil
	}
	q3, ok := s.qcs[*s.highestCommitCertificateHash]
	if !ok {
		return nil
	}
	b3, ok := s.blocks[q3.CertifiedBlockHash]
	if !ok {
		return nil
	}
	q2, ok := s.qcs[b3.PreviousQCHash]
	if !ok {
		return nil
	}
	b2, ok := s.blocks[q2.CertifiedBlockHash]
	if !ok {
		return nil
	}

	var out []CommittedState
	current := b2.PreviousQCHash
	for {
		qc, ok := s.qcs[current]
		if !ok {
			break
		}
		block, ok := s.blocks[qc.CertifiedBlockHash]
		if !ok {
			break
		}
		if block.Round <= afterRound {
			break
		}
		out = append(out, CommittedState{Round: block.Round, State: qc.State})
		current = block.PreviousQCHash
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// PreviousRound returns the round of the QC one hop back from the given
// block (spec ยง4.2.5 previous_round).
func (s *Store) PreviousRound(blockHash types.BlockHash) (types.Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[blockHash]
	if !ok {
		return 0, false
	}
	qc, ok := s.qcs[block.PreviousQCHash]
	if !ok {
		return 0, false
	}
	return qc.Round, true
}

// SecondPreviousRound returns the round two hops back from the given
// block (spec ยง4.2.5 second_previous_round).
func (s *Store) SecondPreviousRound(blockHash types.BlockHash) (types.Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[blockHash]
	if !ok {
		return 0, false
	}
	qc, ok := s.qcs[block.PreviousQCHash]
	if !ok {
		return 0, false
	}
	parentBlock, ok := s.blocks[qc.CertifiedBlockHash]
	if !ok {
		return 0, false
	}
	grandQC, ok := s.qcs[parentBlock.PreviousQCHash]
	if !ok {
		return 0, false
	}
	return grandQC.Round, true
}

// chainEntry is one (QC, block) pair visited while walking a QC chain
// backward.
type chainEntry struct {
	qcHash types.QuorumCertificateHash
	qc     *types.QuorumCertificate
	block  *types.Block
}

// walkChain walks backward from startHash, one QC per hop, until the
// chain runs out of known records.
func (s *Store) walkChain(startHash types.QuorumCertificateHash) []chainEntry {
	var entries []chainEntry
	current := startHash
	for {
		qc, ok := s.qcs[current]
		if !ok {
			return entries
		}
		block, ok := s.blocks[qc.CertifiedBlockHash]
		if !ok {
			return entries
		}
		entries = append(entries, chainEntry{qcHash: current, qc: qc, block: block})
		current = block.PreviousQCHash
	}
}

// KnownQuorumCertificateRounds returns a sparse digest of known QC
// rounds: walking back from the highest QC and from the highest commit
// certificate, retaining rounds at chain positions i where i+1 is a
// power of two (spec ยง4.2.5).
func (s *Store) KnownQuorumCertificateRounds() []types.Round {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[types.Round]bool)
	addSparse := func(entries []chainEntry) {
		for i, e := range entries {
			pos := i + 1
			if pos&(pos-1) == 0 { // pos is a power of two
				seen[e.qc.Round] = true
			}
		}
	}
	addSparse(s.walkChain(s.highestQCHash))
	if s.highestCommitCertificateHash != nil {
		addSparse(s.walkChain(*s.highestCommitCertificateHash))
	}

	out := make([]types.Round, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Record is a tagged union over the four network record types, used by
// UnknownRecords to return a merge-sorted sequence without losing each
// record's concrete type.
type Record struct {
	Block   *types.Block
	QC      *types.QuorumCertificate
	Timeout *types.Timeout
}

// UnknownRecords back-walks both the highest-QC chain and the highest
// commit-certificate chain until a QC whose round is in known is
// reached, then emits the blocks and QCs along both chains merge-sorted
// by descending round, followed by all current timeouts and the current
// proposed block (spec ยง4.2.5). Votes are intentionally omitted.
func (s *Store) UnknownRecords(known []types.Round) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	knownSet := make(map[types.Round]bool, len(known))
	for _, r := range known {
		knownSet[r] = true
	}

	collect := func(startHash types.QuorumCertificateHash) []chainEntry {
		var out []chainEntry
		current := startHash
		for {
			qc, ok := s.qcs[current]
			if !ok {
				break
			}
			if knownSet[qc.Round] {
				break
			}
			block, ok := s.blocks[qc.CertifiedBlockHash]
			if !ok {
				break
			}
			out = append(out, chainEntry{qcHash: current, qc: qc, block: block})
			current = block.PreviousQCHash
		}
		return out
	}

	merged := make(map[types.QuorumCertificateHash]chainEntry)
	for _, e := range collect(s.highestQCHash) {
		merged[e.qcHash] = e
	}
	if s.highestCommitCertificateHash != nil {
		for _, e := range collect(*s.highestCommitCertificateHash) {
			merged[e.qcHash] = e
		}
	}

	entries := make([]chainEntry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].qc.Round > entries[j].qc.Round })

	records := make([]Record, 0, len(entries)*2+len(s.currentTimeouts)+1)
	for _, e := range entries {
		records = append(records, Record{Block: e.block})
		records = append(records, Record{QC: e.qc})
	}
	for _, t := range s.currentTimeouts {
		records = append(records, Record{Timeout: t})
	}
	if s.currentProposedBlock != nil {
		if b, ok := s.blocks[*s.currentProposedBlock]; ok {
			records = append(records, Record{Block: b})
		}
	}
	return records
}
