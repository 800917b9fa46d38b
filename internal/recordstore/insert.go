package recordstore

import (
	"fmt"

	"github.com/vantage-chain/core/internal/types"
)

// InsertBlock verifies and inserts a block (spec ยง4.2.1). Verification
// failures are returned as an error; callers are expected to log and drop,
// never propagate, per spec ยง7 "record-verification failure".
func (s *Store) InsertBlock(b *types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := blockHashOf(s.cap, b)
	if _, exists := s.blocks[hash]; exists {
		return fmt.Errorf("recordstore: block %s already present", hash)
	}

	payloadHash := s.cap.Hash(b.SigningPayload())
	if !s.cap.Verify(b.Author, payloadHash, b.Signature) {
		return fmt.Errorf("recordstore: block %s: invalid signature", hash)
	}

	var parentRound types.Round
	if b.PreviousQCHash == s.initialHash {
		parentRound = 0
	} else {
		parentQC, ok := s.qcs[b.PreviousQCHash]
		if !ok {
			return fmt.Errorf("recordstore: block %s: unknown parent qc", hash)
		}
		parentRound = parentQC.Round
	}
	if b.Round <= parentRound {
		return fmt.Errorf("recordstore: block %s: round %d does not exceed parent round %d", hash, b.Round, parentRound)
	}
	if b.Round < 1 {
		return fmt.Errorf("recordstore: block %s: round must be >= 1", hash)
	}

	s.blocks[hash] = b

	if s.leaderFunc != nil && b.Round == s.currentRound && b.Author == s.leaderFunc(b.Round) {
		h := hash
		s.currentProposedBlock = &h
	}
	return nil
}

// InsertVote verifies and inserts a vote (spec ยง4.2.1, ยง4.2.3).
func (s *Store) InsertVote(v *types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.EpochID != s.epochID {
		return fmt.Errorf("recordstore: vote: epoch %d does not match store epoch %d", v.EpochID, s.epochID)
	}
	block, ok := s.blocks[v.CertifiedBlockHash]
	if !ok {
		return fmt.Errorf("recordstore: vote: unknown certified block %s", v.CertifiedBlockHash)
	}
	if v.Round != block.Round {
		return fmt.Errorf("recordstore: vote: round %d does not match block round %d", v.Round, block.Round)
	}
	if v.Round != s.currentRound {
		return fmt.Errorf("recordstore: vote: round %d is not the current round %d", v.Round, s.currentRound)
	}
	if existing, voted := s.currentVotes[v.Author]; voted {
		return fmt.Errorf("recordstore: vote: %s already voted at round %d (existing block %s)", v.Author, s.currentRound, existing.CertifiedBlockHash)
	}

	wantCommitted, _, fires := s.derivedCommit(block)
	if !sameOptionalHash(v.CommittedState, wantCommitted, fires) {
		return fmt.Errorf("recordstore: vote: committed_state does not match derived 3-chain state")
	}

	payloadHash := s.cap.Hash(v.SigningPayload())
	if !s.cap.Verify(v.Author, payloadHash, v.Signature) {
		return fmt.Errorf("recordstore: vote: %s: invalid signature", v.Author)
	}

	s.currentVotes[v.Author] = v
	s.election.record(v, s.configuration)
	return nil
}

// InsertQC verifies and inserts a quorum certificate (spec ยง4.2.1,
// ยง4.2.2, ยง4.2.4).
func (s *Store) InsertQC(qc *types.QuorumCertificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qc.EpochID != s.epochID {
		return fmt.Errorf("recordstore: qc: epoch %d does not match store epoch %d", qc.EpochID, s.epochID)
	}
	hash := qcHashOf(s.cap, qc)
	if _, exists := s.qcs[hash]; exists {
		return fmt.Errorf("recordstore: qc %s already present", hash)
	}
	block, ok := s.blocks[qc.CertifiedBlockHash]
	if !ok {
		return fmt.Errorf("recordstore: qc %s: unknown certified block", hash)
	}
	if qc.Round != block.Round {
		return fmt.Errorf("recordstore: qc %s: round %d does not match block round %d", hash, qc.Round, block.Round)
	}
	if qc.Author != block.Author {
		return fmt.Errorf("recordstore: qc %s: author does not match block author", hash)
	}

	wantCommitted, _, fires := s.derivedCommit(block)
	if !sameOptionalHash(qc.CommittedState, wantCommitted, fires) {
		return fmt.Errorf("recordstore: qc %s: committed_state does not match derived 3-chain state", hash)
	}

	if err := qc.CheckQuorum(s.configuration); err != nil {
		return fmt.Errorf("recordstore: qc %s: %w", hash, err)
	}
	for i, vs := range qc.Votes {
		reconstructed := qc.ReconstructVote(vs.Author)
		voteHash := s.cap.Hash(reconstructed.SigningPayload())
		if !s.cap.Verify(vs.Author, voteHash, vs.Signature) {
			return fmt.Errorf("recordstore: qc %s: embedded vote %d: invalid signature", hash, i)
		}
	}

	qcPayloadHash := s.cap.Hash(qc.SigningPayload())
	if !s.cap.Verify(qc.Author, qcPayloadHash, qc.Signature) {
		return fmt.Errorf("recordstore: qc %s: invalid signature", hash)
	}

	s.qcs[hash] = qc

	if fires {
		if _, b1Round, _ := s.derivedCommit(block); b1Round >= s.highestCommittedRound {
			s.highestCommittedRound = b1Round
			h := hash
			s.highestCommitCertificateHash = &h
		}
	}

	if qc.Round > s.highestQCRound {
		s.highestQCRound = qc.Round
		s.highestQCHash = hash
	}

	if qc.Round+1 > s.currentRound {
		s.advanceRound(qc.Round + 1)
	}
	return nil
}

// InsertTimeout verifies and inserts a timeout (spec ยง4.2.1, ยง4.2.4).
func (s *Store) InsertTimeout(t *types.Timeout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.EpochID != s.epochID {
		return fmt.Errorf("recordstore: timeout: epoch %d does not match store epoch %d", t.EpochID, s.epochID)
	}
	if t.HighestCertifiedBlockRound > s.highestQCRound {
		return fmt.Errorf("recordstore: timeout: highest_certified_block_round %d exceeds highest known qc round %d", t.HighestCertifiedBlockRound, s.highestQCRound)
	}
	if t.Round != s.currentRound {
		return fmt.Errorf("recordstore: timeout: round %d is not the current round %d", t.Round, s.currentRound)
	}
	if _, already := s.currentTimeouts[t.Author]; already {
		return fmt.Errorf("recordstore: timeout: %s already timed out at round %d", t.Author, s.currentRound)
	}

	payloadHash := s.cap.Hash(t.SigningPayload())
	if !s.cap.Verify(t.Author, payloadHash, t.Signature) {
		return fmt.Errorf("recordstore: timeout: %s: invalid signature", t.Author)
	}

	s.currentTimeouts[t.Author] = t
	if peer, ok := s.configuration.GetByAuthor(t.Author); ok {
		s.timeoutWeight += peer.Weight
	}
	if s.configuration.HasQuorum(s.timeoutWeight) && s.highestTCRound < s.currentRound {
		tc := &types.TimeoutCertificate{Round: s.currentRound}
		for _, to := range s.currentTimeouts {
			tc.Timeouts = append(tc.Timeouts, *to)
		}
		s.highestTC = tc
		s.highestTCRound = s.currentRound
		s.advanceRound(s.currentRound + 1)
	}
	return nil
}

// InsertNetworkRecord dispatches a record of unknown concrete type to the
// matching typed insert method, for callers (data-sync, p2p dispatch) that
// receive an untyped record off the wire.
func (s *Store) InsertNetworkRecord(record any) error {
	switch r := record.(type) {
	case *types.Block:
		return s.InsertBlock(r)
	case *types.Vote:
		return s.InsertVote(r)
	case *types.QuorumCertificate:
		return s.InsertQC(r)
	case *types.Timeout:
		return s.InsertTimeout(r)
	default:
		return fmt.Errorf("recordstore: insert_network_record: unrecognized record type %T", record)
	}
}

// advanceRound moves current_round forward and clears every per-round
// structure (spec ยง4.2.4). Callers must hold s.mu.
func (s *Store) advanceRound(next types.Round) {
	if next <= s.currentRound {
		return
	}
	s.currentRound = next
	s.currentProposedBlock = nil
	s.currentVotes = make(map[types.Author]*types.Vote)
	s.currentTimeouts = make(map[types.Author]*types.Timeout)
	s.timeoutWeight = 0
	s.election.reset()
}

// derivedCommit computes the 3-chain commit rule (spec ยง4.2.2) anchored at
// b playing the role of the topmost block (b3): it walks b -> q2 -> b2 ->
// q1 -> b1 and fires iff the three rounds are consecutive. It returns the
// state carried by q1 and q1's certified block's round.
func (s *Store) derivedCommit(b *types.Block) (state *types.HashValue, b1Round types.Round, fires bool) {
	q2, ok := s.qcs[b.PreviousQCHash]
	if !ok {
		return nil, 0, false
	}
	b2, ok := s.blocks[q2.CertifiedBlockHash]
	if !ok {
		return nil, 0, false
	}
	q1, ok := s.qcs[b2.PreviousQCHash]
	if !ok {
		return nil, 0, false
	}
	b1, ok := s.blocks[q1.CertifiedBlockHash]
	if !ok {
		return nil, 0, false
	}
	if b2.Round != b1.Round+1 || b.Round != b2.Round+1 {
		return nil, 0, false
	}
	st := q1.State
	return &st, b1.Round, true
}

func sameOptionalHash(got, want *types.HashValue, wantPresent bool) bool {
	if !wantPresent {
		return got == nil
	}
	if got == nil {
		return false
	}
	return *got == *want
}
