package recordstore

import (
	"fmt"

	"github.com/vantage-chain/core/internal/types"
)

// ProposeBlock builds, signs and inserts a new block on top of the
// highest known QC at the current round (spec ยง4.2, "propose_block").
// It is one of the four producer methods the Node drives; all of them
// route through the normal insertion path so a replica's own records are
// held to the same invariants as a peer's.
func (s *Store) ProposeBlock(command []byte, now types.NodeTime, author types.Author) (*types.Block, error) {
	round := s.CurrentRound()
	parent := s.HighestQuorumCertificateHash()

	b := &types.Block{
		Command:        command,
		Time:           now,
		PreviousQCHash: parent,
		Round:          round,
		Author:         author,
	}
	hash := s.cap.Hash(b.SigningPayload())
	b.Signature = s.cap.Sign(hash)

	if err := s.InsertBlock(b); err != nil {
		return nil, fmt.Errorf("recordstore: propose_block: %w", err)
	}
	return b, nil
}

// CreateTimeout builds, signs and inserts a timeout for the current round
// (spec ยง4.2, "create_timeout").
func (s *Store) CreateTimeout(author types.Author) (*types.Timeout, error) {
	s.mu.Lock()
	round := s.currentRound
	highestQC := s.highestQCRound
	s.mu.Unlock()

	t := &types.Timeout{
		EpochID:                    s.epochID,
		Round:                      round,
		HighestCertifiedBlockRound: highestQC,
		Author:                     author,
	}
	hash := s.cap.Hash(t.SigningPayload())
	t.Signature = s.cap.Sign(hash)

	if err := s.InsertTimeout(t); err != nil {
		return nil, fmt.Errorf("recordstore: create_timeout: %w", err)
	}
	return t, nil
}

// CreateVote builds, signs and inserts a vote for blockHash carrying
// state, deriving committed_state from the 3-chain rule if it fires at
// that block (spec ยง4.2, "create_vote"). Callers are expected to have
// already applied the voting-safety checks (latest_voted_round,
// locked_round) themselves; this method only enforces Record Store
// invariants.
func (s *Store) CreateVote(blockHash types.BlockHash, state types.HashValue, author types.Author) (*types.Vote, error) {
	s.mu.Lock()
	block, ok := s.blocks[blockHash]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("recordstore: create_vote: unknown block %s", blockHash)
	}
	committedState, _, fires := s.derivedCommit(block)
	if !fires {
		committedState = nil
	}
	s.mu.Unlock()

	v := &types.Vote{
		EpochID:            s.epochID,
		Round:              block.Round,
		CertifiedBlockHash: blockHash,
		State:              state,
		CommittedState:     committedState,
		Author:             author,
	}
	hash := s.cap.Hash(v.SigningPayload())
	v.Signature = s.cap.Sign(hash)

	if err := s.InsertVote(v); err != nil {
		return nil, fmt.Errorf("recordstore: create_vote: %w", err)
	}
	return v, nil
}

// CheckForNewQuorumCertificate forms a QC from the winning ballot of the
// current round's election, if it has reached Won status, and inserts
// it. It transitions the election to Closed on success (spec ยง4.2.3).
// Only the leader of the winning block is expected to call this.
func (s *Store) CheckForNewQuorumCertificate(author types.Author) (*types.QuorumCertificate, error) {
	s.mu.Lock()
	if s.election.status != ElectionWon {
		s.mu.Unlock()
		return nil, nil
	}
	votes, blockHash, state, ok := s.election.winningBallot()
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	block, ok := s.blocks[blockHash]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("recordstore: check_for_new_quorum_certificate: unknown winning block %s", blockHash)
	}
	committedState, _, fires := s.derivedCommit(block)
	if !fires {
		committedState = nil
	}
	s.election.close()
	s.mu.Unlock()

	qc := &types.QuorumCertificate{
		EpochID:            s.epochID,
		Round:              block.Round,
		CertifiedBlockHash: blockHash,
		State:              state,
		CommittedState:     committedState,
		Votes:              votes,
		Author:             author,
	}
	hash := s.cap.Hash(qc.SigningPayload())
	qc.Signature = s.cap.Sign(hash)

	if err := s.InsertQC(qc); err != nil {
		return nil, fmt.Errorf("recordstore: check_for_new_quorum_certificate: %w", err)
	}
	return qc, nil
}
