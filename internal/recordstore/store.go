// Package recordstore implements the per-epoch authenticated record graph
// described by spec ยง4.2: a single owner holding two hash-keyed maps
// (Block, QuorumCertificate), the current round's vote/timeout tally, and
// the commit-rule detection that turns a 3-chain of consecutive-round QCs
// into a delivered application state.
//
// Grounded on the teacher's internal/consensus package (state.go's struct
// shape, vote.go's per-round ballot, qc.go's MakeQC/ForkChoice, commit.go's
// rule — all regeared from 2-chain/height to 3-chain/round, see
// DESIGN.md).
package recordstore

import (
	"sync"

	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/types"
)

// Store is the per-epoch Record Store (spec ยง3 "Per-epoch Record Store").
type Store struct {
	mu sync.Mutex

	initialHash  types.QuorumCertificateHash
	initialState types.HashValue
	epochID      types.EpochId
	configuration *types.Configuration

	blocks map[types.BlockHash]*types.Block
	qcs    map[types.QuorumCertificateHash]*types.QuorumCertificate

	currentProposedBlock *types.BlockHash

	highestQCRound types.Round
	highestQCHash  types.QuorumCertificateHash

	highestTCRound types.Round
	highestTC      *types.TimeoutCertificate

	currentRound types.Round

	highestCommittedRound        types.Round
	highestCommitCertificateHash *types.QuorumCertificateHash

	currentTimeouts map[types.Author]*types.Timeout
	currentVotes    map[types.Author]*types.Vote
	timeoutWeight   uint64

	election *ElectionState

	cap crypto.Capability

	// leaderFunc resolves the round leader. It is injected rather than
	// imported from package pacemaker to avoid a store<->pacemaker
	// import cycle; Node wires it once at construction.
	leaderFunc func(types.Round) types.Author
}

// New creates a Record Store for a freshly entered epoch, seeded from the
// committed state and configuration that caused the epoch to start (spec
// ยง3 "Lifecycle"). currentRound starts at 1 (spec ยง8).
func New(epochID types.EpochId, cfg *types.Configuration, initialState types.HashValue, cap crypto.Capability) *Store {
	genesisHash := types.NewQuorumCertificateHash(crypto.HashEpochGenesis(epochID))
	return &Store{
		initialHash:     genesisHash,
		initialState:    initialState,
		epochID:         epochID,
		configuration:   cfg,
		blocks:          make(map[types.BlockHash]*types.Block),
		qcs:             make(map[types.QuorumCertificateHash]*types.QuorumCertificate),
		highestQCHash:   genesisHash,
		currentRound:    1,
		currentTimeouts: make(map[types.Author]*types.Timeout),
		currentVotes:    make(map[types.Author]*types.Vote),
		election:        newElectionState(),
		cap:             cap,
	}
}

// SetLeaderFunc wires the round-leader resolver used to decide whether an
// inserted block becomes the current_proposed_block (spec ยง3 invariant).
func (s *Store) SetLeaderFunc(f func(types.Round) types.Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderFunc = f
}

// EpochID returns the epoch this store belongs to.
func (s *Store) EpochID() types.EpochId { return s.epochID }

// Configuration returns the voting-rights snapshot for this epoch.
func (s *Store) Configuration() *types.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configuration
}

// InitialState returns the state this epoch's record store was seeded with.
func (s *Store) InitialState() types.HashValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialState
}

// CurrentRound returns the active round (spec ยง3).
func (s *Store) CurrentRound() types.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRound
}

// HighestQCRound returns the highest QC round known to this store.
func (s *Store) HighestQCRound() types.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestQCRound
}

// HighestTCRound returns the highest timeout-certificate round known to
// this store.
func (s *Store) HighestTCRound() types.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestTCRound
}

// HighestCommittedRound returns the highest committed round.
func (s *Store) HighestCommittedRound() types.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestCommittedRound
}

// GetBlock looks up a block by hash.
func (s *Store) GetBlock(h types.BlockHash) (*types.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[h]
	return b, ok
}

// GetQC looks up a quorum certificate by hash.
func (s *Store) GetQC(h types.QuorumCertificateHash) (*types.QuorumCertificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qc, ok := s.qcs[h]
	return qc, ok
}

// CurrentProposedBlock returns the single block hash proposed at the
// current round by that round's leader, if any.
func (s *Store) CurrentProposedBlock() (types.BlockHash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentProposedBlock == nil {
		return types.BlockHash{}, false
	}
	return *s.currentProposedBlock, true
}

// HasVoted reports whether author has already cast a vote at the current
// round (spec ยง3 invariant: at most one vote per (current_round, author)).
func (s *Store) HasVoted(author types.Author) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.currentVotes[author]
	return ok
}

// HasTimedOut reports whether author has already emitted a timeout at the
// current round.
func (s *Store) HasTimedOut(author types.Author) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.currentTimeouts[author]
	return ok
}

// CurrentVoteOf returns the vote author cast at the current round, if any.
// Used to populate a Notification's current_vote field.
func (s *Store) CurrentVoteOf(author types.Author) (*types.Vote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.currentVotes[author]
	return v, ok
}

// CurrentTimeouts returns a snapshot of every timeout collected at the
// current round.
func (s *Store) CurrentTimeouts() []*types.Timeout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Timeout, 0, len(s.currentTimeouts))
	for _, t := range s.currentTimeouts {
		out = append(out, t)
	}
	return out
}

// CurrentProposedBlockValue returns the block proposed at the current round
// by that round's leader, if any.
func (s *Store) CurrentProposedBlockValue() (*types.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentProposedBlock == nil {
		return nil, false
	}
	b, ok := s.blocks[*s.currentProposedBlock]
	return b, ok
}

// HighestQuorumCertificate returns the QC object backing HighestQCRound.
func (s *Store) HighestQuorumCertificate() (*types.QuorumCertificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qc, ok := s.qcs[s.highestQCHash]
	return qc, ok
}

// HighestCommitCertificate returns the QC object backing
// HighestCommitCertificateHash.
func (s *Store) HighestCommitCertificate() (*types.QuorumCertificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.highestCommitCertificateHash == nil {
		return nil, false
	}
	qc, ok := s.qcs[*s.highestCommitCertificateHash]
	return qc, ok
}

func blockHashOf(cap crypto.Capability, b *types.Block) types.BlockHash {
	return types.NewBlockHash(cap.Hash(b.SigningPayload()))
}

func qcHashOf(cap crypto.Capability, qc *types.QuorumCertificate) types.QuorumCertificateHash {
	return types.NewQuorumCertificateHash(cap.Hash(qc.SigningPayload()))
}
