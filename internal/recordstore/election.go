package recordstore

import "github.com/vantage-chain/core/internal/types"

// ElectionStatus is the per-round vote tally state (spec ยง4.2.3).
type ElectionStatus int

const (
	// ElectionOngoing means no (block, state) pair has reached quorum yet
	// and the round has not been closed.
	ElectionOngoing ElectionStatus = iota
	// ElectionWon means some (block, state) pair has reached the quorum
	// threshold; a QC can be formed from its ballot.
	ElectionWon
	// ElectionClosed means a QC has already been formed for this round;
	// further votes are recorded but cannot start a new tally.
	ElectionClosed
)

type ballotKey struct {
	block types.BlockHash
	state types.HashValue
}

// ElectionState is the vote tally for the current round: for every
// (certified_block_hash, state) pair seen, the set of votes cast for it
// and the combined weight of their authors (spec ยง4.2.3).
type ElectionState struct {
	status  ElectionStatus
	ballots map[ballotKey][]types.VoteSignature
	winner  *ballotKey
}

func newElectionState() *ElectionState {
	return &ElectionState{ballots: make(map[ballotKey][]types.VoteSignature)}
}

// reset clears the tally for a new round (spec ยง4.2.4 "round advance
// clears the per-round ballot").
func (e *ElectionState) reset() {
	e.status = ElectionOngoing
	e.ballots = make(map[ballotKey][]types.VoteSignature)
	e.winner = nil
}

// record adds a vote to its (block, state) ballot and returns the new
// combined weight for that ballot. It is the caller's responsibility to
// have already rejected equivocation and verified the signature.
func (e *ElectionState) record(v *types.Vote, cfg *types.Configuration) uint64 {
	key := ballotKey{block: v.CertifiedBlockHash, state: v.State}
	e.ballots[key] = append(e.ballots[key], types.VoteSignature{Author: v.Author, Signature: v.Signature})

	var weight uint64
	for _, vs := range e.ballots[key] {
		if peer, ok := cfg.GetByAuthor(vs.Author); ok {
			weight += peer.Weight
		}
	}
	if e.status == ElectionOngoing && cfg.HasQuorum(weight) {
		e.status = ElectionWon
		k := key
		e.winner = &k
	}
	return weight
}

// winningBallot returns the votes backing the winning (block, state) pair,
// if the election has been won.
func (e *ElectionState) winningBallot() ([]types.VoteSignature, types.BlockHash, types.HashValue, bool) {
	if e.winner == nil {
		return nil, types.BlockHash{}, types.HashValue{}, false
	}
	return e.ballots[*e.winner], e.winner.block, e.winner.state, true
}

// close transitions a won election to closed, once its QC has been formed.
func (e *ElectionState) close() {
	if e.status == ElectionWon {
		e.status = ElectionClosed
	}
}
