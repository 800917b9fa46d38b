package pacemaker

import (
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// Actions is the output of one Update call (spec ยง4.1 "Outputs").
type Actions struct {
	ShouldProposeBlock  *types.QuorumCertificateHash
	ShouldCreateTimeout *types.Round
	ShouldSend          []types.Author
	ShouldBroadcast     bool
	ShouldQueryAll      bool
	NextScheduledUpdate types.NodeTime
}

// Update recomputes the active round and leader from store and returns
// what the caller (Node) should do next (spec ยง4.1). self is the local
// replica's own author identity.
func (p *Pacemaker) Update(store *recordstore.Store, self types.Author, now types.NodeTime) *Actions {
	p.mu.Lock()
	defer p.mu.Unlock()

	actions := &Actions{NextScheduledUpdate: types.NeverTime}

	newRound := store.HighestQCRound()
	if tcRound := store.HighestTCRound(); tcRound > newRound {
		newRound = tcRound
	}
	newRound++

	epochChanged := store.EpochID() != p.activeEpoch
	roundChanged := newRound != p.activeRound
	if epochChanged || roundChanged {
		p.activeEpoch = store.EpochID()
		p.activeRound = newRound
		p.recomputeLocked(store, now)
		if p.activeLeader != self {
			actions.ShouldSend = append(actions.ShouldSend, p.activeLeader)
		}
	}

	// Proposal rule: leader of the active round proposes once, if no
	// proposal exists yet at that round.
	if p.activeLeader == self {
		if _, hasProposal := store.CurrentProposedBlock(); !hasProposal && store.CurrentRound() == p.activeRound {
			parent := store.HighestQuorumCertificateHash()
			actions.ShouldProposeBlock = &parent
			actions.ShouldBroadcast = true
			actions.NextScheduledUpdate = now
		}
	}

	// Timeout rule.
	timeoutDeadline := p.activeRoundStartTime.Add(p.activeRoundDuration)
	if !store.HasTimedOut(self) {
		if now >= timeoutDeadline {
			round := p.activeRound
			actions.ShouldCreateTimeout = &round
			actions.ShouldBroadcast = true
		} else {
			actions.NextScheduledUpdate = actions.NextScheduledUpdate.Min(timeoutDeadline)
		}
	} else {
		// Query-all cadence: once a timeout has been issued at this
		// round, keep probing at period lambda * duration so a hidden
		// quorum cannot silently strand this replica.
		period := types.Duration(p.lambda * float64(p.activeRoundDuration))
		nextQueryAll := p.lastQueryAllTime.Add(period)
		if now >= nextQueryAll {
			actions.ShouldQueryAll = true
			p.lastQueryAllTime = now
			nextQueryAll = now.Add(period)
		}
		actions.NextScheduledUpdate = actions.NextScheduledUpdate.Min(nextQueryAll)
	}

	return actions
}
