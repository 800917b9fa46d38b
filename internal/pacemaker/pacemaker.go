// Package pacemaker decides, from the current Record Store and the
// wall-clock, what the active round and leader are and when to propose,
// time out, or force a data-sync query (spec ยง4.1).
//
// Grounded on the teacher's internal/consensus/timeout.go TimeoutScheduler
// for the shape of a small, mutex-guarded scheduler struct reset on
// commit; the duration formula, leader election and query-all cadence
// below have no teacher analogue and are built directly from the
// specification (see DESIGN.md).
package pacemaker

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// Pacemaker tracks the active round for one epoch's Record Store.
type Pacemaker struct {
	mu sync.Mutex

	delta  types.Duration
	gamma  float64
	lambda float64

	activeEpoch          types.EpochId
	activeRound          types.Round
	activeLeader         types.Author
	activeRoundStartTime types.NodeTime
	activeRoundDuration  types.Duration

	lastQueryAllTime types.NodeTime
}

// New builds a Pacemaker with the given tuning constants (spec ยง6
// defaults: delta 5000ms, gamma 2.0, lambda 0.5).
func New(delta types.Duration, gamma, lambda float64) *Pacemaker {
	return &Pacemaker{delta: delta, gamma: gamma, lambda: lambda}
}

// ActiveRound returns the round the Pacemaker currently considers active.
func (p *Pacemaker) ActiveRound() types.Round {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeRound
}

// ActiveLeader returns the author elected to lead the active round.
func (p *Pacemaker) ActiveLeader() types.Author {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLeader
}

// ActiveRoundStartTime returns the wall-clock time the active round began.
// Used by the Node's persistence path (spec §4.4.2) to compute the clock
// floor below which a reload must be refused.
func (p *Pacemaker) ActiveRoundStartTime() types.NodeTime {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeRoundStartTime
}

// RestoreActiveRoundStartTime seeds the round-start watermark from a
// persisted value, so a resumed replica's clock-regression check (spec
// §4.4.2) accounts for time elapsed before the restart even though the
// Record Store itself is rebuilt from data-sync rather than persisted.
func (p *Pacemaker) RestoreActiveRoundStartTime(t types.NodeTime) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRoundStartTime = t
}

// leaderSeed hashes round to a 64-bit seed, deterministic across
// replicas (spec ยง4.1 "Leader election").
func leaderSeed(round types.Round) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(round))
	digest := crypto.HashRecord(buf[:])
	return binary.BigEndian.Uint64(digest[:8])
}

// ElectLeader deterministically picks a configuration member for round,
// with probability proportional to voting weight, via a cumulative-weight
// scan over cfg.Peers (spec ยง4.1).
func ElectLeader(round types.Round, cfg *types.Configuration) types.Author {
	seed := leaderSeed(round)
	target := seed % cfg.TotalWeight
	var cumulative uint64
	for _, peer := range cfg.Peers {
		cumulative += peer.Weight
		if target < cumulative {
			return peer.Author
		}
	}
	return cfg.Peers[len(cfg.Peers)-1].Author
}

// roundDuration implements duration(round) = delta * n^gamma, where n is
// clamped to at least 1 so the round immediately following a commit uses
// exactly delta (spec ยง4.1 "Round duration").
func roundDuration(round, highestCommittedRound types.Round, delta types.Duration, gamma float64) types.Duration {
	floor := highestCommittedRound + 2
	n := 1.0
	if round > floor {
		n = float64(round - floor)
	}
	return types.Duration(float64(delta) * math.Pow(n, gamma))
}

// recomputeLocked recomputes leader and round duration for the current
// active round and epoch; callers must hold p.mu.
func (p *Pacemaker) recomputeLocked(store *recordstore.Store, now types.NodeTime) {
	p.activeLeader = ElectLeader(p.activeRound, store.Configuration())
	p.activeRoundStartTime = now
	p.activeRoundDuration = roundDuration(p.activeRound, store.HighestCommittedRound(), p.delta, p.gamma)
}
