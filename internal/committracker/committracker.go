// Package committracker is the query-all safety net described in spec
// ยง4.3: independent of the Pacemaker's per-round timeouts, it forces a
// data-sync query-all whenever no commit has landed for an entire
// target interval, keeping liveness under asymmetric partitions where
// timeouts alone would not fire fast enough.
//
// No teacher analogue exists for this exact cadence; closest relative is
// the teacher's ConsensusState LastCommitHeight/LastCommitQC bookkeeping.
// The tracker is a plain mutex-guarded struct holding the four fields
// spec ยง4.3 names, with no state enum (see DESIGN.md).
package committracker

import (
	"sync"

	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// Tracker holds (epoch_id, highest_committed_round, latest_commit_time,
// target_commit_interval) (spec ยง4.3).
type Tracker struct {
	mu sync.Mutex

	epochID               types.EpochId
	highestCommittedRound types.Round
	latestCommitTime      types.NodeTime
	targetCommitInterval  types.Duration
}

// New builds a Tracker with the given target commit interval (spec ยง6
// default: 500ms).
func New(targetCommitInterval types.Duration) *Tracker {
	return &Tracker{targetCommitInterval: targetCommitInterval}
}

// LatestCommitTime returns the last time a new commit round or epoch was
// observed. Used by the Node's persistence path (spec §4.4.2) to compute
// the clock floor below which a reload must be refused.
func (t *Tracker) LatestCommitTime() types.NodeTime {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestCommitTime
}

// RestoreLatestCommitTime seeds the tracker's commit-time watermark from a
// persisted value after a restart.
func (t *Tracker) RestoreLatestCommitTime(v types.NodeTime) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latestCommitTime = v
}

// Actions is the output of one Update call.
type Actions struct {
	ShouldQueryAll      bool
	NextScheduledUpdate types.NodeTime
}

// Update observes store for a new commit round or epoch, and decides
// whether a forced data-sync query-all is due (spec ยง4.3).
// latestQueryAllTime is the Node's last recorded query-all time, folded
// in so the deadline never regresses behind a query-all that already
// fired for another reason (e.g. the Pacemaker's own cadence).
func (t *Tracker) Update(store *recordstore.Store, now, latestQueryAllTime types.NodeTime) *Actions {
	t.mu.Lock()
	defer t.mu.Unlock()

	epoch := store.EpochID()
	round := store.HighestCommittedRound()
	if epoch != t.epochID || round > t.highestCommittedRound {
		t.epochID = epoch
		t.highestCommittedRound = round
		t.latestCommitTime = now
	}

	base := t.latestCommitTime
	if latestQueryAllTime > base {
		base = latestQueryAllTime
	}
	deadline := base.Add(t.targetCommitInterval)

	if now >= deadline {
		return &Actions{ShouldQueryAll: true, NextScheduledUpdate: now.Add(t.targetCommitInterval)}
	}
	return &Actions{NextScheduledUpdate: deadline}
}
