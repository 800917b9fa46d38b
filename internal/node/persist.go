package node

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vantage-chain/core/internal/storage"
	"github.com/vantage-chain/core/internal/types"
)

// ErrClockRegression is returned by restoreSafetyState when the current
// wall clock trails a watermark this replica persisted before its last
// shutdown (spec §7 item 3). Callers must treat this as fatal rather
// than falling back to "nothing to restore".
var ErrClockRegression = errors.New("node: clock regression detected")

// safetyStateSize is the fixed width of the persisted record: epoch_id,
// latest_voted_round, locked_round, last_committed_round, and three
// NodeTime watermarks (8 bytes each).
const safetyStateSize = 7 * 8

// persistSafetyStateLocked writes the voting-safety scalars under one
// logical key (spec §4.4.2, "one logical key holds the serialized Node
// state"). Only the scalars that gate double-voting and clock regression
// are persisted; the block/QC graph itself is expected to be recovered
// from peers through data-sync after a restart, since it is not
// safety-critical on its own. Callers must hold n.mu.
func (n *Node) persistSafetyStateLocked() error {
	if n.store == nil {
		return nil
	}
	var buf [safetyStateSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(n.current.EpochID()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(n.latestVotedRound))
	binary.BigEndian.PutUint64(buf[16:24], uint64(n.lockedRound))
	binary.BigEndian.PutUint64(buf[24:32], uint64(n.lastCommittedRound))
	binary.BigEndian.PutUint64(buf[32:40], uint64(n.latestQueryAllTime))
	binary.BigEndian.PutUint64(buf[40:48], uint64(n.pacemaker.ActiveRoundStartTime()))
	binary.BigEndian.PutUint64(buf[48:56], uint64(n.tracker.LatestCommitTime()))
	return n.store.StoreValue(storage.NodeStateKey, buf[:])
}

// restoreSafetyState loads a previously persisted safety record, if one
// exists and its epoch matches the Record Store this Node was just
// constructed with. A mismatched epoch (the application advanced past
// what this restart's genesis state implies) is treated as "nothing to
// restore" rather than an error, since the epoch-change path already
// resets these fields to zero.
//
// It also enforces the clock-regression check spec §4.4.2 and §7 item 3
// require: a replica's wall clock must never be observed to move
// backwards relative to the highest NodeTime watermark it persisted
// before the last shutdown. A backwards clock can let a replica vote
// twice for the same round after its timeout fires "again" under a
// rewound clock, so a violation is refused outright rather than
// silently reset.
func (n *Node) restoreSafetyState() error {
	if n.store == nil {
		return fmt.Errorf("node: no storage configured")
	}
	data, ok, err := n.store.ReadValue(storage.NodeStateKey)
	if err != nil {
		return fmt.Errorf("node: read safety state: %w", err)
	}
	if !ok || len(data) != safetyStateSize {
		return fmt.Errorf("node: no prior safety state")
	}

	epochID := types.EpochId(binary.BigEndian.Uint64(data[0:8]))
	if epochID != n.current.EpochID() {
		return fmt.Errorf("node: persisted epoch %d does not match current epoch %d", epochID, n.current.EpochID())
	}

	latestVotedRound := types.Round(binary.BigEndian.Uint64(data[8:16]))
	lockedRound := types.Round(binary.BigEndian.Uint64(data[16:24]))
	lastCommittedRound := types.Round(binary.BigEndian.Uint64(data[24:32]))
	latestQueryAllTime := types.NodeTime(binary.BigEndian.Uint64(data[32:40]))
	activeRoundStartTime := types.NodeTime(binary.BigEndian.Uint64(data[40:48]))
	latestCommitTime := types.NodeTime(binary.BigEndian.Uint64(data[48:56]))

	floor := latestQueryAllTime
	if activeRoundStartTime > floor {
		floor = activeRoundStartTime
	}
	if latestCommitTime > floor {
		floor = latestCommitTime
	}

	now := types.NodeTime(time.Now().UnixMilli())
	if now < floor {
		return fmt.Errorf("%w: wall clock %d is behind persisted watermark %d", ErrClockRegression, now, floor)
	}

	n.latestVotedRound = latestVotedRound
	n.lockedRound = lockedRound
	n.lastCommittedRound = lastCommittedRound
	n.latestQueryAllTime = latestQueryAllTime
	n.pacemaker.RestoreActiveRoundStartTime(activeRoundStartTime)
	n.tracker.RestoreLatestCommitTime(latestCommitTime)
	return nil
}
