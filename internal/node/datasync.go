package node

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vantage-chain/core/internal/datasync"
	"github.com/vantage-chain/core/internal/p2p"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// InsertRecord applies a single network record (a *types.Block, *types.Vote,
// *types.QuorumCertificate or *types.Timeout received off the wire) to the
// active epoch's Record Store. Callers are expected to log and drop on
// error, never propagate (spec §7 "record-verification failure").
func (n *Node) InsertRecord(record any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current.InsertNetworkRecord(record)
}

// BuildNotification summarizes this replica's position for broadcast
// alongside ordinary records (spec §4.5). When the current epoch has not
// yet produced a commit certificate of its own, it falls back to the
// previous epoch's, so a freshly-entered epoch doesn't briefly claim to
// have no commit history at all.
func (n *Node) BuildNotification() *p2p.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	notification := datasync.BuildNotification(n.current, n.self)
	if notification.HighestCommitCertificate == nil {
		if previous, ok := n.current.EpochID().Previous(); ok {
			if store, ok := n.pastRecordStores[previous]; ok {
				if qc, ok := store.HighestCommitCertificate(); ok {
					notification.HighestCommitCertificate = qc
				}
			}
		}
	}
	return notification
}

// HandleNotification absorbs every record a peer's Notification carries, in
// the fixed order highest_commit_certificate -> highest_quorum_certificate
// -> proposed_block -> timeouts -> current_vote, then decides whether the
// notifier is still ahead of this replica's (now possibly updated) position
// and, if so, returns the Request to send back (spec §4.5). Verification
// failures on individual embedded records are dropped silently, per the
// normal insert_network_record contract.
func (n *Node) HandleNotification(remote *p2p.Notification) (*p2p.Request, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if remote.CurrentEpoch == n.current.EpochID() {
		if remote.HighestCommitCertificate != nil {
			if err := n.current.InsertNetworkRecord(remote.HighestCommitCertificate); err != nil {
				n.logger.Debug("datasync: notification commit certificate dropped", zap.Error(err))
			}
		}
		if remote.HighestQuorumCertificate != nil {
			if err := n.current.InsertNetworkRecord(remote.HighestQuorumCertificate); err != nil {
				n.logger.Debug("datasync: notification quorum certificate dropped", zap.Error(err))
			}
		}
		if remote.ProposedBlock != nil {
			if err := n.current.InsertNetworkRecord(remote.ProposedBlock); err != nil {
				n.logger.Debug("datasync: notification proposed block dropped", zap.Error(err))
			}
		}
		for _, t := range remote.Timeouts {
			if err := n.current.InsertNetworkRecord(t); err != nil {
				n.logger.Debug("datasync: notification timeout dropped", zap.Error(err))
			}
		}
		if remote.CurrentVote != nil {
			if err := n.current.InsertNetworkRecord(remote.CurrentVote); err != nil {
				n.logger.Debug("datasync: notification vote dropped", zap.Error(err))
			}
		}
	}

	if !datasync.ShouldSync(n.current, remote) {
		return nil, false
	}
	return datasync.BuildRequest(n.current, n.self), true
}

// HandleRequest answers a peer's Request with every record this replica
// holds that the peer's digest marks as unknown, spanning from the peer's
// reported epoch through this replica's current epoch (spec §4.5).
func (n *Node) HandleRequest(req *p2p.Request) *p2p.Response {
	n.mu.Lock()
	defer n.mu.Unlock()

	stores := n.storesFromEpochLocked(req.CurrentEpoch)
	if len(stores) == 0 {
		return &p2p.Response{CurrentEpoch: n.current.EpochID()}
	}
	return datasync.HandleRequest(req, stores)
}

// storesFromEpochLocked returns every Record Store this replica still
// holds from startEpoch through the current epoch, in ascending epoch
// order. Callers must hold n.mu.
func (n *Node) storesFromEpochLocked(startEpoch types.EpochId) []*recordstore.Store {
	var epochs []types.EpochId
	for e := range n.pastRecordStores {
		if e >= startEpoch {
			epochs = append(epochs, e)
		}
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })

	stores := make([]*recordstore.Store, 0, len(epochs)+1)
	for _, e := range epochs {
		stores = append(stores, n.pastRecordStores[e])
	}
	if n.current.EpochID() >= startEpoch {
		stores = append(stores, n.current)
	}
	return stores
}

// HandleResponse applies every batch in a Response, oldest epoch first. A
// batch targeting the active epoch's store is applied directly and
// immediately followed by a commit pass and a Commit Tracker update, so a
// multi-batch response that crosses an epoch boundary observes each
// epoch's commits before the next batch's records (which may belong to
// the new epoch) are applied. Batches for an epoch this replica no longer
// holds a Record Store for (already retired, or not yet reached) are
// skipped; the next Notification/Request cycle will retry them once this
// replica's epoch catches up.
func (n *Node) HandleResponse(resp *p2p.Response, now types.NodeTime) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, batch := range resp.Batches {
		store := n.storeForEpochLocked(batch.EpochID)
		if store == nil {
			n.logger.Debug("datasync: dropping batch for unknown epoch", zap.Uint64("epoch", uint64(batch.EpochID)))
			continue
		}

		applied, remaining := datasync.ApplyBatch(store, batch)
		n.logger.Debug("datasync: applied batch",
			zap.Uint64("epoch", uint64(batch.EpochID)),
			zap.Int("applied", applied),
			zap.Int("remaining", remaining))

		if store == n.current {
			if _, err := n.processCommitsLocked(); err != nil {
				return fmt.Errorf("node: datasync: process commits: %w", err)
			}
			n.tracker.Update(n.current, now, n.latestQueryAllTime)
		}
	}
	return nil
}

// storeForEpochLocked returns the Record Store for the given epoch, if this
// replica still holds one. Callers must hold n.mu.
func (n *Node) storeForEpochLocked(epoch types.EpochId) *recordstore.Store {
	if n.current.EpochID() == epoch {
		return n.current
	}
	return n.pastRecordStores[epoch]
}
