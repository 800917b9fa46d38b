// Package datasync implements the gossip-triggered catch-up protocol spec
// §4.5 describes: a Notification summarizes a replica's position so peers
// can detect they have fallen behind, a Request carries the sparse
// digest recordstore.Store.KnownQuorumCertificateRounds produces, and a
// Response batches the records the requester is missing, grouped per epoch
// so a requester lagging across an epoch boundary can replay in order.
//
// Grounded on the teacher's internal/sync package, reworked from the
// teacher's pull-based height-range fast sync to this round-based,
// gossip-triggered exchange, since a height range has no analogue once
// blocks are addressed by round and epoch rather than a monotonic height.
// The package holds stateless build and handle helpers only: it keeps no
// sync state of its own and has no separate fetcher or verifier; records
// are verified by the Record Store when they are inserted.
package datasync

import (
	"github.com/vantage-chain/core/internal/p2p"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// BuildNotification summarizes a Record Store's current position for
// broadcast alongside ordinary records (spec §4.5). self identifies the
// sender; the current vote and proposed block are only attached when they
// belong to self, so a peer that already proposed or voted doesn't get its
// own record reshared back at it.
func BuildNotification(store *recordstore.Store, self types.Author) *p2p.Notification {
	n := &p2p.Notification{
		Author:       self,
		CurrentEpoch: store.EpochID(),
	}
	if qc, ok := store.HighestQuorumCertificate(); ok {
		n.HighestQuorumCertificate = qc
	}
	if qc, ok := store.HighestCommitCertificate(); ok {
		n.HighestCommitCertificate = qc
	}
	n.Timeouts = store.CurrentTimeouts()
	if v, ok := store.CurrentVoteOf(self); ok {
		n.CurrentVote = v
	}
	if b, ok := store.CurrentProposedBlockValue(); ok && b.Author == self {
		n.ProposedBlock = b
	}
	return n
}

// ShouldSync reports whether a received Notification indicates the local
// replica has fallen behind the sender and should issue a Request (spec
// §4.5): the notifier is in a strictly greater epoch, its commit-certificate
// round exceeds local highest_committed_round+2 in the same epoch, or its
// highest-QC round exceeds the local highest-QC round in the same epoch.
func ShouldSync(local *recordstore.Store, remote *p2p.Notification) bool {
	if remote.CurrentEpoch > local.EpochID() {
		return true
	}
	if remote.CurrentEpoch < local.EpochID() {
		return false
	}
	if remote.HighestCommitCertificate != nil && remote.HighestCommitCertificate.Round > local.HighestCommittedRound()+2 {
		return true
	}
	if remote.HighestQuorumCertificate != nil && remote.HighestQuorumCertificate.Round > local.HighestQCRound() {
		return true
	}
	return false
}
