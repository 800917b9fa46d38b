package datasync

import (
	"github.com/vantage-chain/core/internal/p2p"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// ApplyBatch inserts every record in an EpochBatch into store, retrying in
// fixed-point fashion: a record that fails because its parent hasn't landed
// yet becomes insertable once that parent is applied later in the same
// pass, so the batch's arbitrary wire order never needs pre-sorting.
// Insertion stops once a full pass makes no further progress; that same
// mechanism absorbs records already present in store, since
// InsertBlock/InsertQC/InsertTimeout reject duplicates and those entries
// simply never succeed. Returns the number of records applied and the
// number left over that never became insertable.
func ApplyBatch(store *recordstore.Store, batch p2p.EpochBatch) (applied int, remaining int) {
	blocks := append([]*types.Block(nil), batch.Blocks...)
	qcs := append([]*types.QuorumCertificate(nil), batch.QCs...)
	timeouts := append([]*types.Timeout(nil), batch.Timeouts...)

	total := len(blocks) + len(qcs) + len(timeouts)

	for {
		progress := false

		var pendingBlocks []*types.Block
		for _, b := range blocks {
			if store.InsertBlock(b) == nil {
				progress = true
			} else {
				pendingBlocks = append(pendingBlocks, b)
			}
		}
		blocks = pendingBlocks

		var pendingQCs []*types.QuorumCertificate
		for _, qc := range qcs {
			if store.InsertQC(qc) == nil {
				progress = true
			} else {
				pendingQCs = append(pendingQCs, qc)
			}
		}
		qcs = pendingQCs

		var pendingTimeouts []*types.Timeout
		for _, t := range timeouts {
			if store.InsertTimeout(t) == nil {
				progress = true
			} else {
				pendingTimeouts = append(pendingTimeouts, t)
			}
		}
		timeouts = pendingTimeouts

		if !progress {
			break
		}
	}

	remaining = len(blocks) + len(qcs) + len(timeouts)
	applied = total - remaining
	return applied, remaining
}
