package datasync

import (
	"github.com/vantage-chain/core/internal/p2p"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

// BuildRequest builds a Request carrying the sparse known-rounds digest for
// the current epoch's Record Store (spec §4.5).
func BuildRequest(store *recordstore.Store, self types.Author) *p2p.Request {
	return &p2p.Request{
		Author:        self,
		CurrentEpoch:  store.EpochID(),
		KnownQCRounds: store.KnownQuorumCertificateRounds(),
	}
}

// HandleRequest answers a Request with every record judged unknown to the
// requester, batched per epoch in increasing-epoch order (spec §4.5). stores
// must already be filtered to the epochs from req.CurrentEpoch through the
// responder's current epoch, sorted ascending; the requester's own known-QC
// digest is applied to the first (oldest) store only, since the requester
// can't know anything about an epoch it hasn't reached yet.
func HandleRequest(req *p2p.Request, stores []*recordstore.Store) *p2p.Response {
	resp := &p2p.Response{}
	for i, store := range stores {
		known := []types.Round(nil)
		if i == 0 && store.EpochID() == req.CurrentEpoch {
			known = req.KnownQCRounds
		}
		records := store.UnknownRecords(known)
		if len(records) == 0 {
			continue
		}
		batch := p2p.EpochBatch{EpochID: store.EpochID()}
		for _, r := range records {
			switch {
			case r.Block != nil:
				batch.Blocks = append(batch.Blocks, r.Block)
			case r.QC != nil:
				batch.QCs = append(batch.QCs, r.QC)
			case r.Timeout != nil:
				batch.Timeouts = append(batch.Timeouts, r.Timeout)
			}
		}
		resp.Batches = append(resp.Batches, batch)
	}
	if len(stores) > 0 {
		resp.CurrentEpoch = stores[len(stores)-1].EpochID()
	}
	return resp
}
