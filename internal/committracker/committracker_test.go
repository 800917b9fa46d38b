package committracker

import (
	"testing"

	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/types"
)

func newTestStore(t *testing.T) *recordstore.Store {
	t.Helper()
	author := types.Author{0x09}
	cfg, err := types.NewConfiguration([]types.Peer{{Author: author, Weight: 1}})
	if err != nil {
		t.Fatalf("new configuration: %v", err)
	}
	return recordstore.New(types.EpochId(1), cfg, types.HashValue{}, crypto.NewDeterministicCapability(author))
}

func TestUpdateSchedulesWithinInterval(t *testing.T) {
	store := newTestStore(t)
	tracker := New(types.Duration(500))

	actions := tracker.Update(store, types.NodeTime(0), types.NodeTime(0))
	if actions.ShouldQueryAll {
		t.Fatalf("expected no query-all immediately after construction")
	}
	if actions.NextScheduledUpdate != types.NodeTime(500) {
		t.Fatalf("expected deadline at 500, got %d", actions.NextScheduledUpdate)
	}
}

func TestUpdateFiresQueryAllPastDeadline(t *testing.T) {
	store := newTestStore(t)
	tracker := New(types.Duration(500))

	tracker.Update(store, types.NodeTime(0), types.NodeTime(0))
	actions := tracker.Update(store, types.NodeTime(600), types.NodeTime(0))
	if !actions.ShouldQueryAll {
		t.Fatalf("expected query-all to fire once past the deadline")
	}
	if actions.NextScheduledUpdate != types.NodeTime(1100) {
		t.Fatalf("expected next deadline pushed forward by one interval, got %d", actions.NextScheduledUpdate)
	}
}
