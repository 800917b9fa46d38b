package node

import (
	"context"
	"testing"
	"time"

	"github.com/vantage-chain/core/internal/app"
	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/storage"
	"github.com/vantage-chain/core/internal/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Telemetry.Enabled = false
	return cfg
}

func testNode(t *testing.T) *Node {
	t.Helper()
	cfg := testConfig()
	author := types.Author{0x01}
	cap := crypto.NewDeterministicCapability(author)

	configuration, err := types.NewConfiguration([]types.Peer{{Author: author, Weight: 1}})
	if err != nil {
		t.Fatalf("new configuration: %v", err)
	}
	appl := app.NewMockApplication(configuration, types.HashValue{})
	store := storage.NewMemStore()

	n, err := New(cfg, cap, appl, store, nil)
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	return n
}

// --- ServiceManager tests ---

func TestServiceManagerStartStop(t *testing.T) {
	sm := NewServiceManager(nil)

	svc1 := &mockService{name: "svc1"}
	svc2 := &mockService{name: "svc2"}

	sm.Add(svc1)
	sm.Add(svc2)

	ctx := context.Background()
	if err := sm.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}

	if !svc1.started || !svc2.started {
		t.Fatal("expected both services started")
	}

	if err := sm.StopAll(); err != nil {
		t.Fatalf("stop all: %v", err)
	}

	if !svc1.stopped || !svc2.stopped {
		t.Fatal("expected both services stopped")
	}
}

func TestServiceManagerRollback(t *testing.T) {
	sm := NewServiceManager(nil)

	svc1 := &mockService{name: "svc1"}
	svc2 := &mockService{name: "svc2", failStart: true}

	sm.Add(svc1)
	sm.Add(svc2)

	ctx := context.Background()
	err := sm.StartAll(ctx)
	if err == nil {
		t.Fatal("expected error when svc2 fails to start")
	}

	if !svc1.stopped {
		t.Fatal("expected svc1 to be stopped during rollback")
	}
}

func TestServiceManagerStopReverseOrder(t *testing.T) {
	sm := NewServiceManager(nil)

	order := make([]string, 0)
	svc1 := &mockService{name: "svc1", onStop: func() { order = append(order, "svc1") }}
	svc2 := &mockService{name: "svc2", onStop: func() { order = append(order, "svc2") }}
	svc3 := &mockService{name: "svc3", onStop: func() { order = append(order, "svc3") }}

	sm.Add(svc1)
	sm.Add(svc2)
	sm.Add(svc3)

	sm.StartAll(context.Background())
	sm.StopAll()

	if len(order) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(order))
	}
	if order[0] != "svc3" || order[1] != "svc2" || order[2] != "svc1" {
		t.Errorf("expected stop order [svc3, svc2, svc1], got %v", order)
	}
}

func TestServiceManagerServices(t *testing.T) {
	sm := NewServiceManager(nil)
	sm.Add(&mockService{name: "a"})
	sm.Add(&mockService{name: "b"})

	if len(sm.Services()) != 2 {
		t.Errorf("expected 2 services, got %d", len(sm.Services()))
	}
}

// --- Node lifecycle tests ---

func TestNodeCreateAndStop(t *testing.T) {
	n := testNode(t)

	if n.Store() == nil {
		t.Fatal("expected non-nil store")
	}
	if n.CurrentRecordStore() == nil {
		t.Fatal("expected non-nil record store")
	}

	// Stop without start should not panic.
	n.Stop()
}

func TestNodeStartStop(t *testing.T) {
	n := testNode(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := n.Start(ctx); err != nil {
		t.Fatalf("start node: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("stop node: %v", err)
	}
}

func TestNodeSoleReplicaProposesAndCommits(t *testing.T) {
	n := testNode(t)

	now := types.NodeTime(0)
	for i := 0; i < 12; i++ {
		if _, err := n.UpdateNode(context.Background(), now); err != nil {
			t.Fatalf("update node: %v", err)
		}
		now += types.NodeTime(n.cfg.Pacemaker.Delta.Duration.Milliseconds()) + 1
	}

	if n.CurrentRecordStore().HighestCommittedRound() == 0 {
		t.Fatal("expected the sole replica to have committed at least one round")
	}
}

// --- Mock service ---

type mockService struct {
	name      string
	started   bool
	stopped   bool
	failStart bool
	onStop    func()
}

func (m *mockService) Start(ctx context.Context) error {
	if m.failStart {
		return context.DeadlineExceeded
	}
	m.started = true
	return nil
}

func (m *mockService) Stop() error {
	m.stopped = true
	if m.onStop != nil {
		m.onStop()
	}
	return nil
}

func (m *mockService) Name() string {
	return m.name
}
