// Package node wires the Record Store, Pacemaker, Commit Tracker and
// Application together into the single-writer replica orchestrator spec
// §4.4 describes, and persists the small slice of state that must
// survive a restart without violating voting safety.
//
// Grounded on the teacher's internal/node package: the Node struct shape
// (owned subsystems, a ServiceManager-driven Start/Stop, a logger scoped
// by node id) is kept; NewEngine's single 2-chain consensus.Engine is
// replaced by the owned recordstore.Store/pacemaker.Pacemaker/
// committracker.Tracker triple this domain's 3-chain rule needs (see
// DESIGN.md).
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vantage-chain/core/internal/app"
	"github.com/vantage-chain/core/internal/committracker"
	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/pacemaker"
	"github.com/vantage-chain/core/internal/recordstore"
	"github.com/vantage-chain/core/internal/storage"
	"github.com/vantage-chain/core/internal/types"
)

// Node is the top-level replica that owns and drives all consensus
// subsystems for one author identity (spec §4.4, "Node").
type Node struct {
	mu sync.Mutex

	cfg    *config.Config
	cap    crypto.Capability
	self   types.Author
	appl   app.Application
	store  storage.Store
	logger *zap.Logger

	current          *recordstore.Store
	pastRecordStores map[types.EpochId]*recordstore.Store

	pacemaker *pacemaker.Pacemaker
	tracker   *committracker.Tracker

	// Voting-safety state (spec §4.4.1): never vote twice in one round,
	// never vote for a block whose previous (parent QC) round is below
	// the round this replica has locked on.
	latestVotedRound  types.Round
	lockedRound       types.Round
	lastCommittedRound types.Round

	latestQueryAllTime types.NodeTime

	svcMgr *ServiceManager
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// New creates a Node for the given author identity, seeding its initial
// Record Store from the application's last committed state (spec §4.4.1
// "on startup").
func New(cfg *config.Config, cap crypto.Capability, appl app.Application, store storage.Store, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	self := cap.Author()
	logger = logger.With(zap.String("author", hex.EncodeToString(self[:8])))

	genesisState := appl.LastCommittedState()
	epochID, err := appl.ReadEpochID(genesisState)
	if err != nil {
		return nil, fmt.Errorf("node: read epoch id: %w", err)
	}
	configuration, err := appl.Configuration(genesisState)
	if err != nil {
		return nil, fmt.Errorf("node: read configuration: %w", err)
	}

	current := recordstore.New(epochID, configuration, genesisState, cap)
	current.SetLeaderFunc(func(round types.Round) types.Author {
		return pacemaker.ElectLeader(round, current.Configuration())
	})

	n := &Node{
		cfg:              cfg,
		cap:              cap,
		self:             self,
		appl:             appl,
		store:            store,
		logger:           logger,
		current:          current,
		pastRecordStores: make(map[types.EpochId]*recordstore.Store),
		pacemaker:        pacemaker.New(types.Duration(cfg.Pacemaker.Delta.Duration.Milliseconds()), cfg.Pacemaker.Gamma, cfg.Pacemaker.Lambda),
		tracker:          committracker.New(types.Duration(cfg.Pacemaker.TargetCommitInterval.Duration.Milliseconds())),
		svcMgr:           NewServiceManager(logger),
		done:             make(chan struct{}),
	}

	if err := n.restoreSafetyState(); err != nil {
		if errors.Is(err, ErrClockRegression) {
			return nil, fmt.Errorf("node: %w", err)
		}
		logger.Warn("no prior safety state restored", zap.Error(err))
	}

	return n, nil
}

// AddService registers a managed subsystem (transport, admin server,
// metrics server) to be started alongside the update loop and stopped,
// in reverse order, when the Node stops. Callers must register every
// service before calling Start.
func (n *Node) AddService(svc Service) {
	n.svcMgr.Add(svc)
}

// Start launches every registered service and the background update
// loop (spec §4.4.1 "driven by a clock source and by incoming network
// records").
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.logger.Info("node starting", zap.String("moniker", n.cfg.Moniker), zap.String("chain_id", n.cfg.ChainID))

	if err := n.svcMgr.StartAll(ctx); err != nil {
		cancel()
		return err
	}

	n.wg.Add(1)
	go n.runLoop(ctx)

	return nil
}

// Stop signals the update loop to exit, blocks until it has, and stops
// every registered service in reverse start order.
func (n *Node) Stop() error {
	n.logger.Info("node stopping")
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	svcErr := n.svcMgr.StopAll()
	if n.store != nil {
		n.store.Close()
	}
	close(n.done)
	n.logger.Info("node stopped")
	return svcErr
}

// Wait blocks until the node has stopped.
func (n *Node) Wait() error {
	<-n.done
	return nil
}

// Store exposes the underlying persistence (for testing and admin
// endpoints).
func (n *Node) Store() storage.Store { return n.store }

// CurrentRecordStore exposes the active epoch's Record Store (for
// testing, data-sync and admin endpoints).
func (n *Node) CurrentRecordStore() *recordstore.Store {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Self returns this replica's author identity.
func (n *Node) Self() types.Author { return n.self }
