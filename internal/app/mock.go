package app

import (
	"context"
	"sync"

	"github.com/vantage-chain/core/internal/types"
)

// MockApplication is a configurable Application test double, grounded on
// the teacher's execution.MockExecutor shape (fixed next-result fields,
// a call counter, last-call recording) adapted to the compute/commit/
// discard/configuration surface.
type MockApplication struct {
	mu sync.Mutex

	pending [][]byte

	NextState  types.HashValue
	ShouldFail bool
	FailErr    error

	ComputeCalls int
	LastCommand  []byte

	Committed []types.HashValue
	Discarded []types.HashValue

	cfg            *types.Configuration
	configurations map[types.EpochId]*types.Configuration
	epochOf        map[types.HashValue]types.EpochId
	lastComitted   types.HashValue

	// nextEpoch and nextEpochConfig, when nextEpoch is non-nil, make the
	// following Compute call report the resulting state as belonging to a
	// new epoch under the given configuration, so tests can simulate an
	// epoch-changing command without a real application.
	nextEpoch       *types.EpochId
	nextEpochConfig *types.Configuration
}

// NewMockApplication builds a mock application seeded with the genesis
// configuration and state.
func NewMockApplication(cfg *types.Configuration, genesisState types.HashValue) *MockApplication {
	return &MockApplication{
		cfg:            cfg,
		configurations: map[types.EpochId]*types.Configuration{0: cfg},
		epochOf:        map[types.HashValue]types.EpochId{genesisState: 0},
		lastComitted:   genesisState,
	}
}

// SetNextEpoch arranges for the next Compute call's resulting state to be
// recorded under the given epoch and configuration, so tests can exercise
// an epoch change without a real application behind it.
func (m *MockApplication) SetNextEpoch(epoch types.EpochId, cfg *types.Configuration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEpoch = &epoch
	m.nextEpochConfig = cfg
}

// QueueCommand adds a command that Fetch will return on a subsequent
// call, FIFO.
func (m *MockApplication) QueueCommand(cmd []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, cmd)
}

// Fetch implements Application.
func (m *MockApplication) Fetch(_ context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, false, nil
	}
	cmd := m.pending[0]
	m.pending = m.pending[1:]
	return cmd, true, nil
}

// Compute implements Application. The resulting state inherits baseState's
// epoch unless a pending SetNextEpoch override applies, so a chain of
// computations stays in the same epoch by default.
func (m *MockApplication) Compute(_ context.Context, baseState types.HashValue, command []byte, _ types.NodeTime, _ *types.Author, _ []types.Author) (types.HashValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ComputeCalls++
	m.LastCommand = command

	if m.ShouldFail {
		if m.FailErr != nil {
			return types.HashValue{}, m.FailErr
		}
		return types.HashValue{}, ErrRejected
	}

	if m.nextEpoch != nil {
		m.epochOf[m.NextState] = *m.nextEpoch
		m.configurations[*m.nextEpoch] = m.nextEpochConfig
		m.nextEpoch = nil
		m.nextEpochConfig = nil
	} else if _, known := m.epochOf[m.NextState]; !known {
		m.epochOf[m.NextState] = m.epochOf[baseState]
	}
	return m.NextState, nil
}

// Commit implements Application.
func (m *MockApplication) Commit(state types.HashValue, _ *types.QuorumCertificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Committed = append(m.Committed, state)
	m.lastComitted = state
	return nil
}

// Discard implements Application.
func (m *MockApplication) Discard(state types.HashValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Discarded = append(m.Discarded, state)
	return nil
}

// ReadEpochID implements Application.
func (m *MockApplication) ReadEpochID(state types.HashValue) (types.EpochId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochOf[state], nil
}

// Configuration implements Application. It returns the configuration
// recorded for the queried state's epoch, falling back to the genesis
// configuration for an epoch this mock has no override for.
func (m *MockApplication) Configuration(state types.HashValue) (*types.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configurations[m.epochOf[state]]; ok {
		return cfg, nil
	}
	return m.cfg, nil
}

// LastCommittedState implements Application.
func (m *MockApplication) LastCommittedState() types.HashValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastComitted
}
