package app

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/bytecodealliance/wasmtime-go/v29"
	"go.uber.org/zap"

	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/mempool"
	"github.com/vantage-chain/core/internal/storage"
	"github.com/vantage-chain/core/internal/types"
)

// WASMApplication is the production Application: commands are drawn from
// a Mempool, and compute() runs through a wasmtime-go sandbox when a
// compiled module is configured, falling back to a deterministic native
// computation otherwise (spec ยง6, spec ยง7 "Application computation
// failure" as a silent rejection).
//
// Grounded on the teacher's execution.Sandbox: the wasmCode-load-then-
// fallback shape is kept verbatim; the WASM call path is reworked from
// block/transaction execution to the single (base_state, command) call
// signature this domain needs, but remains unimplemented against a real
// guest ABI for the same reason the teacher's executeWASM is a stub — no
// compiled guest module ships with this retrieval pack (see DESIGN.md).
type WASMApplication struct {
	cfg      config.ExecutionConfig
	wasmCode []byte
	engine   *wasmtime.Engine

	mempool *mempool.Mempool
	store   storage.Store

	// genesisConfiguration is the validator set in force at epoch 0, used
	// as the fallback for any epoch this replica has no recorded
	// configuration for.
	genesisConfiguration *types.Configuration
	// configurations maps each epoch this replica has observed a commit
	// into to the configuration that was in force for it, so Configuration
	// reflects the epoch the queried state actually belongs to rather
	// than always the epoch-0 validator set.
	configurations map[types.EpochId]*types.Configuration
	epochOf        map[types.HashValue]types.EpochId
	lastCommitted  types.HashValue

	logger *zap.Logger
}

// NewWASMApplication loads a compiled module from cfg.WASMPath if
// present, and wires the given mempool and configuration for Fetch and
// the epoch oracle. If store already holds app metadata persisted by a
// prior Commit (spec §4.4.2, surviving a restart), the epoch and
// configuration recorded for genesisState are restored from it instead of
// defaulting to epoch 0 and the caller-supplied genesis configuration —
// otherwise a restart after an epoch change would resume voting under a
// stale epoch/validator set that the rest of the network has already
// moved past.
func NewWASMApplication(cfg config.ExecutionConfig, mp *mempool.Mempool, store storage.Store, configuration *types.Configuration, genesisState types.HashValue, logger *zap.Logger) (*WASMApplication, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &WASMApplication{
		cfg:                  cfg,
		engine:               wasmtime.NewEngine(),
		mempool:              mp,
		store:                store,
		genesisConfiguration: configuration,
		configurations:       map[types.EpochId]*types.Configuration{0: configuration},
		epochOf:              map[types.HashValue]types.EpochId{genesisState: 0},
		lastCommitted:        genesisState,
		logger:               logger,
	}

	if meta, ok, err := store.ReadValue(storage.AppMetaKey); err != nil {
		return nil, fmt.Errorf("app: read app metadata: %w", err)
	} else if ok {
		epoch, restoredConfig, err := decodeAppMeta(meta)
		if err != nil {
			return nil, fmt.Errorf("app: decode app metadata: %w", err)
		}
		a.epochOf[genesisState] = epoch
		a.configurations[epoch] = restoredConfig
	}

	if cfg.WASMPath != "" {
		data, err := os.ReadFile(cfg.WASMPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("app: read wasm module: %w", err)
			}
		} else {
			a.wasmCode = data
		}
	}
	return a, nil
}

// encodeAppMeta serializes (epoch, configuration) for persistence
// alongside storage.AppStateKey.
func encodeAppMeta(epoch types.EpochId, cfg *types.Configuration) ([]byte, error) {
	cfgBytes, err := cfg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8, 8+len(cfgBytes))
	binary.BigEndian.PutUint64(buf, uint64(epoch))
	return append(buf, cfgBytes...), nil
}

// decodeAppMeta is the inverse of encodeAppMeta.
func decodeAppMeta(data []byte) (types.EpochId, *types.Configuration, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("app: app metadata truncated")
	}
	epoch := types.EpochId(binary.BigEndian.Uint64(data[:8]))
	cfg, err := types.UnmarshalConfiguration(data[8:])
	if err != nil {
		return 0, nil, err
	}
	return epoch, cfg, nil
}

// Fetch implements Application.
func (a *WASMApplication) Fetch(_ context.Context) ([]byte, bool, error) {
	cmd, ok := a.mempool.Next()
	return cmd, ok, nil
}

// Compute implements Application.
func (a *WASMApplication) Compute(ctx context.Context, baseState types.HashValue, command []byte, now types.NodeTime, previousAuthor *types.Author, previousVoters []types.Author) (types.HashValue, error) {
	if a.wasmCode != nil {
		return a.computeWASM(baseState, command)
	}
	return a.computeNative(baseState, command, now, previousAuthor, previousVoters)
}

// computeWASM would instantiate the configured module and call its
// compute export, wiring the fuel limit from cfg.FuelLimit. Pending a
// compiled guest module to validate the ABI against, it reports
// rejection rather than fabricating a result.
func (a *WASMApplication) computeWASM(types.HashValue, []byte) (types.HashValue, error) {
	_ = a.engine
	return types.HashValue{}, fmt.Errorf("app: wasm execution not available: %w", ErrRejected)
}

// computeNative deterministically derives the next state as the SHA-256
// hash of base_state || command || time (8 bytes, little-endian) ||
// author || voters, with no domain prefix, so the same inputs always
// produce the same output across replicas.
func (a *WASMApplication) computeNative(baseState types.HashValue, command []byte, now types.NodeTime, previousAuthor *types.Author, previousVoters []types.Author) (types.HashValue, error) {
	if a.cfg.GasLimit > 0 && uint64(len(command)) > a.cfg.GasLimit {
		return types.HashValue{}, fmt.Errorf("app: command exceeds gas limit: %w", ErrRejected)
	}

	buf := make([]byte, 0, 32+len(command)+8+32*(1+len(previousVoters)))
	buf = append(buf, baseState[:]...)
	buf = append(buf, command...)
	var timeBytes [8]byte
	for i := range timeBytes {
		timeBytes[i] = byte(now >> (8 * i))
	}
	buf = append(buf, timeBytes[:]...)
	if previousAuthor != nil {
		buf = append(buf, previousAuthor[:]...)
	}
	for _, voter := range previousVoters {
		buf = append(buf, voter[:]...)
	}

	next := crypto.HashSHA256(buf)
	a.epochOf[next] = a.epochOf[baseState]
	return next, nil
}

// Commit implements Application. Alongside the committed state itself, it
// persists that state's epoch and configuration under storage.AppMetaKey
// so a restart resumes under the correct epoch and validator set rather
// than falling back to genesis (spec §4.4.2).
func (a *WASMApplication) Commit(state types.HashValue, _ *types.QuorumCertificate) error {
	a.lastCommitted = state
	if err := a.store.StoreValue(storage.AppStateKey, state[:]); err != nil {
		return err
	}

	epoch := a.epochOf[state]
	cfg, ok := a.configurations[epoch]
	if !ok {
		cfg = a.genesisConfiguration
	}
	meta, err := encodeAppMeta(epoch, cfg)
	if err != nil {
		return fmt.Errorf("app: encode app metadata: %w", err)
	}
	return a.store.StoreValue(storage.AppMetaKey, meta)
}

// Discard implements Application.
func (a *WASMApplication) Discard(types.HashValue) error {
	return nil
}

// ReadEpochID implements Application.
func (a *WASMApplication) ReadEpochID(state types.HashValue) (types.EpochId, error) {
	return a.epochOf[state], nil
}

// Configuration implements Application. It returns the configuration in
// force for the epoch the queried state actually belongs to, falling back
// to the genesis configuration for an epoch this replica has not recorded
// a configuration for.
func (a *WASMApplication) Configuration(state types.HashValue) (*types.Configuration, error) {
	if cfg, ok := a.configurations[a.epochOf[state]]; ok {
		return cfg, nil
	}
	return a.genesisConfiguration, nil
}

// LastCommittedState implements Application.
func (a *WASMApplication) LastCommittedState() types.HashValue {
	return a.lastCommitted
}

// Close releases sandbox resources.
func (a *WASMApplication) Close() error {
	a.wasmCode = nil
	return nil
}
