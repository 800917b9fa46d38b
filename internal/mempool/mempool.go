// Package mempool buffers commands a replica has received from clients
// until its Record Store is ready to propose one (spec ยง6 "fetch() ->
// Option<Command>").
//
// Grounded on the teacher's internal/mempool.Mempool: kept a
// mutex-guarded hash-indexed pool and the EvictionCache dedup
// ring, adapted from a fee/nonce-ordered transaction pool to a plain
// FIFO command queue, since spec ยง3's Command is an opaque, unordered
// application payload with no notion of sender, nonce, or fee (see
// DESIGN.md for the dropped fee-priority-queue and signed-tx validation
// code).
package mempool

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/types"
	"go.uber.org/zap"
)

// Command is a pending command awaiting proposal.
type Command struct {
	Hash    types.HashValue
	Data    []byte
	AddedAt time.Time
}

// Mempool holds commands not yet proposed, in FIFO order.
type Mempool struct {
	mu       sync.Mutex
	queue    *list.List
	byHash   map[types.HashValue]*list.Element
	cache    *EvictionCache
	cfg      config.MempoolConfig
	logger   *zap.Logger
}

// NewMempool creates an empty command pool.
func NewMempool(cfg config.MempoolConfig, logger *zap.Logger) *Mempool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mempool{
		queue:  list.New(),
		byHash: make(map[types.HashValue]*list.Element),
		cache:  NewEvictionCache(cfg.CacheSize),
		cfg:    cfg,
		logger: logger,
	}
}

// Add validates and enqueues a command. Returns the command hash on
// success.
func (m *Mempool) Add(data []byte) (types.HashValue, error) {
	if m.cfg.MaxTxBytes > 0 && len(data) > m.cfg.MaxTxBytes {
		return types.ZeroHash, errors.New("mempool: command exceeds max size")
	}
	hash := crypto.HashSHA256(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byHash[hash]; exists {
		return hash, errors.New("mempool: duplicate command")
	}
	if m.cache.Contains(hash) {
		return hash, errors.New("mempool: command recently processed")
	}
	if m.cfg.MaxSize > 0 && len(m.byHash) >= m.cfg.MaxSize {
		return types.ZeroHash, errors.New("mempool: full")
	}

	cmd := &Command{Hash: hash, Data: data, AddedAt: time.Now()}
	elem := m.queue.PushBack(cmd)
	m.byHash[hash] = elem

	m.logger.Debug("command added to mempool",
		zap.String("hash", hash.String()),
		zap.Int("pool_size", len(m.byHash)),
	)
	return hash, nil
}

// Next pops the oldest pending command, or ok=false if the pool is
// empty (spec ยง6 fetch()).
func (m *Mempool) Next() (data []byte, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	front := m.queue.Front()
	if front == nil {
		return nil, false
	}
	cmd := front.Value.(*Command)
	m.queue.Remove(front)
	delete(m.byHash, cmd.Hash)
	m.cache.Add(cmd.Hash)
	return cmd.Data, true
}

// Size returns the current number of pending commands.
func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// Flush discards every pending command.
func (m *Mempool) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = list.New()
	m.byHash = make(map[types.HashValue]*list.Element)
}

// Has reports whether a command hash is currently pending.
func (m *Mempool) Has(hash types.HashValue) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byHash[hash]
	return ok
}
