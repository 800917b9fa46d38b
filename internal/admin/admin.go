// Package admin exposes a small operator-only HTTP surface over a running
// node's consensus and mempool state. Not for public/validator traffic.
package admin

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-chain/core/internal/mempool"
	"github.com/vantage-chain/core/internal/node"
)

// Server provides admin/debug endpoints. These are intended for operators,
// not exposed publicly.
type Server struct {
	httpServer *http.Server
	node       *node.Node
	mempool    *mempool.Mempool
	logger     *zap.Logger
	lis        net.Listener
}

// NewServer creates an admin debug server.
func NewServer(
	addr string,
	n *node.Node,
	mp *mempool.Mempool,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		node:    n,
		mempool: mp,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/consensus", s.handleConsensusState)
	mux.HandleFunc("/admin/mempool", s.handleMempoolStatus)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return s
}

// Start begins serving admin endpoints.
func (s *Server) Start(ctx context.Context) error {
	var err error
	s.lis, err = net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("admin: listen on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("admin server starting", zap.String("addr", s.lis.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(s.lis); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the admin server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Name returns the service name.
func (s *Server) Name() string {
	return "admin"
}

func (s *Server) handleConsensusState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := map[string]any{
		"available": s.node != nil,
	}

	if s.node != nil {
		self := s.node.Self()
		store := s.node.CurrentRecordStore()
		result["author"] = hex.EncodeToString(self[:])
		result["epoch"] = uint64(store.EpochID())
		result["current_round"] = uint64(store.CurrentRound())
		result["highest_qc_round"] = uint64(store.HighestQCRound())
		result["highest_tc_round"] = uint64(store.HighestTCRound())
		result["highest_committed_round"] = uint64(store.HighestCommittedRound())
	}

	writeJSON(w, result)
}

func (s *Server) handleMempoolStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := map[string]any{
		"available": s.mempool != nil,
	}

	if s.mempool != nil {
		result["size"] = s.mempool.Size()
	}

	writeJSON(w, result)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
