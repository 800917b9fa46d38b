package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vantage-chain/core/internal/types"
)

// GenesisDoc defines the initial state of the chain.
type GenesisDoc struct {
	ChainID         string          `json:"chain_id"`
	GenesisTime     time.Time       `json:"genesis_time"`
	Peers           []GenesisPeer   `json:"peers"`
	AppStateRoot    string          `json:"app_state_root"`
	ConsensusParams ConsensusParams `json:"consensus_params"`
}

// GenesisPeer describes one committee member in the genesis state (spec
// ยง6 committee: an authority list with weights and network addresses).
type GenesisPeer struct {
	Author  string `json:"author"`
	PubKey  string `json:"pub_key"`
	Weight  uint64 `json:"weight"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ConsensusParams holds genesis-level protocol parameters.
type ConsensusParams struct {
	MaxPayloadSize int `json:"max_payload_size"`
	MaxPeers       int `json:"max_peers"`
}

// LoadGenesis reads and validates a genesis file from the given path.
func LoadGenesis(path string) (*GenesisDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read file: %w", err)
	}

	var gen GenesisDoc
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("genesis: parse JSON: %w", err)
	}

	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	return &gen, nil
}

// Validate checks the genesis document for structural validity.
func (g *GenesisDoc) Validate() error {
	if g.ChainID == "" {
		return errors.New("chain_id must not be empty")
	}
	if g.GenesisTime.IsZero() {
		return errors.New("genesis_time must not be zero")
	}
	if len(g.Peers) == 0 {
		return errors.New("must have at least one peer")
	}

	for i, p := range g.Peers {
		if p.Author == "" {
			return fmt.Errorf("peer %d: author must not be empty", i)
		}
		if p.PubKey == "" {
			return fmt.Errorf("peer %d: pub_key must not be empty", i)
		}
		if p.Weight == 0 {
			return fmt.Errorf("peer %d: weight must be > 0", i)
		}

		if _, err := hex.DecodeString(p.Author); err != nil {
			return fmt.Errorf("peer %d: invalid author hex: %w", i, err)
		}
		if _, err := hex.DecodeString(p.PubKey); err != nil {
			return fmt.Errorf("peer %d: invalid pub_key hex: %w", i, err)
		}
	}

	if g.ConsensusParams.MaxPeers <= 0 {
		return errors.New("consensus_params.max_peers must be > 0")
	}
	if len(g.Peers) > g.ConsensusParams.MaxPeers {
		return fmt.Errorf("too many peers: got %d, max %d",
			len(g.Peers), g.ConsensusParams.MaxPeers)
	}

	return nil
}

// ToConfiguration converts the genesis peers to a runtime Configuration.
func (g *GenesisDoc) ToConfiguration() (*types.Configuration, error) {
	peers := make([]types.Peer, len(g.Peers))
	for i, gp := range g.Peers {
		author, err := types.AuthorFromHex(gp.Author)
		if err != nil {
			return nil, fmt.Errorf("peer %d: invalid author hex: %w", i, err)
		}

		pubKeyBytes, err := hex.DecodeString(gp.PubKey)
		if err != nil {
			return nil, fmt.Errorf("peer %d: invalid pub_key hex: %w", i, err)
		}
		if len(pubKeyBytes) != 32 {
			return nil, fmt.Errorf("peer %d: pub_key must be 32 bytes, got %d", i, len(pubKeyBytes))
		}

		var pubKey [32]byte
		copy(pubKey[:], pubKeyBytes)

		peers[i] = types.Peer{
			Author:    author,
			PublicKey: pubKey,
			Weight:    gp.Weight,
		}
	}

	return types.NewConfiguration(peers)
}

// AppStateRootHash parses the hex-encoded app state root into a HashValue.
func (g *GenesisDoc) AppStateRootHash() (types.HashValue, error) {
	if g.AppStateRoot == "" {
		return types.ZeroHash, nil
	}
	return types.HashFromHex(g.AppStateRoot)
}
