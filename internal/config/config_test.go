package config_test

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should be valid: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.Moniker != "vantage-node" {
		t.Errorf("expected moniker 'vantage-node', got %q", cfg.Moniker)
	}
	if cfg.Pacemaker.Delta.Duration.String() != "5s" {
		t.Errorf("expected delta 5s, got %v", cfg.Pacemaker.Delta)
	}
	if cfg.P2P.MaxPeers != 50 {
		t.Errorf("expected max_peers 50, got %d", cfg.P2P.MaxPeers)
	}
	if cfg.Storage.Backend != "pebble" {
		t.Errorf("expected backend 'pebble', got %q", cfg.Storage.Backend)
	}
	if cfg.Admin.HTTPAddr != "0.0.0.0:26658" {
		t.Errorf("expected http_addr '0.0.0.0:26658', got %q", cfg.Admin.HTTPAddr)
	}
}

func TestValidateRejectsEmptyMoniker(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Moniker = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("should reject empty moniker")
	}
}

func TestValidateRejectsInvalidBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Fatal("should reject invalid storage backend")
	}
}

func TestValidateRejectsZeroDelta(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pacemaker.Delta = config.Duration{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("should reject zero delta")
	}
}

func TestLoadFileFromTOML(t *testing.T) {
	tomlContent := `
moniker = "my-peer"
chain_id = "vantage-main"

[pacemaker]
target_commit_interval = "500ms"
delta = "5s"
gamma = 2.0
lambda = 0.5
max_payload_size = 4194304

[p2p]
listen_addr = "/ip4/0.0.0.0/tcp/26656"
max_peers = 100
peer_scoring = true

[mempool]
max_size = 5000
max_tx_bytes = 524288
cache_size = 5000

[storage]
db_path = "data/mystore"
backend = "pebble"

[admin]
http_addr = "0.0.0.0:8080"

[execution]
wasm_path = "/opt/vantage/execution.wasm"
gas_limit = 200000000
fuel_limit = 200000000
max_memory_mb = 512

[telemetry]
enabled = true
addr = "0.0.0.0:9100"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(tomlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Moniker != "my-peer" {
		t.Errorf("expected moniker 'my-peer', got %q", cfg.Moniker)
	}
	if cfg.ChainID != "vantage-main" {
		t.Errorf("expected chain_id 'vantage-main', got %q", cfg.ChainID)
	}
	if cfg.Pacemaker.Delta.Duration.String() != "5s" {
		t.Errorf("expected delta 5s, got %v", cfg.Pacemaker.Delta)
	}
	if cfg.P2P.MaxPeers != 100 {
		t.Errorf("expected max_peers 100, got %d", cfg.P2P.MaxPeers)
	}
	if cfg.Storage.DBPath != "data/mystore" {
		t.Errorf("expected db_path 'data/mystore', got %q", cfg.Storage.DBPath)
	}
	if cfg.Admin.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("expected http_addr '0.0.0.0:8080', got %q", cfg.Admin.HTTPAddr)
	}
	if cfg.Execution.WASMPath != "/opt/vantage/execution.wasm" {
		t.Errorf("expected wasm_path, got %q", cfg.Execution.WASMPath)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("expected telemetry enabled")
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	tomlContent := `
moniker = "original"
chain_id = "test"

[pacemaker]
target_commit_interval = "500ms"
delta = "5s"
gamma = 2.0
lambda = 0.5
max_payload_size = 1048576

[p2p]
listen_addr = "/ip4/0.0.0.0/tcp/26656"
max_peers = 50
peer_scoring = true

[storage]
db_path = "data/blockstore"
backend = "pebble"

[admin]
http_addr = "0.0.0.0:26658"

[execution]
wasm_path = "test.wasm"
max_memory_mb = 256
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(tomlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VANTAGE_MONIKER", "env-override")
	t.Setenv("VANTAGE_P2P_MAX_PEERS", "200")
	t.Setenv("VANTAGE_TELEMETRY_ENABLED", "true")

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Moniker != "env-override" {
		t.Errorf("env override failed for moniker: got %q", cfg.Moniker)
	}
	if cfg.P2P.MaxPeers != 200 {
		t.Errorf("env override failed for max_peers: got %d", cfg.P2P.MaxPeers)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("env override failed for telemetry.enabled")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	_, err := config.LoadFile("/nonexistent/config.toml")
	if err == nil {
		t.Fatal("should reject missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("{{invalid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = config.LoadFile(path)
	if err == nil {
		t.Fatal("should reject invalid TOML")
	}
}

// --- Genesis ---

func TestLoadGenesis(t *testing.T) {
	pub1, _, _ := crypto.GenerateKeypair()
	pub2, _, _ := crypto.GenerateKeypair()
	author1 := crypto.AuthorFromPubKey(pub1)
	author2 := crypto.AuthorFromPubKey(pub2)

	genesisJSON := `{
  "chain_id": "vantage-test",
  "genesis_time": "2024-01-01T00:00:00Z",
  "peers": [
    {
      "author": "` + hex.EncodeToString(author1[:]) + `",
      "pub_key": "` + hex.EncodeToString(pub1) + `",
      "weight": 100,
      "name": "peer-1"
    },
    {
      "author": "` + hex.EncodeToString(author2[:]) + `",
      "pub_key": "` + hex.EncodeToString(pub2) + `",
      "weight": 200,
      "name": "peer-2"
    }
  ],
  "app_state_root": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
  "consensus_params": {
    "max_payload_size": 2097152,
    "max_peers": 100
  }
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(genesisJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	gen, err := config.LoadGenesis(path)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}

	if gen.ChainID != "vantage-test" {
		t.Errorf("expected chain_id 'vantage-test', got %q", gen.ChainID)
	}
	if len(gen.Peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(gen.Peers))
	}
	if gen.Peers[0].Weight != 100 {
		t.Errorf("expected weight 100, got %d", gen.Peers[0].Weight)
	}
}

func TestGenesisToConfiguration(t *testing.T) {
	pub1, _, _ := crypto.GenerateKeypair()
	pub2, _, _ := crypto.GenerateKeypair()
	author1 := crypto.AuthorFromPubKey(pub1)
	author2 := crypto.AuthorFromPubKey(pub2)

	genesisJSON := `{
  "chain_id": "test",
  "genesis_time": "2024-01-01T00:00:00Z",
  "peers": [
    {
      "author": "` + hex.EncodeToString(author1[:]) + `",
      "pub_key": "` + hex.EncodeToString(pub1) + `",
      "weight": 100,
      "name": "p1"
    },
    {
      "author": "` + hex.EncodeToString(author2[:]) + `",
      "pub_key": "` + hex.EncodeToString(pub2) + `",
      "weight": 200,
      "name": "p2"
    }
  ],
  "consensus_params": {
    "max_payload_size": 1048576,
    "max_peers": 10
  }
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(genesisJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	gen, err := config.LoadGenesis(path)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}

	cfg, err := gen.ToConfiguration()
	if err != nil {
		t.Fatalf("ToConfiguration: %v", err)
	}

	if cfg.Size() != 2 {
		t.Fatalf("expected 2 peers, got %d", cfg.Size())
	}
	if cfg.TotalWeight != 300 {
		t.Fatalf("expected total weight 300, got %d", cfg.TotalWeight)
	}
}

func TestGenesisAppStateRootHash(t *testing.T) {
	pub, _, _ := crypto.GenerateKeypair()
	author := crypto.AuthorFromPubKey(pub)

	genesisJSON := `{
  "chain_id": "test",
  "genesis_time": "2024-01-01T00:00:00Z",
  "peers": [{"author": "` + hex.EncodeToString(author[:]) + `", "pub_key": "` + hex.EncodeToString(pub) + `", "weight": 100, "name": "p"}],
  "app_state_root": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
  "consensus_params": {"max_payload_size": 1048576, "max_peers": 10}
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(genesisJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	gen, err := config.LoadGenesis(path)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}

	root, err := gen.AppStateRootHash()
	if err != nil {
		t.Fatalf("AppStateRootHash: %v", err)
	}
	if root.IsZero() {
		t.Fatal("app state root should not be zero")
	}
	if root.String() != "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" {
		t.Fatalf("unexpected app state root: %s", root.String())
	}
}

func TestGenesisValidateRejectsMissingFile(t *testing.T) {
	_, err := config.LoadGenesis("/nonexistent/genesis.json")
	if err == nil {
		t.Fatal("should reject missing file")
	}
}

func TestGenesisValidateRejectsNoPeers(t *testing.T) {
	genesisJSON := `{
  "chain_id": "test",
  "genesis_time": "2024-01-01T00:00:00Z",
  "peers": [],
  "consensus_params": {"max_payload_size": 1048576, "max_peers": 10}
}`
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(genesisJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := config.LoadGenesis(path)
	if err == nil {
		t.Fatal("should reject empty peer set")
	}
}
