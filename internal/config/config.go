package config

import (
	"errors"
	"fmt"
	"time"
)

// Duration wraps time.Duration to support TOML string unmarshaling (e.g. "3s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the full node configuration.
type Config struct {
	Moniker string `toml:"moniker"`
	ChainID string `toml:"chain_id"`

	Pacemaker PacemakerConfig `toml:"pacemaker"`
	P2P       P2PConfig       `toml:"p2p"`
	Mempool   MempoolConfig   `toml:"mempool"`
	Storage   StorageConfig   `toml:"storage"`
	Admin     AdminConfig     `toml:"admin"`
	Execution ExecutionConfig `toml:"execution"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// PacemakerConfig holds the round-and-commit tuning constants spec ยง6
// names: target_commit_interval, delta, gamma, lambda, max_payload_size.
type PacemakerConfig struct {
	TargetCommitInterval Duration `toml:"target_commit_interval"`
	Delta                Duration `toml:"delta"`
	Gamma                float64  `toml:"gamma"`
	Lambda               float64  `toml:"lambda"`
	MaxPayloadSize       int      `toml:"max_payload_size"`
}

// P2PConfig holds peer-to-peer networking parameters.
type P2PConfig struct {
	ListenAddr  string   `toml:"listen_addr"`
	Seeds       []string `toml:"seeds"`
	MaxPeers    int      `toml:"max_peers"`
	PeerScoring bool     `toml:"peer_scoring"`
}

// MempoolConfig holds mempool parameters.
type MempoolConfig struct {
	MaxSize    int `toml:"max_size"`
	MaxTxBytes int `toml:"max_tx_bytes"`
	CacheSize  int `toml:"cache_size"`
}

// StorageConfig holds storage parameters.
type StorageConfig struct {
	DBPath  string `toml:"db_path"`
	Backend string `toml:"backend"`
}

// AdminConfig holds the operator-only HTTP debug server's parameters.
type AdminConfig struct {
	HTTPAddr string `toml:"http_addr"`
}

// ExecutionConfig holds execution engine parameters.
type ExecutionConfig struct {
	WASMPath    string `toml:"wasm_path"`
	GasLimit    uint64 `toml:"gas_limit"`
	FuelLimit   uint64 `toml:"fuel_limit"`
	MaxMemoryMB int    `toml:"max_memory_mb"`
}

// TelemetryConfig holds observability parameters.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Moniker: "vantage-node",
		ChainID: "vantage-devnet",
		Pacemaker: PacemakerConfig{
			TargetCommitInterval: Duration{500 * time.Millisecond},
			Delta:                Duration{5000 * time.Millisecond},
			Gamma:                2.0,
			Lambda:               0.5,
			MaxPayloadSize:       2 * 1024 * 1024, // 2 MB
		},
		P2P: P2PConfig{
			ListenAddr:  "/ip4/0.0.0.0/udp/26656/quic-v1",
			Seeds:       nil,
			MaxPeers:    50,
			PeerScoring: true,
		},
		Mempool: MempoolConfig{
			MaxSize:    10000,
			MaxTxBytes: 1024 * 1024, // 1 MB
			CacheSize:  10000,
		},
		Storage: StorageConfig{
			DBPath:  "data/blockstore",
			Backend: "pebble",
		},
		Admin: AdminConfig{
			HTTPAddr: "0.0.0.0:26658",
		},
		Execution: ExecutionConfig{
			WASMPath:    "vantage-execution.wasm",
			GasLimit:    100_000_000,
			FuelLimit:   100_000_000,
			MaxMemoryMB: 256,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Addr:    "0.0.0.0:26660",
		},
	}
}

// Validate checks config for invalid values.
func (c *Config) Validate() error {
	if c.Moniker == "" {
		return errors.New("config: moniker must not be empty")
	}
	if c.ChainID == "" {
		return errors.New("config: chain_id must not be empty")
	}

	// Pacemaker.
	if c.Pacemaker.TargetCommitInterval.Duration <= 0 {
		return errors.New("config: pacemaker.target_commit_interval must be > 0")
	}
	if c.Pacemaker.Delta.Duration <= 0 {
		return errors.New("config: pacemaker.delta must be > 0")
	}
	if c.Pacemaker.Gamma <= 0 {
		return errors.New("config: pacemaker.gamma must be > 0")
	}
	if c.Pacemaker.MaxPayloadSize <= 0 {
		return errors.New("config: pacemaker.max_payload_size must be > 0")
	}

	// P2P.
	if c.P2P.ListenAddr == "" {
		return errors.New("config: p2p.listen_addr must not be empty")
	}
	if c.P2P.MaxPeers <= 0 {
		return errors.New("config: p2p.max_peers must be > 0")
	}

	// Storage.
	if c.Storage.DBPath == "" {
		return errors.New("config: storage.db_path must not be empty")
	}
	validBackends := map[string]bool{"pebble": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("config: storage.backend must be 'pebble' or 'memory', got %q", c.Storage.Backend)
	}

	// Admin.
	if c.Admin.HTTPAddr == "" {
		return errors.New("config: admin.http_addr must not be empty")
	}

	// Execution.
	if c.Execution.WASMPath == "" {
		return errors.New("config: execution.wasm_path must not be empty")
	}
	if c.Execution.MaxMemoryMB <= 0 {
		return errors.New("config: execution.max_memory_mb must be > 0")
	}

	return nil
}
