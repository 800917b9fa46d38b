package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads and parses a TOML config file, applies environment variable
// overrides, and validates the result.
// Config precedence, highest first: Environment variables → File → Defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse TOML: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies VANTAGE_* environment variable overrides.
// Env var format: VANTAGE_<SECTION>_<FIELD> (e.g., VANTAGE_P2P_LISTEN_ADDR).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VANTAGE_MONIKER"); v != "" {
		cfg.Moniker = v
	}
	if v := os.Getenv("VANTAGE_CHAIN_ID"); v != "" {
		cfg.ChainID = v
	}

	// Pacemaker.
	if v := os.Getenv("VANTAGE_PACEMAKER_TARGET_COMMIT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pacemaker.TargetCommitInterval = Duration{d}
		}
	}
	if v := os.Getenv("VANTAGE_PACEMAKER_DELTA"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pacemaker.Delta = Duration{d}
		}
	}
	if v := os.Getenv("VANTAGE_PACEMAKER_GAMMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pacemaker.Gamma = f
		}
	}
	if v := os.Getenv("VANTAGE_PACEMAKER_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pacemaker.Lambda = f
		}
	}
	if v := os.Getenv("VANTAGE_PACEMAKER_MAX_PAYLOAD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pacemaker.MaxPayloadSize = n
		}
	}

	// P2P.
	if v := os.Getenv("VANTAGE_P2P_LISTEN_ADDR"); v != "" {
		cfg.P2P.ListenAddr = v
	}
	if v := os.Getenv("VANTAGE_P2P_SEEDS"); v != "" {
		cfg.P2P.Seeds = strings.Split(v, ",")
	}
	if v := os.Getenv("VANTAGE_P2P_MAX_PEERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.P2P.MaxPeers = n
		}
	}

	// Storage.
	if v := os.Getenv("VANTAGE_STORAGE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("VANTAGE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}

	// Admin.
	if v := os.Getenv("VANTAGE_ADMIN_HTTP_ADDR"); v != "" {
		cfg.Admin.HTTPAddr = v
	}

	// Execution.
	if v := os.Getenv("VANTAGE_EXECUTION_WASM_PATH"); v != "" {
		cfg.Execution.WASMPath = v
	}
	if v := os.Getenv("VANTAGE_EXECUTION_GAS_LIMIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Execution.GasLimit = n
		}
	}
	if v := os.Getenv("VANTAGE_EXECUTION_FUEL_LIMIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Execution.FuelLimit = n
		}
	}

	// Telemetry.
	if v := os.Getenv("VANTAGE_TELEMETRY_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("VANTAGE_TELEMETRY_ADDR"); v != "" {
		cfg.Telemetry.Addr = v
	}
}
