package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vantage-chain/core/internal/admin"
	"github.com/vantage-chain/core/internal/app"
	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
	"github.com/vantage-chain/core/internal/mempool"
	"github.com/vantage-chain/core/internal/node"
	"github.com/vantage-chain/core/internal/p2p"
	"github.com/vantage-chain/core/internal/storage"
	"github.com/vantage-chain/core/internal/telemetry"
	"github.com/vantage-chain/core/internal/types"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the consensus node",
		RunE:  runStart,
	}

	cmd.Flags().String("home", defaultHome(), "node home directory")
	cmd.Flags().String("config", "", "path to config file (default: <home>/config.toml)")
	cmd.Flags().String("genesis", "", "path to genesis file (default: <home>/genesis.json)")
	cmd.Flags().String("log-level", "development", "log level: development or production")

	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	homeDir, _ := cmd.Flags().GetString("home")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger, err := telemetry.NewLogger(logLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = filepath.Join(homeDir, "config.toml")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !filepath.IsAbs(cfg.Storage.DBPath) {
		cfg.Storage.DBPath = filepath.Join(homeDir, cfg.Storage.DBPath)
	}
	if !filepath.IsAbs(cfg.Execution.WASMPath) {
		cfg.Execution.WASMPath = filepath.Join(homeDir, cfg.Execution.WASMPath)
	}

	privKey, pubKey, err := readNodeKey(filepath.Join(homeDir, "node_key.json"))
	if err != nil {
		return fmt.Errorf("load node key: %w", err)
	}

	genesisPath, _ := cmd.Flags().GetString("genesis")
	if genesisPath == "" {
		genesisPath = filepath.Join(homeDir, "genesis.json")
	}
	genesis, err := config.LoadGenesis(genesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	configuration, err := genesis.ToConfiguration()
	if err != nil {
		return fmt.Errorf("build configuration from genesis: %w", err)
	}
	genesisState, err := genesis.AppStateRootHash()
	if err != nil {
		return fmt.Errorf("parse genesis app state root: %w", err)
	}

	pubKeys := make(map[types.Author]crypto.PublicKey, len(configuration.Peers))
	for _, peer := range configuration.Peers {
		pk := make(crypto.PublicKey, 32)
		copy(pk, peer.PublicKey[:])
		pubKeys[peer.Author] = pk
	}
	cap := crypto.NewEd25519Capability(privKey, pubKeys)

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	if persisted, ok, err := store.ReadValue(storage.AppStateKey); err == nil && ok {
		if h, err := types.HashFromBytes(persisted); err == nil {
			genesisState = h
		}
	}

	mp := mempool.NewMempool(cfg.Mempool, logger)
	appl, err := app.NewWASMApplication(cfg.Execution, mp, store, configuration, genesisState, logger)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer appl.Close()

	n, err := node.New(cfg, cap, appl, store, logger)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host, err := p2p.NewHost(ctx, p2p.HostConfig{
		PrivateKey:    []byte(privKey),
		ListenAddr:    cfg.P2P.ListenAddr,
		MaxPeers:      cfg.P2P.MaxPeers,
		Seeds:         cfg.P2P.Seeds,
		EnableScoring: cfg.P2P.PeerScoring,
		Logger:        logger,
		Metrics:       p2p.NopMetrics(),
	})
	if err != nil {
		return fmt.Errorf("create p2p host: %w", err)
	}
	transport := p2p.NewP2PTransport(host, n, logger)
	n.AddService(hostService{host})
	n.AddService(transportService{transport})

	n.AddService(admin.NewServer(cfg.Admin.HTTPAddr, n, mp, logger))

	if cfg.Telemetry.Enabled {
		metrics := telemetry.NewMetrics("vantage")
		n.AddService(metricsService{telemetry.NewMetricsServer(cfg.Telemetry.Addr, metrics, logger)})
	}

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	fmt.Println("Node started. Press Ctrl+C to stop.")

	<-ctx.Done()
	fmt.Println("\nShutdown signal received...")

	return n.Stop()
}

// hostService adapts p2p.Host to node.Service.
type hostService struct{ h *p2p.Host }

func (s hostService) Start(ctx context.Context) error { return s.h.Start(ctx) }
func (s hostService) Stop() error                      { return s.h.Stop() }
func (s hostService) Name() string                     { return "p2p-host" }

// transportService adapts p2p.P2PTransport to node.Service.
type transportService struct{ t *p2p.P2PTransport }

func (s transportService) Start(ctx context.Context) error { return s.t.Start(ctx) }
func (s transportService) Stop() error                      { s.t.Stop(); return nil }
func (s transportService) Name() string                     { return "p2p-transport" }

// metricsService adapts telemetry.MetricsServer (a blocking Start) to
// node.Service by running it in its own goroutine.
type metricsService struct{ ms *telemetry.MetricsServer }

func (s metricsService) Start(ctx context.Context) error {
	go func() {
		_ = s.ms.Start()
	}()
	return nil
}
func (s metricsService) Stop() error { return s.ms.Stop() }
func (s metricsService) Name() string { return "metrics" }

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return config.LoadFile(path)
}

// nodeKeyFile is the JSON structure node keys are persisted under.
type nodeKeyFile struct {
	PrivateKey []byte `json:"private_key"`
	PublicKey  []byte `json:"public_key"`
}

func readNodeKey(path string) (crypto.PrivateKey, crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read node key: %w", err)
	}

	var kf nodeKeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, nil, fmt.Errorf("parse node key: %w", err)
	}

	return crypto.PrivateKey(kf.PrivateKey), crypto.PublicKey(kf.PublicKey), nil
}
