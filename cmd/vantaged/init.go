package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/vantage-chain/core/internal/config"
	"github.com/vantage-chain/core/internal/crypto"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [moniker]",
		Short: "Initialize a new node home directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}

	cmd.Flags().String("home", defaultHome(), "node home directory")
	cmd.Flags().String("chain-id", "vantage-devnet", "chain ID")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	moniker := args[0]
	homeDir, _ := cmd.Flags().GetString("home")
	chainID, _ := cmd.Flags().GetString("chain-id")

	dirs := []string{
		homeDir,
		filepath.Join(homeDir, "data"),
		filepath.Join(homeDir, "wasm"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	pubKey, privKey, err := crypto.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	author := crypto.AuthorFromPubKey(pubKey)

	keyPath := filepath.Join(homeDir, "node_key.json")
	if err := writeNodeKey(keyPath, privKey, pubKey); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Moniker = moniker
	cfg.ChainID = chainID
	configPath := filepath.Join(homeDir, "config.toml")
	if err := writeConfig(configPath, cfg); err != nil {
		return err
	}

	genesisPath := filepath.Join(homeDir, "genesis.json")
	if err := writeGenesis(genesisPath, chainID, pubKey); err != nil {
		return err
	}

	nodeID := hex.EncodeToString(author[:8])
	fmt.Printf("Initialized node\n")
	fmt.Printf("  Home:     %s\n", homeDir)
	fmt.Printf("  Node ID:  %s\n", nodeID)
	fmt.Printf("  Chain:    %s\n", chainID)
	fmt.Printf("  Moniker:  %s\n", moniker)
	fmt.Printf("\nStart with: vantaged start --home %s\n", homeDir)

	return nil
}

func writeNodeKey(path string, privKey crypto.PrivateKey, pubKey crypto.PublicKey) error {
	kf := nodeKeyFile{
		PrivateKey: []byte(privKey),
		PublicKey:  []byte(pubKey),
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal node key: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write node key: %w", err)
	}
	return nil
}

func writeConfig(path string, cfg *config.Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// writeGenesis writes a single-peer devnet genesis document (spec §6
// "committee: an authority list with weights and network addresses").
func writeGenesis(path, chainID string, pubKey crypto.PublicKey) error {
	authorHex := hex.EncodeToString(crypto.AuthorFromPubKey(pubKey).Bytes())
	gen := config.GenesisDoc{
		ChainID:     chainID,
		GenesisTime: time.Now().UTC(),
		Peers: []config.GenesisPeer{
			{
				Author:  authorHex,
				PubKey:  hex.EncodeToString(pubKey),
				Weight:  100,
				Address: "/ip4/127.0.0.1/udp/26656/quic-v1",
				Name:    "validator-0",
			},
		},
		ConsensusParams: config.ConsensusParams{
			MaxPayloadSize: 2 * 1024 * 1024,
			MaxPeers:       50,
		},
	}

	data, err := json.MarshalIndent(gen, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genesis: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}
	return nil
}
