package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goran-ethernal/chaindexor/examples/erc20"
	"github.com/goran-ethernal/chaindexor/internal/config"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/pkg/chaindexor"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║              chaindexor v%s              ║
║   Multi-chain EVM event indexing core      ║
╚═══════════════════════════════════════════╝
`
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "chaindexor",
	Short:   "chaindexor - multi-chain EVM event indexing core",
	Long:    `chaindexor ingests EVM logs across chains, detects and backtracks reorgs, and projects handler-owned state with at-least-once pure-handler semantics.`,
	Version: version,
	RunE:    runIndexer,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Truncate ingested state and rerun configured reset queries",
	RunE:  runReset,
}

var resetSideEffectsCmd = &cobra.Command{
	Use:   "reset-side-effects",
	Short: "Nullify every chain's side-effect cursor so side-effect handlers refire",
	RunE:  runResetSideEffects,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(resetSideEffectsCmd)
}

// buildIndexer loads configuration and wires an Indexer with the
// compiled-in example contracts. A real deployment would replace this
// static contract list with its own chaindexor.Contract values.
func buildIndexer() (*chaindexor.Indexer, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	// No tokens are seeded out of the box; real deployments supply their
	// own addresses here or through a richer configuration format.
	contracts := []chaindexor.Contract{
		erc20.Contract("erc20", nil),
	}

	return chaindexor.Setup(chaindexor.Config{
		Core:      *cfg,
		Contracts: contracts,
		Logger:    log,
	})
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	ix, err := buildIndexer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down gracefully...")
		cancel()
	}()

	if err := ix.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("chaindexor stopped with error: %w", err)
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ix, err := buildIndexer()
	if err != nil {
		return err
	}
	return ix.Reset(context.Background())
}

func runResetSideEffects(cmd *cobra.Command, args []string) error {
	ix, err := buildIndexer()
	if err != nil {
		return err
	}
	return ix.ResetIncludingSideEffects(context.Background())
}
