package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/config"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/events/logpub"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/httpapi"
	interfaces "github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/ledger"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/logging"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/metrics"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/registry"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/vault"
)

var rootCmd = &cobra.Command{
	Use:   "marketplace-ledger",
	Short: "Non-custodial NFT marketplace ledger",
	Long: `marketplace-ledger keeps the listings and seller proceeds of an NFT marketplace
and settles purchases against an asset registry and a value transfer mechanism.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the postgres schema",
	RunE:  runMigrate,
}

var (
	envFile    string
	listenAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", "", "dotenv file to load (default .env)")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "override HTTP_ADDR")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if listenAddr != "" {
		cfg.HTTPAddr = listenAddr
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("service", cfg.ServiceName))

	store, err := storage.Open(ctx, cfg, logging.Named(logger, "storage"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close store", zap.Error(err))
		}
	}()

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, logging.Named(logger, "kafka"))
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("close kafka publisher", zap.Error(err))
			}
		}()
		publisher = kp
		logger.Info("publishing notifications to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		publisher = logpub.NewPublisher(logging.Named(logger, "events"))
	}

	// The in-process registry and vault stand in for the chain-side
	// collaborators on development networks.
	assets := registry.New()
	wallets := vault.New()
	recorder := metrics.New()

	l := ledger.NewLedger(store, assets, wallets, models.Account(cfg.MarketplaceAccount),
		ledger.WithPublisher(publisher),
		ledger.WithMetrics(recorder),
		ledger.WithLogger(logging.Named(logger, "ledger")),
	)

	opts := []httpapi.Option{httpapi.WithMetricsHandler(recorder.Handler())}
	if cfg.EnableDevRoutes {
		logger.Warn("development routes enabled")
		opts = append(opts, httpapi.WithDevRoutes(assets, wallets))
	}
	srv := httpapi.New(l, wallets, logging.Named(logger, "http"), cfg.HTTPAddr, opts...)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("migrate needs STORE_DRIVER=%s, got %q", config.DriverPostgres, cfg.StoreDriver)
	}

	store, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
	return nil
}
