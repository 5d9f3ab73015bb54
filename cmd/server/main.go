package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/taskforge/internal/api"
	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/storage"
	"github.com/good-yellow-bee/taskforge/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "taskforge-server",
	Short: "TaskForge Server - Task and project management API",
	Long: `TaskForge Server provides a REST API for managing projects,
tasks, comments and notifications across teams.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskforge-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	// Get JWT signing secret from environment
	jwtSecret := os.Getenv("TASKFORGE_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("TASKFORGE_JWT_SECRET environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create default admin user on first run
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Optional ClickHouse activity archive
	var archiveBuf *storage.ArchiveBuffer
	if cfg.Archive.Enabled {
		archive := storage.NewClickHouseArchive(&storage.ClickHouseConfig{
			Addresses:     cfg.Archive.Addresses,
			Database:      cfg.Archive.Database,
			Username:      cfg.Archive.Username,
			Password:      cfg.Archive.Password,
			RetentionDays: cfg.Archive.RetentionDays,
		})
		if err := archive.Open(); err != nil {
			return fmt.Errorf("open activity archive: %w", err)
		}
		defer archive.Close()

		if err := archive.Migrate(); err != nil {
			return fmt.Errorf("migrate activity archive: %w", err)
		}

		archiveBuf = storage.NewArchiveBuffer(archive, &storage.ArchiveBufferConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: duration(cfg.Archive.FlushInterval),
		})
		defer archiveBuf.Stop()

		log.Printf("activity archive enabled (%d node(s))", len(cfg.Archive.Addresses))
	}

	// Build API server config
	apiCfg := &api.Config{
		Address:          cfg.Server.Address,
		JWTSecret:        []byte(jwtSecret),
		AccessTokenTTL:   duration(cfg.API.AccessTokenTTL),
		RefreshTokenTTL:  duration(cfg.API.RefreshTokenTTL),
		RateLimitPerIP:   cfg.API.RateLimitPerIP,
		RateLimitPerUser: cfg.API.RateLimitPerUser,
		LockoutThreshold: cfg.API.LockoutThreshold,
		LockoutDuration:  duration(cfg.API.LockoutDuration),
		Verbose:          cfg.Verbose,
	}
	if cfg.Server.TLS.Enabled {
		apiCfg.HTTPTLSEnabled = true
		apiCfg.HTTPTLSCertFile = cfg.Server.TLS.CertFile
		apiCfg.HTTPTLSKeyFile = cfg.Server.TLS.KeyFile
	}

	srv, err := api.New(apiCfg, store, archiveBuf)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting taskforge-server %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)

		g.Go(func() error {
			return metricsSrv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}
