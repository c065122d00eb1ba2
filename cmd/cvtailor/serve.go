package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Multitrix/cv-to-job-description/internal/config"
	"github.com/Multitrix/cv-to-job-description/internal/db"
	"github.com/Multitrix/cv-to-job-description/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  "Start an HTTP server that exposes profile storage and tailoring endpoints.",
	RunE:  runServe,
}

var (
	serveAddr    string
	serveConfig  string
	serveVerbose bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to JSON config file")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveConfig)
	if err != nil {
		return err
	}
	mergeServeFlags(cfg)

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	var repo server.Repository
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		repo = database
	} else {
		log.Warn("no DATABASE_URL configured, profile persistence disabled")
	}

	srv := server.New(server.Config{Addr: cfg.ListenAddr}, b.pipeline, repo, log)
	return srv.Start()
}

// mergeServeFlags applies explicitly set flags on top of the config file
func mergeServeFlags(cfg *config.Config) {
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}
	if serveVerbose {
		cfg.Verbose = true
	}
}
