package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cashops/internal/config"
	"cashops/internal/domain"
	"cashops/internal/mcpserver"
	"cashops/internal/metrics"
	"cashops/internal/rules"
	"cashops/internal/seed"
	"cashops/internal/store"
	"cashops/internal/tools"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// .env is optional; real environment always wins.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "cashops",
		Short: "Cash logistics tool server",
		Long:  "Cashops exposes a cash-logistics database and its analytic rules to MCP clients over stdio.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.cashops/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(findingsCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it is
// absent, and re-levels the process logger.
func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool set to an MCP client on stdio",
		Long: `Starts the stdio session: frames arrive on stdin, responses leave on
stdout, and all logging goes to stderr. The database must already exist;
run 'cashops seed' first for a demo dataset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			st, err := store.Open(storeOptions(cfg), logger)
			if err != nil {
				// Nothing can be served without the store.
				logger.Error("startup failed", "kind", domain.KindOf(err), "err", err)
				return err
			}
			defer st.Close()

			engine := rules.NewEngine(st, logger)
			dispatcher := tools.NewDispatcher(st, engine, rules.ThresholdsFromConfig(cfg.Rules), logger)

			logger.Info("serving on stdio", "version", version, "db", config.ExpandPath(cfg.Database.Path))
			serveErr := mcpserver.Serve(mcpserver.New(dispatcher, version, logger))
			logger.Debug("session metrics", "snapshot", metrics.Collector.Render())
			return serveErr
		},
	}
}

func seedCmd() *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create and populate a demo database",
		Long:  "Replaces the configured database with deterministic demo data. Pass --profile to control size and shape.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			profile := seed.DefaultProfile()
			if profilePath != "" {
				p, err := seed.LoadProfile(profilePath)
				if err != nil {
					return err
				}
				profile = p
			}
			return seed.Run(cmd.Context(), config.ExpandPath(cfg.Database.Path), profile, logger)
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "path to a YAML seed profile")
	return cmd
}

func findingsCmd() *cobra.Command {
	var startFlag, endFlag string
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Run every rule and print the findings report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			end := time.Now().UTC().Truncate(24 * time.Hour)
			start := end.AddDate(0, 0, -30)
			var err error
			if endFlag != "" {
				if end, err = time.Parse(domain.DateOnly, endFlag); err != nil {
					return fmt.Errorf("bad --end date: %w", err)
				}
			}
			if startFlag != "" {
				if start, err = time.Parse(domain.DateOnly, startFlag); err != nil {
					return fmt.Errorf("bad --start date: %w", err)
				}
			}

			st, err := store.Open(storeOptions(cfg), logger)
			if err != nil {
				logger.Error("startup failed", "kind", domain.KindOf(err), "err", err)
				return err
			}
			defer st.Close()

			findings, err := rules.NewEngine(st, logger).Report(cmd.Context(), start, end, rules.ThresholdsFromConfig(cfg.Rules))
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(findings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "range start, YYYY-MM-DD (default 30 days ago)")
	cmd.Flags().StringVar(&endFlag, "end", "", "range end, YYYY-MM-DD (default today)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Path:          config.ExpandPath(cfg.Database.Path),
		QueryTimeout:  time.Duration(cfg.Database.QueryTimeoutSeconds) * time.Second,
		MaxResultRows: cfg.Database.MaxResultRows,
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	}
}
