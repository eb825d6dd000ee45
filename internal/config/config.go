package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the cashops tool server.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Database DatabaseConfig `json:"database"`
	Rules    RulesConfig    `json:"rules"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// DatabaseConfig names the backing store and bounds a single query.
type DatabaseConfig struct {
	Path                string `json:"path"`
	QueryTimeoutSeconds int    `json:"queryTimeoutSeconds"`
	MaxResultRows       int    `json:"maxResultRows"`
	BusyTimeoutMs       int    `json:"busyTimeoutMs"`
}

// RulesConfig carries every analytic threshold. None of these are business
// law: tests and operators set them per invocation.
type RulesConfig struct {
	HighVolumeThreshold   float64             `json:"highVolumeThreshold"`   // dollars/day
	CashSittingHours      float64             `json:"cashSittingHours"`      // uncollected-cash age limit
	TrailingWindowDays    int                 `json:"trailingWindowDays"`    // deposit average window
	MismatchToleranceDays int                 `json:"mismatchToleranceDays"` // modal day divergence
	SLACreditPerMiss      float64             `json:"slaCreditPerMiss"`      // dollars per missed pickup
	OverService           ServiceBandConfig   `json:"overService"`
	UnderService          ServiceBandConfig   `json:"underService"`
	Consolidation         ConsolidationConfig `json:"consolidation"`
}

// ServiceBandConfig pairs a daily-volume bound with a weekly pickup count.
// For over-service the volume is a maximum and the pickup count a minimum;
// for under-service the roles flip.
type ServiceBandConfig struct {
	DailyVolume   float64 `json:"dailyVolume"`
	WeeklyPickups int     `json:"weeklyPickups"`
}

type ConsolidationConfig struct {
	MaxDistanceKm float64 `json:"maxDistanceKm"` // 0 disables the distance gate
}

// DefaultConfigDir returns the default config directory (~/.cashops).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cashops"
	}
	return filepath.Join(home, ".cashops")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if cfg.Database.QueryTimeoutSeconds < 1 {
		errs = append(errs, "database.queryTimeoutSeconds must be >= 1")
	}
	if cfg.Database.MaxResultRows < 1 {
		errs = append(errs, "database.maxResultRows must be >= 1")
	}
	if cfg.Rules.HighVolumeThreshold < 0 {
		errs = append(errs, "rules.highVolumeThreshold must be >= 0")
	}
	if cfg.Rules.CashSittingHours <= 0 {
		errs = append(errs, "rules.cashSittingHours must be > 0")
	}
	if cfg.Rules.TrailingWindowDays < 1 {
		errs = append(errs, "rules.trailingWindowDays must be >= 1")
	}
	if cfg.Rules.MismatchToleranceDays < 0 || cfg.Rules.MismatchToleranceDays > 3 {
		errs = append(errs, "rules.mismatchToleranceDays must be between 0 and 3")
	}
	if cfg.Rules.Consolidation.MaxDistanceKm < 0 {
		errs = append(errs, "rules.consolidation.maxDistanceKm must be >= 0")
	}

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
