// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/strikeline/strikeline/pkg/types"
	"github.com/strikeline/strikeline/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Config file names probed by Discover, in order.
const (
	DefaultFileName = "strikeline.config.json"
	YAMLFileName    = "strikeline.config.yaml"
)

// Load reads, parses, and validates a configuration file.
func Load(path string) (*types.StrikelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration bytes without validating them.
func Parse(data []byte) (*types.StrikelineConfig, error) {
	var cfg types.StrikelineConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return &cfg, nil
	}

	// Try YAML - decode to a generic map, then round-trip through JSON so
	// both formats share one set of struct tags
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return &cfg, nil
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// Validate checks a configuration for problems that would break the engine.
func Validate(cfg *types.StrikelineConfig) error {
	if cfg == nil {
		return fmt.Errorf("no configuration")
	}

	// Check version
	if cfg.Version != types.ConfigVersion {
		return fmt.Errorf("unsupported config version: %s", cfg.Version)
	}

	if err := validateWatchlist(cfg.Watchlist); err != nil {
		return fmt.Errorf("watchlist: %w", err)
	}
	if err := validateScreening(cfg.Screening); err != nil {
		return fmt.Errorf("screening: %w", err)
	}
	if err := validateAdmission(cfg.Admission); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	if err := validateEngine(cfg.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := validateRepository(cfg.Repository); err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	return nil
}

// Default returns a runnable starting configuration with the standard
// thresholds written out explicitly.
func Default() *types.StrikelineConfig {
	enabled := true

	return &types.StrikelineConfig{
		Version: types.ConfigVersion,
		Watchlist: types.WatchlistConfig{
			Path: "watchlist.txt",
		},
		Screening: types.ScreeningConfig{
			Width:         5,
			MinDays:       21,
			MaxDays:       45,
			MinCredit:     0.30,
			MaxShortDelta: 0.30,
			Quantity:      1,
		},
		Admission: types.AdmissionConfig{
			MaxPositions:    10,
			MinScore:        55,
			MinOpenInterest: 500,
			MaxBidAskPct:    0.10,
			AbandonAfter:    1800000,
		},
		Engine: types.EngineConfig{
			ScanInterval:      30000,
			AdmissionInterval: 10000,
			DrainInterval:     15000,
			SeedCapacity:      256,
		},
		Repository: types.RepositoryConfig{
			Driver: "csv",
			Path:   "positions.csv",
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
	}
}

// Save writes the configuration atomically. The encoding follows the file
// extension: .yaml/.yml produce YAML, everything else JSON.
func Save(cfg *types.StrikelineConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("no configuration")
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Discover resolves the config path: an explicit path wins, otherwise the
// JSON then YAML names are probed under root. When neither exists the JSON
// path is returned so error messages name the expected file.
func Discover(root, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if root == "" {
		root = "."
	}

	jsonPath := filepath.Join(root, DefaultFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}

	yamlPath := filepath.Join(root, YAMLFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}

	return jsonPath
}

// Private validators

func validateWatchlist(w types.WatchlistConfig) error {
	if w.Path == "" && len(w.Tickers) == 0 {
		return fmt.Errorf("requires a file path or inline tickers")
	}
	for i, ticker := range w.Tickers {
		if strings.TrimSpace(ticker) == "" {
			return fmt.Errorf("ticker %d is blank", i)
		}
	}
	return nil
}

func validateScreening(s types.ScreeningConfig) error {
	if s.Width < 0 {
		return fmt.Errorf("width must be positive")
	}
	if s.MinDays < 0 || s.MaxDays < 0 {
		return fmt.Errorf("day window must be positive")
	}
	if s.MinDays > 0 && s.MaxDays > 0 && s.MinDays > s.MaxDays {
		return fmt.Errorf("minDays %d exceeds maxDays %d", s.MinDays, s.MaxDays)
	}
	if s.MinCredit < 0 {
		return fmt.Errorf("minCredit must not be negative")
	}
	if s.MaxShortDelta < 0 || s.MaxShortDelta > 1 {
		return fmt.Errorf("maxShortDelta must be between 0 and 1")
	}
	if s.Quantity < 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if w := s.Weights; w != nil {
		if w.Return < 0 || w.Liquidity < 0 || w.Delta < 0 {
			return fmt.Errorf("weights must not be negative")
		}
		if w.Return+w.Liquidity+w.Delta == 0 {
			return fmt.Errorf("weights must not all be zero")
		}
	}
	return nil
}

func validateAdmission(a types.AdmissionConfig) error {
	if a.MaxPositions < 0 {
		return fmt.Errorf("maxPositions must be positive")
	}
	if a.MinScore < 0 {
		return fmt.Errorf("minScore must not be negative")
	}
	if a.MinOpenInterest < 0 {
		return fmt.Errorf("minOpenInterest must not be negative")
	}
	if a.MaxBidAskPct < 0 {
		return fmt.Errorf("maxBidAskPct must not be negative")
	}
	if a.AbandonAfter < 0 {
		return fmt.Errorf("abandonAfter must not be negative")
	}
	return nil
}

func validateEngine(e types.EngineConfig) error {
	if e.ScanInterval < 0 || e.AdmissionInterval < 0 || e.DrainInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if e.EnqueueWait < 0 || e.DequeueWait < 0 {
		return fmt.Errorf("queue waits must not be negative")
	}
	if e.ShutdownGrace < 0 {
		return fmt.Errorf("shutdownGrace must not be negative")
	}
	return nil
}

func validateRepository(r types.RepositoryConfig) error {
	switch r.DriverName() {
	case "csv":
		return nil
	case "postgres":
		if r.DSN == "" {
			return fmt.Errorf("postgres driver requires a dsn")
		}
		return nil
	default:
		return fmt.Errorf("unknown driver: %s", r.Driver)
	}
}
