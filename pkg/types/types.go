// Package types provides core domain types and configuration for Strikeline
package types

import "time"

// ConfigVersion is the config schema version this build understands.
const ConfigVersion = "1.0"

// StrikelineConfig is the root configuration loaded from
// strikeline.config.json or strikeline.config.yaml.
type StrikelineConfig struct {
	Version       string              `json:"version" yaml:"version"`
	Watchlist     WatchlistConfig     `json:"watchlist" yaml:"watchlist"`
	Screening     ScreeningConfig     `json:"screening,omitempty" yaml:"screening,omitempty"`
	Admission     AdmissionConfig     `json:"admission" yaml:"admission"`
	Engine        EngineConfig        `json:"engine,omitempty" yaml:"engine,omitempty"`
	Repository    RepositoryConfig    `json:"repository,omitempty" yaml:"repository,omitempty"`
	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// WatchlistConfig names the tickers to screen: a plain text file (one ticker
// per line, '#' comments) or an inline list, or both. The file is re-read
// when it changes on disk.
type WatchlistConfig struct {
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`
	Tickers []string `json:"tickers,omitempty" yaml:"tickers,omitempty"`
}

// ScreeningConfig controls how put credit spreads are enumerated and scored.
type ScreeningConfig struct {
	Width         float64       `json:"width,omitempty" yaml:"width,omitempty"`                 // dollars between short and long strike
	MinDays       int           `json:"minDays,omitempty" yaml:"minDays,omitempty"`             // nearest expiry considered
	MaxDays       int           `json:"maxDays,omitempty" yaml:"maxDays,omitempty"`             // furthest expiry considered
	MinCredit     float64       `json:"minCredit,omitempty" yaml:"minCredit,omitempty"`         // per-share credit floor
	MaxShortDelta float64       `json:"maxShortDelta,omitempty" yaml:"maxShortDelta,omitempty"` // absolute short-leg delta ceiling
	Quantity      int           `json:"quantity,omitempty" yaml:"quantity,omitempty"`           // contracts per position
	Weights       *ScoreWeights `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// ScoreWeights blends the scoring inputs. Weights are relative and are
// normalized by the scorer, so they need not sum to one.
type ScoreWeights struct {
	Return    float64 `json:"return" yaml:"return"`
	Liquidity float64 `json:"liquidity" yaml:"liquidity"`
	Delta     float64 `json:"delta" yaml:"delta"`
}

// SpreadWidth returns the configured strike width, defaulting to $5.
func (s ScreeningConfig) SpreadWidth() float64 {
	if s.Width <= 0 {
		return 5
	}
	return s.Width
}

// DayWindow returns the expiry window in days, defaulting to 21..45.
func (s ScreeningConfig) DayWindow() (int, int) {
	minDays, maxDays := s.MinDays, s.MaxDays
	if minDays <= 0 {
		minDays = 21
	}
	if maxDays <= 0 {
		maxDays = 45
	}
	return minDays, maxDays
}

// DeltaCeiling returns the short-delta ceiling, defaulting to 0.35.
func (s ScreeningConfig) DeltaCeiling() float64 {
	if s.MaxShortDelta <= 0 {
		return 0.35
	}
	return s.MaxShortDelta
}

// Contracts returns the per-position quantity, defaulting to 1.
func (s ScreeningConfig) Contracts() int {
	if s.Quantity <= 0 {
		return 1
	}
	return s.Quantity
}

// ScoringWeights returns the configured weights or the standard blend.
func (s ScreeningConfig) ScoringWeights() ScoreWeights {
	if s.Weights != nil {
		return *s.Weights
	}
	return ScoreWeights{Return: 0.5, Liquidity: 0.3, Delta: 0.2}
}

// AdmissionConfig holds the thresholds the screening policy is built from.
type AdmissionConfig struct {
	MaxPositions    int     `json:"maxPositions" yaml:"maxPositions"`
	MinScore        float64 `json:"minScore" yaml:"minScore"`
	MinOpenInterest int     `json:"minOpenInterest,omitempty" yaml:"minOpenInterest,omitempty"`
	MaxBidAskPct    float64 `json:"maxBidAskPct,omitempty" yaml:"maxBidAskPct,omitempty"`
	AbandonAfter    int     `json:"abandonAfter,omitempty" yaml:"abandonAfter,omitempty"` // milliseconds
}

// PositionCap returns the open-position ceiling, defaulting to 10.
func (a AdmissionConfig) PositionCap() int {
	if a.MaxPositions <= 0 {
		return 10
	}
	return a.MaxPositions
}

// AbandonHorizon returns how long a PROSPECT may sit unexamined before it
// is abandoned, defaulting to 30 minutes.
func (a AdmissionConfig) AbandonHorizon() time.Duration {
	if a.AbandonAfter <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(a.AbandonAfter) * time.Millisecond
}

// SpreadQuality returns the bid/ask spread ceiling as a fraction of mid,
// defaulting to 0.10.
func (a AdmissionConfig) SpreadQuality() float64 {
	if a.MaxBidAskPct <= 0 {
		return 0.10
	}
	return a.MaxBidAskPct
}

// EngineConfig tunes the daemon's threads and seed queue. Intervals and
// waits are in milliseconds; zero values fall back to the defaults below.
type EngineConfig struct {
	ScanInterval      int `json:"scanInterval,omitempty" yaml:"scanInterval,omitempty"`
	AdmissionInterval int `json:"admissionInterval,omitempty" yaml:"admissionInterval,omitempty"`
	DrainInterval     int `json:"drainInterval,omitempty" yaml:"drainInterval,omitempty"`
	SeedCapacity      int `json:"seedCapacity,omitempty" yaml:"seedCapacity,omitempty"`
	EnqueueWait       int `json:"enqueueWait,omitempty" yaml:"enqueueWait,omitempty"`
	DequeueWait       int `json:"dequeueWait,omitempty" yaml:"dequeueWait,omitempty"`
	ShutdownGrace     int `json:"shutdownGrace,omitempty" yaml:"shutdownGrace,omitempty"`
}

func millis(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Millisecond
}

// ScanEvery returns the pause between ingestion runs (default 30s).
func (e EngineConfig) ScanEvery() time.Duration { return millis(e.ScanInterval, 30*time.Second) }

// AdmissionEvery returns the pause between policy applications (default 10s).
func (e EngineConfig) AdmissionEvery() time.Duration {
	return millis(e.AdmissionInterval, 10*time.Second)
}

// DrainEvery returns the pause between drain runs (default 15s).
func (e EngineConfig) DrainEvery() time.Duration { return millis(e.DrainInterval, 15*time.Second) }

// SeedQueueCapacity returns the seed queue bound (default 256; negative
// values mean unbounded).
func (e EngineConfig) SeedQueueCapacity() int {
	if e.SeedCapacity == 0 {
		return 256
	}
	return e.SeedCapacity
}

// EnqueueTimeout returns how long seed producers wait on a full queue
// (default 2s).
func (e EngineConfig) EnqueueTimeout() time.Duration { return millis(e.EnqueueWait, 2*time.Second) }

// DequeueTimeout returns how long the ingestion producer waits for a seed
// before ending its run (default 500ms).
func (e EngineConfig) DequeueTimeout() time.Duration {
	return millis(e.DequeueWait, 500*time.Millisecond)
}

// ShutdownTimeout returns the grace period for joining threads on stop
// (default 30s).
func (e EngineConfig) ShutdownTimeout() time.Duration {
	return millis(e.ShutdownGrace, 30*time.Second)
}

// RepositoryConfig selects where drained positions are persisted.
type RepositoryConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"` // "csv" or "postgres"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`     // csv file location
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`       // postgres connection string
}

// DriverName returns the configured driver, defaulting to "csv".
func (r RepositoryConfig) DriverName() string {
	if r.Driver == "" {
		return "csv"
	}
	return r.Driver
}

// StorePath returns the csv location, defaulting to "positions.csv".
func (r RepositoryConfig) StorePath() string {
	if r.Path == "" {
		return "positions.csv"
	}
	return r.Path
}

// NotificationConfig controls desktop notifications.
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	AcceptSound  string `json:"acceptSound,omitempty" yaml:"acceptSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// IsEnabled defaults to true when the block is present without a flag.
func (n *NotificationConfig) IsEnabled() bool {
	if n == nil {
		return false
	}
	if n.Enabled == nil {
		return true
	}
	return *n.Enabled
}

// LoggingConfig controls the log sink and verbosity.
type LoggingConfig struct {
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}
