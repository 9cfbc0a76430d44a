package apcluster

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// PreferenceMode selects the statistic used as every item's self-similarity.
type PreferenceMode int

const (
	// PreferenceMedian uses the median similarity (moderate number of clusters).
	PreferenceMedian PreferenceMode = 1
	// PreferenceMinimum uses the smallest similarity (fewer clusters).
	PreferenceMinimum PreferenceMode = 2
	// PreferenceSpread uses 2*min - max (fewest clusters).
	PreferenceSpread PreferenceMode = 3
)

func (m PreferenceMode) String() string {
	switch m {
	case PreferenceMedian:
		return "median"
	case PreferenceMinimum:
		return "min"
	case PreferenceSpread:
		return "spread"
	default:
		return fmt.Sprintf("PreferenceMode(%d)", int(m))
	}
}

// ParsePreferenceMode accepts the mode names as well as their numeric codes 1-3.
func ParsePreferenceMode(s string) (PreferenceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "median", "1":
		return PreferenceMedian, nil
	case "min", "minimum", "2":
		return PreferenceMinimum, nil
	case "spread", "min-minus-spread", "3":
		return PreferenceSpread, nil
	}
	return 0, &ConfigurationError{Field: "algorithm.preference_mode", Value: s, Reason: "must be one of median, min, spread"}
}

// Config manages algorithm configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.preference_mode", "median")
	v.SetDefault("algorithm.damping", 0.95)
	v.SetDefault("algorithm.max_iterations", 3000)
	v.SetDefault("algorithm.convergence_iterations", 20)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())
	v.SetDefault("algorithm.large_delta_threshold", 0.1)

	// Performance parameters
	v.SetDefault("performance.parallel", false)
	v.SetDefault("performance.num_workers", runtime.NumCPU())
	v.SetDefault("performance.chunk_size", 1024)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)
	v.SetDefault("logging.progress_every", 1)

	v.SetDefault("analysis.track_iterations", false)
	v.SetDefault("analysis.output_file", "iterations.jsonl")

	// Pipeline stages feeding the engine
	v.SetDefault("tfidf.min_df", 5)
	v.SetDefault("tfidf.max_df_ratio", 0.1)
	v.SetDefault("similarity.min_similarity", 0.1)

	v.SetEnvPrefix("APCLUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Viper exposes the underlying store so command-line flags can be bound to it.
func (c *Config) Viper() *viper.Viper { return c.v }

// Getters for algorithm parameters
func (c *Config) PreferenceMode() PreferenceMode {
	mode, err := ParsePreferenceMode(c.v.GetString("algorithm.preference_mode"))
	if err != nil {
		return 0
	}
	return mode
}
func (c *Config) Damping() float64 { return c.v.GetFloat64("algorithm.damping") }
func (c *Config) MaxIterations() int { return c.v.GetInt("algorithm.max_iterations") }
func (c *Config) ConvergenceIterations() int { return c.v.GetInt("algorithm.convergence_iterations") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }
func (c *Config) LargeDeltaThreshold() float64 { return c.v.GetFloat64("algorithm.large_delta_threshold") }

func (c *Config) Parallel() bool { return c.v.GetBool("performance.parallel") }
func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }
func (c *Config) ChunkSize() int { return c.v.GetInt("performance.chunk_size") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }
func (c *Config) ProgressEvery() int { return c.v.GetInt("logging.progress_every") }

func (c *Config) EnableIterationTracking() bool { return c.v.GetBool("analysis.track_iterations") }
func (c *Config) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

func (c *Config) MinDF() int { return c.v.GetInt("tfidf.min_df") }
func (c *Config) MaxDFRatio() float64 { return c.v.GetFloat64("tfidf.max_df_ratio") }
func (c *Config) MinSimilarity() float64 { return c.v.GetFloat64("similarity.min_similarity") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Validate checks every algorithm tunable. It must be called before any input
// is read so that a bad configuration never costs a parse.
func (c *Config) Validate() error {
	if _, err := ParsePreferenceMode(c.v.GetString("algorithm.preference_mode")); err != nil {
		return err
	}
	d := c.Damping()
	if math.IsNaN(d) || d <= 0.5 || d >= 1.0 {
		return &ConfigurationError{Field: "algorithm.damping", Value: d, Reason: "must lie in the open interval (0.5, 1.0)"}
	}
	if c.MaxIterations() <= 0 {
		return &ConfigurationError{Field: "algorithm.max_iterations", Value: c.MaxIterations(), Reason: "must be positive"}
	}
	if c.ConvergenceIterations() <= 0 {
		return &ConfigurationError{Field: "algorithm.convergence_iterations", Value: c.ConvergenceIterations(), Reason: "must be positive"}
	}
	if t := c.LargeDeltaThreshold(); math.IsNaN(t) || t < 0 {
		return &ConfigurationError{Field: "algorithm.large_delta_threshold", Value: t, Reason: "must be non-negative"}
	}
	if c.Parallel() {
		if c.NumWorkers() <= 0 {
			return &ConfigurationError{Field: "performance.num_workers", Value: c.NumWorkers(), Reason: "must be positive"}
		}
		if c.ChunkSize() <= 0 {
			return &ConfigurationError{Field: "performance.chunk_size", Value: c.ChunkSize(), Reason: "must be positive"}
		}
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config. Diagnostics always go
// to stderr; stdout is reserved for clustering output.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "apcluster").Logger()
}
