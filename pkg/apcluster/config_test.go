package apcluster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	config := NewConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, PreferenceMedian, config.PreferenceMode())
	assert.Equal(t, 0.95, config.Damping())
	assert.Equal(t, 3000, config.MaxIterations())
	assert.Equal(t, 20, config.ConvergenceIterations())
	assert.Equal(t, 0.1, config.LargeDeltaThreshold())
	assert.False(t, config.Parallel())
	assert.Equal(t, 1024, config.ChunkSize())
	assert.Equal(t, 5, config.MinDF())
	assert.Equal(t, 0.1, config.MaxDFRatio())
	assert.Equal(t, 0.1, config.MinSimilarity())
}

func TestParsePreferenceMode(t *testing.T) {
	cases := map[string]PreferenceMode{
		"median":           PreferenceMedian,
		"1":                PreferenceMedian,
		" MIN ":            PreferenceMinimum,
		"minimum":          PreferenceMinimum,
		"2":                PreferenceMinimum,
		"spread":           PreferenceSpread,
		"min-minus-spread": PreferenceSpread,
		"3":                PreferenceSpread,
	}
	for in, want := range cases {
		got, err := ParsePreferenceMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePreferenceMode("mean")
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		field string
	}{
		{"DampingAtLowerBound", "algorithm.damping", 0.5, "algorithm.damping"},
		{"DampingAtUpperBound", "algorithm.damping", 1.0, "algorithm.damping"},
		{"DampingNegative", "algorithm.damping", -0.3, "algorithm.damping"},
		{"ZeroMaxIterations", "algorithm.max_iterations", 0, "algorithm.max_iterations"},
		{"ZeroWindow", "algorithm.convergence_iterations", 0, "algorithm.convergence_iterations"},
		{"NegativeThreshold", "algorithm.large_delta_threshold", -1.0, "algorithm.large_delta_threshold"},
		{"UnknownMode", "algorithm.preference_mode", "mode", "algorithm.preference_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig()
			config.Set(tt.key, tt.value)
			err := config.Validate()
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfig_ValidateParallel(t *testing.T) {
	config := NewConfig()
	config.Set("performance.num_workers", 0)
	assert.NoError(t, config.Validate(), "workers are ignored when sequential")

	config.Set("performance.parallel", true)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(config.Validate(), &cfgErr))
	assert.Equal(t, "performance.num_workers", cfgErr.Field)
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apcluster.yaml")
	content := []byte("algorithm:\n  damping: 0.8\n  preference_mode: spread\nperformance:\n  parallel: true\n  num_workers: 2\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	config := NewConfig()
	require.NoError(t, config.LoadFromFile(path))
	require.NoError(t, config.Validate())
	assert.Equal(t, 0.8, config.Damping())
	assert.Equal(t, PreferenceSpread, config.PreferenceMode())
	assert.True(t, config.Parallel())
	assert.Equal(t, 2, config.NumWorkers())
	assert.Equal(t, 3000, config.MaxIterations())
}

func TestConfig_Environment(t *testing.T) {
	t.Setenv("APCLUSTER_ALGORITHM_MAX_ITERATIONS", "42")
	config := NewConfig()
	assert.Equal(t, 42, config.MaxIterations())
}

func TestConfigurationError_Message(t *testing.T) {
	err := &ConfigurationError{Field: "algorithm.damping", Value: 1.5, Reason: "must lie in the open interval (0.5, 1.0)"}
	assert.Contains(t, err.Error(), "algorithm.damping")
	assert.Contains(t, err.Error(), "1.5")
}
