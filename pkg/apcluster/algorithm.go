package apcluster

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// Result represents the algorithm output
type Result struct {
	Exemplars   []int      `json:"exemplars"`
	Iterations  int        `json:"iterations"`
	Converged   bool       `json:"converged"`
	StopReason  StopReason `json:"stop_reason"`
	Preference  *float64   `json:"preference,omitempty"` // nil with per-item preferences
	NumClusters int        `json:"num_clusters"`
	Statistics  Statistics `json:"statistics"`
}

// Statistics contains algorithm performance metrics
type Statistics struct {
	NumItems     int              `json:"num_items"`
	NumEdges     int              `json:"num_edges"`
	RuntimeMS    int64            `json:"runtime_ms"`
	MemoryPeakMB int64            `json:"memory_peak_mb"`
	History      []IterationStats `json:"history"`
}

// Cluster is one exemplar and the items assigned to it.
type Cluster struct {
	Exemplar int   `json:"exemplar"`
	Members  []int `json:"members"`
}

// ProgressCallback is invoked after every iteration.
type ProgressCallback func(stats IterationStats, maxIterations int)

// Run builds the graph from the similarity matrix, iterates until converged,
// extracts the final exemplars and releases the graph.
func Run(ctx context.Context, sim *sparse.Matrix, config *Config) (*Result, error) {
	return RunWithProgress(ctx, sim, config, nil)
}

// RunWithProgress is Run with a per-iteration callback.
func RunWithProgress(ctx context.Context, sim *sparse.Matrix, config *Config, progress ProgressCallback) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := config.CreateLogger()

	buildStart := time.Now()
	graph, err := NewBuilder(config.PreferenceMode(), config.RandomSeed()).Build(sim)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	defer graph.Release()

	event := logger.Info().
		Int("items", graph.NumNodes).
		Int("edges", graph.NumEdges()).
		Str("preference_mode", config.PreferenceMode().String())
	if graph.Preference != nil {
		event = event.Float64("preference", *graph.Preference)
	}
	event.Dur("build_time", time.Since(buildStart)).Msg("Graph built")

	return RunGraph(ctx, graph, config, logger, progress)
}

// RunGraph iterates on an already built graph. The graph is left intact so
// callers can inspect its messages; releasing it is up to them.
func RunGraph(ctx context.Context, graph *Graph, config *Config, logger zerolog.Logger, progress ProgressCallback) (*Result, error) {
	startTime := time.Now()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	var tracker *IterationTracker
	if config.EnableIterationTracking() {
		t, err := NewIterationTracker(config.TrackingOutputFile(), "affinity_propagation")
		if err != nil {
			return nil, fmt.Errorf("opening iteration log: %w", err)
		}
		tracker = t
		defer tracker.Close()
	}

	engine := NewEngine(graph, config.Damping(), config.LargeDeltaThreshold())
	if config.Parallel() {
		engine.WithParallelism(config.NumWorkers(), config.ChunkSize())
	}
	monitor := NewConvergenceMonitor(config.MaxIterations(), config.ConvergenceIterations())
	assignment := NewAssignment(graph.NumNodes)

	result := &Result{
		Preference: graph.Preference,
		Statistics: Statistics{
			NumItems: graph.NumNodes,
			NumEdges: graph.NumEdges(),
			History:  make([]IterationStats, 0),
		},
	}

	logger.Info().
		Int("items", graph.NumNodes).
		Float64("damping", config.Damping()).
		Int("max_iterations", config.MaxIterations()).
		Int("convergence_iterations", config.ConvergenceIterations()).
		Bool("parallel", config.Parallel()).
		Msg("Starting affinity propagation")

	every := config.ProgressEvery()
	if every <= 0 {
		every = 1
	}

	reason := StopNone
	for iteration := 0; reason == StopNone; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stats, err := engine.Iterate(ctx, iteration, assignment)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		result.Statistics.History = append(result.Statistics.History, stats)

		if config.EnableProgress() && iteration%every == 0 {
			logger.Info().
				Int("iteration", iteration).
				Int("changed", stats.Changed).
				Float64("churn", stats.Churn).
				Int("large_deltas", stats.LargeDeltas).
				Int("clusters", stats.NumClusters).
				Msg("Message passing progress")
		}
		if err := tracker.LogIteration(stats); err != nil {
			logger.Warn().Err(err).Msg("Failed to write iteration log")
		}
		if progress != nil {
			progress(stats, config.MaxIterations())
		}

		reason = monitor.Observe(stats.Changed)
	}

	result.Exemplars = assignment
	result.Iterations = monitor.Iterations()
	result.StopReason = reason
	result.Converged = reason == StopConverged
	result.NumClusters = countClusters(assignment)
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()
	result.Statistics.MemoryPeakMB = getMemoryUsage()

	logger.Info().
		Int("iterations", result.Iterations).
		Str("stop_reason", string(reason)).
		Int("clusters", result.NumClusters).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Affinity propagation completed")

	return result, nil
}

// Clusters groups items by exemplar, ordered by exemplar index.
func (r *Result) Clusters() []Cluster {
	byExemplar := make(map[int][]int)
	for item, ex := range r.Exemplars {
		byExemplar[ex] = append(byExemplar[ex], item)
	}
	clusters := make([]Cluster, 0, len(byExemplar))
	for ex, members := range byExemplar {
		clusters = append(clusters, Cluster{Exemplar: ex, Members: members})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Exemplar < clusters[j].Exemplar })
	return clusters
}

// getMemoryUsage returns current memory usage in MB
func getMemoryUsage() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Alloc / 1024 / 1024)
}
