package apcluster

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// IterationEvent is one line of the iteration log.
type IterationEvent struct {
	Iteration   int     `json:"iteration"`
	Algorithm   string  `json:"algorithm"`
	Changed     int     `json:"changed"`
	Churn       float64 `json:"churn"`
	LargeDeltas int     `json:"large_deltas"`
	NumClusters int     `json:"num_clusters"`
	Timestamp   int64   `json:"timestamp"`
}

// IterationTracker writes one JSON object per iteration. A nil tracker
// discards everything.
type IterationTracker struct {
	closer    io.Closer
	encoder   *json.Encoder
	algorithm string
}

// NewIterationTracker creates filename and logs iterations into it.
func NewIterationTracker(filename, algorithm string) (*IterationTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	t := NewIterationTrackerWriter(file, algorithm)
	t.closer = file
	return t, nil
}

// NewIterationTrackerWriter logs iterations into w.
func NewIterationTrackerWriter(w io.Writer, algorithm string) *IterationTracker {
	return &IterationTracker{
		encoder:   json.NewEncoder(w),
		algorithm: algorithm,
	}
}

// LogIteration appends stats to the log.
func (t *IterationTracker) LogIteration(stats IterationStats) error {
	if t == nil {
		return nil
	}

	event := IterationEvent{
		Iteration:   stats.Iteration,
		Algorithm:   t.algorithm,
		Changed:     stats.Changed,
		Churn:       stats.Churn,
		LargeDeltas: stats.LargeDeltas,
		NumClusters: stats.NumClusters,
		Timestamp:   time.Now().Unix(),
	}

	return t.encoder.Encode(event)
}

// Close closes the underlying file, if the tracker opened one.
func (t *IterationTracker) Close() error {
	if t != nil && t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
