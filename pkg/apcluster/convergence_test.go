package apcluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvergenceMonitor(t *testing.T) {
	tests := []struct {
		name          string
		changes       []int // changed count per iteration, fed until a stop
		maxIterations int
		window        int
		wantReason    StopReason
		wantIters     int
	}{
		{
			// Last change at iteration 6; iterations 7, 8 and 9 are stable.
			name:          "StableWindowAfterLastChange",
			changes:       []int{4, 3, 3, 2, 1, 2, 1, 0, 0, 0, 0, 0},
			maxIterations: 100,
			window:        3,
			wantReason:    StopConverged,
			wantIters:     10,
		},
		{
			name:          "ResetByLateChange",
			changes:       []int{3, 0, 0, 1, 0, 0, 0},
			maxIterations: 100,
			window:        3,
			wantReason:    StopConverged,
			wantIters:     7,
		},
		{
			name:          "MaxIterations",
			changes:       []int{1, 1, 1, 1, 1, 1},
			maxIterations: 4,
			window:        2,
			wantReason:    StopMaxIterations,
			wantIters:     4,
		},
		{
			name:          "ConvergedOnLastAllowedIteration",
			changes:       []int{1, 0, 0},
			maxIterations: 3,
			window:        2,
			wantReason:    StopConverged,
			wantIters:     3,
		},
		{
			name:          "WindowOfOne",
			changes:       []int{5, 0},
			maxIterations: 10,
			window:        1,
			wantReason:    StopConverged,
			wantIters:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewConvergenceMonitor(tt.maxIterations, tt.window)
			reason := StopNone
			for _, changed := range tt.changes {
				if reason = m.Observe(changed); reason != StopNone {
					break
				}
			}
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.wantIters, m.Iterations())
		})
	}
}

func TestConvergenceMonitor_StableCount(t *testing.T) {
	m := NewConvergenceMonitor(100, 10)
	m.Observe(0)
	m.Observe(0)
	assert.Equal(t, 2, m.Stable())
	m.Observe(3)
	assert.Equal(t, 0, m.Stable())
}
