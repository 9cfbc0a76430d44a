package apcluster

// StopReason explains why the iteration loop ended.
type StopReason string

const (
	// StopNone means the loop should keep going.
	StopNone StopReason = ""
	// StopConverged means assignments were stable for the convergence window.
	StopConverged StopReason = "converged"
	// StopMaxIterations means the iteration cap was reached first.
	StopMaxIterations StopReason = "max_iterations"
)

// ConvergenceMonitor decides when to stop iterating. Only assignment changes
// drive the decision; message churn is reported but never stops the loop.
type ConvergenceMonitor struct {
	maxIterations int
	window        int
	iterations    int
	stable        int
}

// NewConvergenceMonitor stops after maxIterations iterations or after window
// consecutive iterations without an assignment change.
func NewConvergenceMonitor(maxIterations, window int) *ConvergenceMonitor {
	return &ConvergenceMonitor{maxIterations: maxIterations, window: window}
}

// Observe records one finished iteration and reports whether to stop.
func (m *ConvergenceMonitor) Observe(changed int) StopReason {
	m.iterations++
	if changed == 0 {
		m.stable++
	} else {
		m.stable = 0
	}
	if m.stable >= m.window {
		return StopConverged
	}
	if m.iterations >= m.maxIterations {
		return StopMaxIterations
	}
	return StopNone
}

// Iterations returns the number of observed iterations.
func (m *ConvergenceMonitor) Iterations() int { return m.iterations }

// Stable returns the current run of consecutive unchanged iterations.
func (m *ConvergenceMonitor) Stable() int { return m.stable }
