package harness

import (
	"github.com/pprados/haystackapi/internal/grid"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index int
	Op    string

	// Grid is the step's result, nil when the step failed or yields none.
	Grid *grid.Grid
	// Err is the error the step returned, if any.
	Err error

	// Seq and Changed describe an import.
	Seq     int64
	Changed bool
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation holds.
	Pass bool

	// Steps holds one entry per step, in order.
	Steps []StepResult

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records the outcome of a step.
func (r *Result) AddStep(s StepResult) {
	r.Steps = append(r.Steps, s)
}
