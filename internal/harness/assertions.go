package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Check    string     // Expectation field, e.g. "ids"
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Grid     *grid.Grid // Step result for context, may be nil
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "expect %s failed\n", e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Grid != nil {
		if text, err := codec.Encode(e.Grid, codec.Zinc); err == nil {
			fmt.Fprintf(&buf, "\nResult grid:\n%s", text)
		}
	}
	return buf.String()
}

// EvaluateExpect checks a step result against e. grids resolves
// e.Equals. It returns one message per failed check.
func EvaluateExpect(sr StepResult, e *Expect, grids map[string]*grid.Grid) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if e.Error != "" {
		add(assertError(sr, e.Error))
		return errs
	}
	if sr.Err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", sr.Err)}
	}

	if e.IDs != nil {
		add(assertIDs(sr.Grid, e.IDs))
	}
	if e.Count != nil {
		add(assertCount(sr.Grid, *e.Count))
	}
	if e.Equals != "" {
		add(assertEquals(sr.Grid, e.Equals, grids[e.Equals]))
	}
	if e.Changed != nil && sr.Changed != *e.Changed {
		add(&AssertionError{
			Check:    "changed",
			Expected: fmt.Sprint(*e.Changed),
			Actual:   fmt.Sprint(sr.Changed),
		})
	}
	return errs
}

// assertError checks that the step failed with an error containing want.
func assertError(sr StepResult, want string) error {
	if sr.Err == nil {
		return &AssertionError{
			Check:    "error",
			Expected: fmt.Sprintf("error containing %q", want),
			Actual:   "no error",
			Grid:     sr.Grid,
		}
	}
	if !strings.Contains(sr.Err.Error(), want) {
		return &AssertionError{
			Check:    "error",
			Expected: fmt.Sprintf("error containing %q", want),
			Actual:   sr.Err.Error(),
		}
	}
	return nil
}

// assertIDs checks the row ids in order, without the "@".
func assertIDs(g *grid.Grid, want []string) error {
	got := rowIDs(g)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Check:    "ids",
			Expected: fmt.Sprint(want),
			Actual:   fmt.Sprint(got),
			Grid:     g,
		}
	}
	return nil
}

func assertCount(g *grid.Grid, want int) error {
	got := 0
	if g != nil {
		got = g.Len()
	}
	if got != want {
		return &AssertionError{
			Check:    "count",
			Expected: fmt.Sprintf("%d rows", want),
			Actual:   fmt.Sprintf("%d rows", got),
			Grid:     g,
		}
	}
	return nil
}

// assertEquals compares with grid.Equal, which ignores row order.
func assertEquals(g *grid.Grid, name string, want *grid.Grid) error {
	if !grid.Equal(g, want) {
		return &AssertionError{
			Check:    "equals",
			Expected: fmt.Sprintf("grid equal to %s", name),
			Actual:   "different grid",
			Grid:     g,
		}
	}
	return nil
}

// rowIDs lists the ids of g's rows, "" for a row without one.
func rowIDs(g *grid.Grid) []string {
	ids := []string{}
	if g == nil {
		return ids
	}
	for _, row := range g.All() {
		id, _ := row.ID()
		ids = append(ids, id.ID)
	}
	return ids
}
