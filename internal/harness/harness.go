package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/patch"
	"github.com/pprados/haystackapi/internal/provider"
	"github.com/pprados/haystackapi/internal/store"
	"github.com/pprados/haystackapi/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a private store with a deterministic clock.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	clock    *testutil.SteppingClock
	grids    map[string]*grid.Grid
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Create fresh in-memory database
// 2. Decode the input grids
// 3. Execute the steps, checking each expectation
// 4. Return result with pass/fail, step outputs, and errors
//
// The returned error reports a scenario that could not run at all, such
// as an unreadable input grid. Failed expectations are in the result.
func Run(scenario *Scenario) (*Result, error) {
	clock := testutil.NewSteppingClock(testutil.FakeNow, time.Second)
	st, err := store.Open(":memory:", store.WithClock(clock.Now), store.WithName("harness"))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		store:    st,
		clock:    clock,
		grids:    make(map[string]*grid.Grid, len(scenario.Grids)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	if err := h.loadGrids(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		sr := h.execute(ctx, i, step)
		result.AddStep(sr)
		h.logger.Debug("step done", "index", i, "op", step.Op, "err", sr.Err)

		for _, msg := range h.check(sr, step.Expect) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
		}
		if step.Save != "" && sr.Grid != nil {
			h.grids[step.Save] = sr.Grid
		}
	}
	return result, nil
}

func (h *Harness) loadGrids() error {
	for name, src := range h.scenario.Grids {
		text := src.Text
		format := codec.Zinc
		if src.File != "" {
			path := h.scenario.path(src.File)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("grid %s: %w", name, err)
			}
			text = string(data)
			if f, err := codec.FormatFromPath(path); err == nil {
				format = f
			}
		}
		if src.Format != "" {
			f, err := codec.ParseFormat(src.Format)
			if err != nil {
				return fmt.Errorf("grid %s: %w", name, err)
			}
			format = f
		}
		g, err := codec.Decode(text, format)
		if err != nil {
			return fmt.Errorf("grid %s: %w", name, err)
		}
		h.grids[name] = g
	}
	return nil
}

// execute runs one step. Operation failures land in the step result so
// that expectations can inspect them.
func (h *Harness) execute(ctx context.Context, index int, st Step) StepResult {
	sr := StepResult{Index: index, Op: st.Op}
	var at time.Time
	if st.At != "" {
		// Checked by validateScenario.
		at, _ = time.Parse(time.RFC3339Nano, st.At)
	}

	switch st.Op {
	case OpFilter:
		sr.Grid, sr.Err = filter.Apply(h.grids[st.Grid], st.Expr, st.Limit)

	case OpConvert:
		f, _ := codec.ParseFormat(st.Format)
		text, err := codec.Encode(h.grids[st.Grid], f)
		if err != nil {
			sr.Err = err
			break
		}
		sr.Grid, sr.Err = codec.Decode(text, f)

	case OpDecode:
		f, _ := codec.ParseFormat(st.Format)
		sr.Grid, sr.Err = codec.Decode(st.Text, f)

	case OpDiff:
		sr.Grid = patch.Diff(h.grids[st.Base], h.grids[st.Target])

	case OpMerge:
		sr.Grid, sr.Err = patch.Merge(h.grids[st.Base], h.grids[st.Patch])

	case OpImport:
		v, changed, err := h.store.Import(ctx, h.grids[st.Grid], at)
		sr.Seq, sr.Changed, sr.Err = v.Seq, changed, err

	case OpRead:
		sr.Grid, sr.Err = h.store.Read(ctx, provider.ReadRequest{
			Filter:  st.Expr,
			Limit:   st.Limit,
			Version: at,
		})
	}
	return sr
}

// check evaluates an expectation. A step without one must not fail.
func (h *Harness) check(sr StepResult, e *Expect) []string {
	if e == nil {
		if sr.Err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", sr.Err)}
		}
		return nil
	}
	return EvaluateExpect(sr, e, h.grids)
}
