package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/pprados/haystackapi/internal/codec"
)

// Transcript renders the step outputs of a result as stable text: one
// section per step holding its result grid in zinc, the import outcome,
// or "error" for a failed step.
func Transcript(name string, result *Result) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", name)
	for _, sr := range result.Steps {
		fmt.Fprintf(&b, "## %d %s\n", sr.Index, sr.Op)
		switch {
		case sr.Err != nil:
			// Messages carry offsets and wrapped causes; the golden
			// file only pins that the step failed.
			b.WriteString("error\n")
		case sr.Op == OpImport:
			fmt.Fprintf(&b, "seq=%d changed=%t\n", sr.Seq, sr.Changed)
		case sr.Grid != nil:
			text, err := codec.Encode(sr.Grid, codec.Zinc)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", sr.Index, err)
			}
			b.WriteString(text)
		}
	}
	return []byte(b.String()), nil
}

// RunWithGolden executes a scenario and compares its transcript against
// a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Failed expectations fail the test; a transcript mismatch fails it
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the transcript of an already run result against
// a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	transcript, err := Transcript(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, transcript)
	return nil
}
