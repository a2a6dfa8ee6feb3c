package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pprados/haystackapi/internal/codec"
)

// Scenario defines a conformance test scenario: named input grids and
// the steps run against them.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Grids are the named input grids.
	Grids map[string]GridSource `yaml:"grids"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// dir resolves GridSource.File.
	dir string
}

// GridSource is an input grid, inline or in a file.
type GridSource struct {
	Text   string `yaml:"text,omitempty"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Step runs one operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Grid is the input of filter, convert and import.
	Grid string `yaml:"grid,omitempty"`
	// Base and Target are the inputs of diff; Base and Patch of merge.
	Base   string `yaml:"base,omitempty"`
	Target string `yaml:"target,omitempty"`
	Patch  string `yaml:"patch,omitempty"`

	// Expr is the filter of filter and read.
	Expr  string `yaml:"expr,omitempty"`
	Limit int    `yaml:"limit,omitempty"`

	// Format is the encoding of convert and decode; Text the input of decode.
	Format string `yaml:"format,omitempty"`
	Text   string `yaml:"text,omitempty"`

	// At is the RFC 3339 instant of import and read.
	At string `yaml:"at,omitempty"`

	// Save names the step's result grid for later steps.
	Save string `yaml:"save,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a step expectation. Unset fields are not checked.
type Expect struct {
	IDs     []string `yaml:"ids,omitempty"`
	Count   *int     `yaml:"count,omitempty"`
	Equals  string   `yaml:"equals,omitempty"`
	Changed *bool    `yaml:"changed,omitempty"`
	Error   string   `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpFilter  = "filter"
	OpConvert = "convert"
	OpDecode  = "decode"
	OpDiff    = "diff"
	OpMerge   = "merge"
	OpImport  = "import"
	OpRead    = "read"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)

	if err := checkFiles(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Grid files resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for name, src := range s.Grids {
		if (src.Text == "") == (src.File == "") {
			return fmt.Errorf("grids.%s: exactly one of text or file is required", name)
		}
		if src.Format != "" {
			if _, err := codec.ParseFormat(src.Format); err != nil {
				return fmt.Errorf("grids.%s: %w", name, err)
			}
		}
	}

	// Names visible to each step: inputs, then what earlier steps saved.
	known := make(map[string]bool, len(s.Grids))
	for name := range s.Grids {
		known[name] = true
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], known); err != nil {
			return err
		}
		if s.Steps[i].Save != "" {
			known[s.Steps[i].Save] = true
		}
	}
	return nil
}

// validateStep validates a single step based on its operation.
func validateStep(index int, st *Step, known map[string]bool) error {
	need := func(field, name string) error {
		if name == "" {
			return fmt.Errorf("steps[%d]: %s is required for %s", index, field, st.Op)
		}
		if !known[name] {
			return fmt.Errorf("steps[%d]: unknown grid %q", index, name)
		}
		return nil
	}

	var err error
	switch st.Op {
	case OpFilter:
		err = need("grid", st.Grid)
	case OpConvert:
		if err = need("grid", st.Grid); err == nil {
			err = needFormat(index, st)
		}
	case OpDecode:
		err = needFormat(index, st)
	case OpDiff:
		if err = need("base", st.Base); err == nil {
			err = need("target", st.Target)
		}
	case OpMerge:
		if err = need("base", st.Base); err == nil {
			err = need("patch", st.Patch)
		}
	case OpImport:
		err = need("grid", st.Grid)
	case OpRead:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	if err != nil {
		return err
	}

	if st.At != "" {
		if _, err := time.Parse(time.RFC3339Nano, st.At); err != nil {
			return fmt.Errorf("steps[%d]: at: %w", index, err)
		}
	}
	if st.Limit < 0 {
		return fmt.Errorf("steps[%d]: limit must be non-negative", index)
	}
	if e := st.Expect; e != nil {
		if e.Count != nil && *e.Count < 0 {
			return fmt.Errorf("steps[%d].expect: count must be non-negative", index)
		}
		if e.Equals != "" && !known[e.Equals] {
			return fmt.Errorf("steps[%d].expect: unknown grid %q", index, e.Equals)
		}
		if e.Changed != nil && st.Op != OpImport {
			return fmt.Errorf("steps[%d].expect: changed only applies to import", index)
		}
	}
	return nil
}

func needFormat(index int, st *Step) error {
	if st.Format == "" {
		return fmt.Errorf("steps[%d]: format is required for %s", index, st.Op)
	}
	if _, err := codec.ParseFormat(st.Format); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	return nil
}

// checkFiles verifies that grid files exist.
func checkFiles(s *Scenario) error {
	for name, src := range s.Grids {
		if src.File == "" {
			continue
		}
		if _, err := os.Stat(s.path(src.File)); os.IsNotExist(err) {
			return fmt.Errorf("grids.%s: file not found: %s", name, src.File)
		}
	}
	return nil
}

func (s *Scenario) path(file string) string {
	if filepath.IsAbs(file) || s.dir == "" {
		return file
	}
	return filepath.Join(s.dir, file)
}
