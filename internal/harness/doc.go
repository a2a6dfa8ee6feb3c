// Package harness runs conformance scenarios against the grid toolkit.
//
// A scenario names a few grids and a list of steps. Each step runs one
// operation (filter, convert, diff, merge, import or read) and checks its
// outcome. Steps may save their result grid under a name so that later
// steps can use it.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: merge_patch
//	description: "A patch renames a site and drops another"
//	grids:
//	  base:
//	    text: |
//	      ver:"3.0"
//	      id,dis
//	      @s1,"HQ"
//	  patch:
//	    file: patch.zinc
//	steps:
//	  - op: merge
//	    base: base
//	    patch: patch
//	    save: merged
//	    expect:
//	      ids: ["s1"]
//	      count: 1
//
// A grid is given inline with text, or read from file (relative to the
// scenario). Its format defaults to zinc, or to the file suffix.
//
// # Step Operations
//
//   - filter: rows of grid matching expr, at most limit of them
//   - convert: encode grid in format, then decode it back
//   - decode: decode text in format; pair with expect.error
//   - diff: patch turning base into target
//   - merge: patch applied to base
//   - import: record grid as a store version at instant at
//   - read: store version at instant at, filtered by expr
//
// # Expectations
//
// A step expectation checks the row ids in order (ids), the row count
// (count), equality with a named grid (equals), whether an import
// recorded a version (changed) or that the step failed with an error
// containing a given text (error).
//
// # Deterministic Testing
//
// Every run uses a fresh SQLite database in a temporary directory and a
// stepping clock starting at testutil.FakeNow, so store imports without
// an instant get reproducible times. The transcript of step outputs is
// stable and can be compared against golden files:
//
//	s, err := harness.LoadScenario("testdata/scenarios/filter_site_model.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	harness.RunWithGolden(t, s)
package harness
