// Package grid holds the Haystack value model and the Grid container.
//
// Every tag value is a Value: a sealed union over the scalar kinds (Str,
// Number, Ref, DateTime, ...) and the collection kinds List, *Dict and
// *Grid. A Grid is itself a Value so grids nest inside cells.
//
// A Grid owns a format version, metadata, ordered column declarations and
// ordered rows. Rows are *Dict values. Rows with an "id" tag are reachable
// by Ref through a lazily built index.
//
// The version of a grid built with New follows its content: storing NA, a
// List, a Dict or a nested Grid raises it to 3.0. A grid built with
// NewVersion is pinned and refuses such values with ErrVersionTooLow.
//
// This package imports nothing internal; codec, filter and patch build on it.
package grid
