// Package store provides a SQLite-backed versioned provider.
//
// Every import of an entity grid is kept as a patch against the previous
// version, so the store holds the full history of the grid at the cost of
// one merge per version when reading:
//   - versions: one zinc patch per version, ordered by seq
//   - histories: time series samples per entity
//   - point_writes: priority array slots per writable point
//
// # Identity
//
// A version is identified by a UUIDv7, sortable by creation time. Its
// content hash is the SHA-256 of the NFC-normalised patch text, prefixed
// by a domain string, and is checked again on every replay.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Replayed grids are cached per version in an LRU, so repeated reads of
// the same version merge once.
package store
