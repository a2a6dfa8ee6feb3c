package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// populate imports the three fixture versions.
func populate(t *testing.T, s *Store) []Version {
	t.Helper()
	var versions []Version
	for _, v := range testutil.VersionedGrids() {
		stored, changed, err := s.Import(context.Background(), v.Grid, v.At)
		require.NoError(t, err)
		require.True(t, changed)
		versions = append(versions, stored)
	}
	return versions
}
