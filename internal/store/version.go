package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/patch"
)

var (
	// ErrOutOfOrder is returned when importing a version older than the
	// latest one.
	ErrOutOfOrder = errors.New("version older than the latest")
	// ErrCorrupt is returned when a stored patch no longer matches its hash.
	ErrCorrupt = errors.New("stored patch does not match its hash")
)

// Version describes one stored version of the entity grid.
type Version struct {
	Seq  int64
	ID   string
	At   time.Time
	Hash string
}

// Import records g as the entity grid at instant at (now when zero). The
// stored patch is the diff against the latest version. Importing a grid
// equal to the latest version stores nothing and returns changed=false,
// even when at is older than that version; any other import older than
// the latest version fails with ErrOutOfOrder.
func (s *Store) Import(ctx context.Context, g *grid.Grid, at time.Time) (v Version, changed bool, err error) {
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	s.importing.Lock()
	defer s.importing.Unlock()

	latest, last, err := s.replay(ctx, time.Time{})
	if err != nil {
		return Version{}, false, fmt.Errorf("import: %w", err)
	}
	if grid.Equal(latest, g) {
		slog.Debug("store import unchanged", "at", at)
		if last != nil {
			return *last, false, nil
		}
		return Version{}, false, nil
	}
	if last != nil && at.Before(last.At) {
		return Version{}, false, fmt.Errorf("import at %s: %w (%s)", at.Format(time.RFC3339Nano), ErrOutOfOrder, last.At.Format(time.RFC3339Nano))
	}

	text, err := codec.Encode(patch.Diff(latest, g), codec.Zinc)
	if err != nil {
		return Version{}, false, fmt.Errorf("import: encode patch: %w", err)
	}
	v = Version{
		ID:   uuid.Must(uuid.NewV7()).String(),
		At:   at,
		Hash: contentHash(text),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO versions (id, at_nanos, at, content_hash, patch)
		VALUES (?, ?, ?, ?, ?)
	`,
		v.ID,
		at.UnixNano(),
		at.Format(time.RFC3339Nano),
		v.Hash,
		text,
	)
	if err != nil {
		return Version{}, false, fmt.Errorf("import: %w", err)
	}
	if v.Seq, err = res.LastInsertId(); err != nil {
		return Version{}, false, fmt.Errorf("import: %w", err)
	}
	slog.Debug("store import", "version", v.ID, "at", at, "rows", g.Len(), "hash", v.Hash)
	return v, true, nil
}

// ListVersions returns the stored versions, oldest first.
func (s *Store) ListVersions(ctx context.Context) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, at_nanos, content_hash
		FROM versions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []Version{}
	for rows.Next() {
		var (
			v     Version
			nanos int64
		)
		if err := rows.Scan(&v.Seq, &v.ID, &nanos, &v.Hash); err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		v.At = time.Unix(0, nanos).UTC()
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// FindVersion returns the version whose patch has the given content hash.
func (s *Store) FindVersion(ctx context.Context, hash string) (Version, bool, error) {
	var (
		v     Version
		nanos int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, at_nanos, content_hash
		FROM versions
		WHERE content_hash = ?
		ORDER BY seq ASC
		LIMIT 1
	`, hash).Scan(&v.Seq, &v.ID, &nanos, &v.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, false, nil
	}
	if err != nil {
		return Version{}, false, fmt.Errorf("find version: %w", err)
	}
	v.At = time.Unix(0, nanos).UTC()
	return v, true, nil
}

// Patch returns the decoded patch stored for version seq.
func (s *Store) Patch(ctx context.Context, seq int64) (*grid.Grid, error) {
	var text, hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT patch, content_hash FROM versions WHERE seq = ?
	`, seq).Scan(&text, &hash)
	if err != nil {
		return nil, fmt.Errorf("patch %d: %w", seq, err)
	}
	return decodePatch(seq, text, hash)
}

func decodePatch(seq int64, text, hash string) (*grid.Grid, error) {
	if contentHash(text) != hash {
		return nil, fmt.Errorf("patch %d: %w", seq, ErrCorrupt)
	}
	p, err := codec.Decode(text, codec.Zinc)
	if err != nil {
		return nil, fmt.Errorf("patch %d: %w", seq, err)
	}
	return p, nil
}

// replay rebuilds the entity grid as of version (the latest when zero) and
// returns it with the last version applied, nil when none is. The grid is
// shared with the cache and must not be modified.
func (s *Store) replay(ctx context.Context, version time.Time) (*grid.Grid, *Version, error) {
	limit := int64(1<<63 - 1)
	if !version.IsZero() {
		limit = version.UnixNano()
	}

	var (
		last  Version
		nanos int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, at_nanos, content_hash
		FROM versions
		WHERE at_nanos <= ?
		ORDER BY seq DESC
		LIMIT 1
	`, limit).Scan(&last.Seq, &last.ID, &nanos, &last.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return grid.New(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}
	last.At = time.Unix(0, nanos).UTC()

	if g, ok := s.snapshots.Get(last.Seq); ok {
		return g, &last, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, patch, content_hash
		FROM versions
		WHERE seq <= ?
		ORDER BY seq ASC
	`, last.Seq)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}
	defer rows.Close()

	g := grid.New()
	for rows.Next() {
		var (
			seq        int64
			text, hash string
		)
		if err := rows.Scan(&seq, &text, &hash); err != nil {
			return nil, nil, fmt.Errorf("replay: %w", err)
		}
		p, err := decodePatch(seq, text, hash)
		if err != nil {
			return nil, nil, fmt.Errorf("replay: %w", err)
		}
		if g, err = patch.Merge(g, p); err != nil {
			return nil, nil, fmt.Errorf("replay patch %d: %w", seq, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}

	// Readers share the cached grid; build its id index before publishing.
	g.Reindex()
	s.snapshots.Add(last.Seq, g)
	slog.Debug("store replayed", "version", last.ID, "seq", last.Seq, "rows", g.Len())
	return g, &last, nil
}
