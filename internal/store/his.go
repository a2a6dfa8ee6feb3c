package store

import (
	"context"
	"fmt"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/provider"
)

// ImportHistory stores the rows of series as samples of ref. Each row must
// carry a DateTime "ts"; a sample at an instant already stored replaces it.
func (s *Store) ImportHistory(ctx context.Context, ref grid.Ref, series *grid.Grid) error {
	if err := provider.ValidateSeries(series); err != nil {
		return fmt.Errorf("import history %s: %w", ref, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import history %s: begin tx: %w", ref, err)
	}
	defer tx.Rollback() // No-op if committed

	for _, row := range series.All() {
		ts, _ := row.Get("ts")
		text, err := codec.EncodeScalar(row, codec.Zinc, grid.LatestVersion)
		if err != nil {
			return fmt.Errorf("import history %s: %w", ref, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO histories (entity_id, ts_nanos, sample)
			VALUES (?, ?, ?)
			ON CONFLICT(entity_id, ts_nanos) DO UPDATE SET sample = excluded.sample
		`, ref.ID, ts.(grid.DateTime).UnixNano(), text)
		if err != nil {
			return fmt.Errorf("import history %s: %w", ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import history %s: commit: %w", ref, err)
	}
	return nil
}

// WritePoint sets level (1..17) of the priority array of ref. A nil or
// Null val relinquishes the level.
func (s *Store) WritePoint(ctx context.Context, ref grid.Ref, level int, val grid.Value, who string) error {
	var pa provider.PriorityArray
	if err := pa.Write(level, val, who); err != nil {
		return fmt.Errorf("write point %s: %w", ref, err)
	}

	if pa[level-1].Val == nil {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM point_writes WHERE entity_id = ? AND level = ?
		`, ref.ID, level)
		if err != nil {
			return fmt.Errorf("write point %s: %w", ref, err)
		}
		return nil
	}

	text, err := codec.EncodeScalar(val, codec.Zinc, grid.LatestVersion)
	if err != nil {
		return fmt.Errorf("write point %s: %w", ref, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO point_writes (entity_id, level, val, who)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, level) DO UPDATE SET val = excluded.val, who = excluded.who
	`, ref.ID, level, text, who)
	if err != nil {
		return fmt.Errorf("write point %s: %w", ref, err)
	}
	return nil
}

func (s *Store) priorityArray(ctx context.Context, ref grid.Ref) (*provider.PriorityArray, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, val, who FROM point_writes
		WHERE entity_id = ?
		ORDER BY level ASC
	`, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pa := &provider.PriorityArray{}
	for rows.Next() {
		var (
			level     int
			text, who string
		)
		if err := rows.Scan(&level, &text, &who); err != nil {
			return nil, err
		}
		v, err := codec.DecodeScalar(text, codec.Zinc, grid.LatestVersion)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", level, err)
		}
		if err := pa.Write(level, v, who); err != nil {
			return nil, err
		}
	}
	return pa, rows.Err()
}
