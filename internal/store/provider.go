package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/provider"
)

var _ provider.Provider = (*Store)(nil)

func (s *Store) Name() string { return s.name }

func (s *Store) Capabilities() provider.Capabilities {
	return provider.Declare(provider.OpRead, provider.OpHisRead, provider.OpPointWrite)
}

func (s *Store) Read(ctx context.Context, req provider.ReadRequest) (*grid.Grid, error) {
	g, _, err := s.replay(ctx, req.Version)
	if err != nil {
		return nil, err
	}
	return provider.ReadGrid(g, req)
}

func (s *Store) ValuesForTag(ctx context.Context, tag string, version time.Time) ([]grid.Value, error) {
	g, _, err := s.replay(ctx, version)
	if err != nil {
		return nil, err
	}
	return provider.TagValues(g, tag), nil
}

func (s *Store) Versions(ctx context.Context) ([]time.Time, error) {
	versions, err := s.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(versions))
	for i, v := range versions {
		out[i] = v.At
	}
	return out, nil
}

func (s *Store) HisRead(ctx context.Context, ref grid.Ref, r provider.DateRange, version time.Time) (*grid.Grid, error) {
	if err := s.requireEntity(ctx, ref, version); err != nil {
		return nil, fmt.Errorf("his read %s: %w", ref, err)
	}

	lo, hi := int64(-1<<63), int64(1<<63-1)
	if !r.Start.IsZero() {
		lo = r.Start.UnixNano()
	}
	if !r.End.IsZero() {
		hi = r.End.UnixNano()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sample FROM histories
		WHERE entity_id = ? AND ts_nanos BETWEEN ? AND ?
		ORDER BY ts_nanos ASC
	`, ref.ID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("his read %s: %w", ref, err)
	}
	defer rows.Close()

	series := grid.New()
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("his read %s: %w", ref, err)
		}
		v, err := codec.DecodeScalar(text, codec.Zinc, grid.LatestVersion)
		if err != nil {
			return nil, fmt.Errorf("his read %s: %w", ref, err)
		}
		sample, ok := v.(*grid.Dict)
		if !ok {
			return nil, fmt.Errorf("his read %s: sample is %s, not dict", ref, v.Kind())
		}
		if err := series.Append(sample); err != nil {
			return nil, fmt.Errorf("his read %s: %w", ref, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("his read %s: %w", ref, err)
	}
	series.ExtendColumns()
	return provider.HisGrid(ref, series, r), nil
}

func (s *Store) PointWriteRead(ctx context.Context, ref grid.Ref, version time.Time) (*grid.Grid, error) {
	if err := s.requireEntity(ctx, ref, version); err != nil {
		return nil, fmt.Errorf("point write read %s: %w", ref, err)
	}
	pa, err := s.priorityArray(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("point write read %s: %w", ref, err)
	}
	return pa.Grid(), nil
}

func (s *Store) requireEntity(ctx context.Context, ref grid.Ref, version time.Time) error {
	g, _, err := s.replay(ctx, version)
	if err != nil {
		return err
	}
	if !g.Has(ref) {
		return provider.ErrNotFound
	}
	return nil
}
