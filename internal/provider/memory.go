package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pprados/haystackapi/internal/grid"
)

type snapshot struct {
	at      time.Time
	entries *grid.Grid
}

// Memory is an in-memory versioned provider. Each version is a full grid
// of entities; histories and priority arrays are kept per entity id and are
// not versioned. It is safe for concurrent use.
type Memory struct {
	name string

	mu        sync.RWMutex
	snapshots []snapshot // oldest first
	his       map[string]*grid.Grid
	points    map[string]*PriorityArray
}

// NewMemory returns an empty provider.
func NewMemory(name string) *Memory {
	return &Memory{
		name:   name,
		his:    make(map[string]*grid.Grid),
		points: make(map[string]*PriorityArray),
	}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Capabilities() Capabilities {
	return Declare(OpRead, OpHisRead, OpPointWrite)
}

// AddVersion records a copy of g as the entities at instant at. A version
// at an instant already recorded replaces it.
func (m *Memory) AddVersion(at time.Time, g *grid.Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := g.Copy()
	// Readers share the snapshot, so the lazy id index is built up front.
	entries.Reindex()
	snap := snapshot{at: at, entries: entries}
	i, found := slices.BinarySearchFunc(m.snapshots, at, func(s snapshot, t time.Time) int {
		return s.at.Compare(t)
	})
	if found {
		m.snapshots[i] = snap
	} else {
		m.snapshots = slices.Insert(m.snapshots, i, snap)
	}
	slog.Debug("memory version added", "provider", m.name, "at", at, "rows", g.Len())
}

// AppendHistory adds rows to the series of ref.
func (m *Memory) AppendHistory(ref grid.Ref, series *grid.Grid) error {
	if err := ValidateSeries(series); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.his[ref.ID]
	if !ok {
		cur = grid.New()
		m.his[ref.ID] = cur
	}
	for _, row := range series.All() {
		if err := cur.Append(row.Clone()); err != nil {
			return fmt.Errorf("history of %s: %w", ref, err)
		}
	}
	cur.ExtendColumns()
	return nil
}

// WritePoint sets a level of the priority array of ref.
func (m *Memory) WritePoint(ref grid.Ref, level int, val grid.Value, who string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pa, ok := m.points[ref.ID]
	if !ok {
		pa = &PriorityArray{}
		m.points[ref.ID] = pa
	}
	return pa.Write(level, val, who)
}

// at returns the entities as of version, the latest when version is zero.
// The caller holds the read lock.
func (m *Memory) at(version time.Time) *grid.Grid {
	if len(m.snapshots) == 0 {
		return grid.New()
	}
	if version.IsZero() {
		return m.snapshots[len(m.snapshots)-1].entries
	}
	i, found := slices.BinarySearchFunc(m.snapshots, version, func(s snapshot, t time.Time) int {
		return s.at.Compare(t)
	})
	if found {
		return m.snapshots[i].entries
	}
	if i == 0 {
		return grid.New()
	}
	return m.snapshots[i-1].entries
}

func (m *Memory) Read(ctx context.Context, req ReadRequest) (*grid.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ReadGrid(m.at(req.Version), req)
}

func (m *Memory) ValuesForTag(ctx context.Context, tag string, version time.Time) ([]grid.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return TagValues(m.at(version), tag), nil
}

func (m *Memory) Versions(ctx context.Context) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := make([]time.Time, len(m.snapshots))
	for i, s := range m.snapshots {
		versions[i] = s.at
	}
	return versions, nil
}

func (m *Memory) HisRead(ctx context.Context, ref grid.Ref, r DateRange, version time.Time) (*grid.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.at(version).Has(ref) {
		return nil, fmt.Errorf("his read %s: %w", ref, ErrNotFound)
	}
	return HisGrid(ref, m.his[ref.ID], r), nil
}

func (m *Memory) PointWriteRead(ctx context.Context, ref grid.Ref, version time.Time) (*grid.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.at(version).Has(ref) {
		return nil, fmt.Errorf("point write read %s: %w", ref, ErrNotFound)
	}
	pa, ok := m.points[ref.ID]
	if !ok {
		pa = &PriorityArray{}
	}
	return pa.Grid(), nil
}
