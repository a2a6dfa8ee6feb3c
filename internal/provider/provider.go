// Package provider defines the boundary between the grid core and the
// services that serve it: the operations a data source answers, the
// capability descriptor it advertises, and the helpers that build the
// standard answer grids.
//
// Providers are plain values. Whatever serves them (a CLI command, an HTTP
// handler) receives one explicitly and owns its lifecycle.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pprados/haystackapi/internal/grid"
)

var (
	// ErrUnsupportedRange is returned for a date range outside the
	// supported forms.
	ErrUnsupportedRange = errors.New("unsupported date range")
	// ErrUnsupportedOp is returned by a provider asked for an operation it
	// does not advertise.
	ErrUnsupportedOp = errors.New("operation not supported")
	// ErrNotFound is returned when an entity does not exist at the
	// requested version.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidLevel is returned for a priority level outside 1..17.
	ErrInvalidLevel = errors.New("invalid priority level")
)

// ReadRequest selects entities. When IDs is not empty, Filter and Limit are
// ignored. A zero Version reads the latest one.
type ReadRequest struct {
	Limit   int
	Select  string
	IDs     []grid.Ref
	Filter  string
	Version time.Time
}

// Provider answers the read side of the protocol. A zero version argument
// means the latest version.
type Provider interface {
	Name() string
	Capabilities() Capabilities

	Read(ctx context.Context, req ReadRequest) (*grid.Grid, error)
	// ValuesForTag returns the distinct values of tag, sorted.
	ValuesForTag(ctx context.Context, tag string, version time.Time) ([]grid.Value, error)
	// Versions returns the version instants, oldest first.
	Versions(ctx context.Context) ([]time.Time, error)
	HisRead(ctx context.Context, ref grid.Ref, r DateRange, version time.Time) (*grid.Grid, error)
	PointWriteRead(ctx context.Context, ref grid.Ref, version time.Time) (*grid.Grid, error)
}

// Op is one protocol operation. Ops combine as a bit set.
type Op uint16

const (
	OpAbout Op = 1 << iota
	OpOps
	OpFormats
	OpRead
	OpNav
	OpWatchSub
	OpWatchUnsub
	OpWatchPoll
	OpPointWrite
	OpHisRead
	OpHisWrite
	OpInvokeAction
)

var allOps = []Op{
	OpAbout, OpOps, OpFormats, OpRead, OpNav, OpWatchSub, OpWatchUnsub,
	OpWatchPoll, OpPointWrite, OpHisRead, OpHisWrite, OpInvokeAction,
}

var opInfo = map[Op]struct{ name, summary string }{
	OpAbout:   {"about", "Summary information for server"},
	OpOps:     {"ops", "Operations supported by this server"},
	OpFormats: {"formats", "Grid data formats supported by this server"},
	OpRead: {"read", "The read op is used to read a set of entity records either by their " +
		"unique identifier or using a filter."},
	OpNav:        {"nav", "The nav op is used navigate a project for learning and discovery"},
	OpWatchSub:   {"watchSub", "The watch_sub operation is used to create new watches or add entities to an existing watch."},
	OpWatchUnsub: {"watchUnsub", "The watch_unsub operation is used to close a watch entirely or remove entities from a watch."},
	OpWatchPoll:  {"watchPoll", "The watch_poll operation is used to poll a watch for changes to the subscribed entity records."},
	OpPointWrite: {"pointWrite", "The point_write_read op is used to: read the current status of a " +
		"writable point's priority array or write to a given level"},
	OpHisRead:      {"hisRead", "The his_read op is used to read a time-series data from historized point."},
	OpHisWrite:     {"hisWrite", "The his_write op is used to post new time-series data to a historized point."},
	OpInvokeAction: {"invokeAction", "The invoke_action op is used to invoke a user action on a target record."},
}

// String returns the protocol name of a single op.
func (o Op) String() string {
	if info, ok := opInfo[o]; ok {
		return info.name
	}
	return "unknown"
}

// Summary returns the one-line description listed by the ops operation.
func (o Op) Summary() string {
	return opInfo[o].summary
}

// ParseOp resolves a protocol op name, case-insensitively. Snake case
// names ("his_read") are accepted too.
func ParseOp(name string) (Op, bool) {
	norm := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	for _, op := range allOps {
		if strings.ToLower(op.String()) == norm {
			return op, true
		}
	}
	return 0, false
}

// Capabilities is the static set of operations a provider implements.
// About, ops and formats are answered by this package for every provider
// and are always included.
type Capabilities struct {
	set Op
}

// Declare returns the capabilities holding ops plus the always-present
// ones.
func Declare(ops ...Op) Capabilities {
	c := Capabilities{set: OpAbout | OpOps | OpFormats}
	for _, op := range ops {
		c.set |= op
	}
	return c
}

// Has reports whether op is implemented.
func (c Capabilities) Has(op Op) bool {
	return c.set&op == op
}

// Ops lists the implemented operations in protocol order.
func (c Capabilities) Ops() []Op {
	ops := []Op{}
	for _, op := range allOps {
		if c.Has(op) {
			ops = append(ops, op)
		}
	}
	return ops
}
