package filter

import (
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pprados/haystackapi/internal/grid"
)

// DefaultCacheSize bounds the process-wide filter caches.
const DefaultCacheSize = 500

var (
	asts       *lru.Cache[string, *AST]
	predicates *lru.Cache[string, grid.Predicate]
	compiling  singleflight.Group
)

func init() {
	var err error
	asts, err = lru.New[string, *AST](DefaultCacheSize)
	if err != nil {
		panic(err)
	}
	predicates, err = lru.NewWithEvict(DefaultCacheSize, func(text string, _ grid.Predicate) {
		slog.Debug("filter predicate evicted", "filter", text)
	})
	if err != nil {
		panic(err)
	}
}

// SetCacheSize changes the capacity of the parsed and compiled filter
// caches, evicting the least recently used entries when shrinking.
func SetCacheSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("filter cache size must be positive, got %d", n)
	}
	evicted := asts.Resize(n) + predicates.Resize(n)
	slog.Debug("filter cache resized", "size", n, "evicted", evicted)
	return nil
}

// CacheLen returns the number of compiled predicates held.
func CacheLen() int {
	return predicates.Len()
}

// Parse returns the AST of text, parsing it at most once while it stays
// cached.
func Parse(text string) (*AST, error) {
	if a, ok := asts.Get(text); ok {
		return a, nil
	}
	a, err := parse(text)
	if err != nil {
		return nil, err
	}
	asts.Add(text, a)
	return a, nil
}

// Validate checks text against the filter grammar.
func Validate(text string) error {
	_, err := Parse(text)
	return err
}

// Func returns the compiled predicate for text. Concurrent callers asking
// for the same uncached text share one compilation.
func Func(text string) (grid.Predicate, error) {
	if p, ok := predicates.Get(text); ok {
		return p, nil
	}
	v, err, _ := compiling.Do(text, func() (any, error) {
		if p, ok := predicates.Get(text); ok {
			return p, nil
		}
		a, err := Parse(text)
		if err != nil {
			return nil, err
		}
		p := Compile(a)
		predicates.Add(text, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(grid.Predicate), nil
}

// Apply returns the rows of g matching text, at most limit of them when
// limit > 0. Blank text with no limit returns g itself, not a copy.
func Apply(g *grid.Grid, text string, limit int) (*grid.Grid, error) {
	if strings.TrimSpace(text) == "" {
		if limit <= 0 {
			return g, nil
		}
		return g.Slice(0, limit), nil
	}
	pred, err := Func(text)
	if err != nil {
		return nil, err
	}
	return g.Select(pred, limit), nil
}
