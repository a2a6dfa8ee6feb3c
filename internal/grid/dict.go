package grid

import (
	"iter"
	"slices"
)

// Dict is an insertion-ordered mapping of tag name to Value.
// It serves as row, nested dict scalar, grid metadata and column metadata.
//
// Read methods are safe on a nil *Dict and behave as on an empty one.
type Dict struct {
	keys []string
	vals map[string]Value
}

func (*Dict) Kind() Kind { return KindDict }
func (*Dict) value()     {}

// Pair is a tag/value pair for ordered Dict construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewDict(P("id", R("a")), P("site", Marker{}))
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewDict builds a Dict from pairs, keeping their order. A repeated key
// keeps its first position and its last value.
func NewDict(pairs ...Pair) *Dict {
	d := &Dict{vals: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		d.Set(p.Key, p.Value)
	}
	return d
}

// Len returns the number of tags.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get returns the value of tag k.
func (d *Dict) Get(k string) (Value, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.vals[k]
	return v, ok
}

// Has reports whether tag k is present.
func (d *Dict) Has(k string) bool {
	_, ok := d.Get(k)
	return ok
}

// Set assigns v to tag k, appending k when it is new.
func (d *Dict) Set(k string, v Value) {
	if d.vals == nil {
		d.vals = make(map[string]Value)
	}
	if _, ok := d.vals[k]; !ok {
		d.keys = append(d.keys, k)
	}
	if v == nil {
		v = Null{}
	}
	d.vals[k] = v
}

// Delete removes tag k and reports whether it was present.
func (d *Dict) Delete(k string) bool {
	if d == nil {
		return false
	}
	if _, ok := d.vals[k]; !ok {
		return false
	}
	delete(d.vals, k)
	d.keys = slices.DeleteFunc(d.keys, func(s string) bool { return s == k })
	return true
}

// Keys returns the tag names in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return []string{}
	}
	return slices.Clone(d.keys)
}

// All iterates tags in insertion order.
func (d *Dict) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for _, k := range d.keys {
			if !yield(k, d.vals[k]) {
				return
			}
		}
	}
}

// Clone returns a deep copy of d.
func (d *Dict) Clone() *Dict {
	out := &Dict{vals: make(map[string]Value, d.Len())}
	for k, v := range d.All() {
		out.Set(k, CloneValue(v))
	}
	return out
}

// ID returns the "id" tag when it holds a Ref.
func (d *Dict) ID() (Ref, bool) {
	v, ok := d.Get("id")
	if !ok {
		return Ref{}, false
	}
	ref, ok := v.(Ref)
	return ref, ok
}

// Without returns a copy of d minus the given tags.
func (d *Dict) Without(tags ...string) *Dict {
	out := NewDict()
	for k, v := range d.All() {
		if !slices.Contains(tags, k) {
			out.Set(k, v)
		}
	}
	return out
}
