package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDict_KeepsInsertionOrder(t *testing.T) {
	d := NewDict(P("z", N(1)), P("a", N(2)), P("m", N(3)))
	d.Set("a", N(20))
	d.Set("b", Marker{})

	assert.Equal(t, []string{"z", "a", "m", "b"}, d.Keys())
	v, _ := d.Get("a")
	assert.Equal(t, N(20), v)

	assert.True(t, d.Delete("a"))
	assert.False(t, d.Delete("a"))
	assert.Equal(t, []string{"z", "m", "b"}, d.Keys())
}

func TestDict_NilIsEmpty(t *testing.T) {
	var d *Dict
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.Has("x"))
	assert.Empty(t, d.Keys())
	for range d.All() {
		t.Fatal("nil dict must not yield")
	}
	assert.Equal(t, 0, d.Clone().Len())
}

func TestDict_CloneIsDeep(t *testing.T) {
	inner := NewDict(P("x", N(1)))
	d := NewDict(P("inner", inner), P("list", List{N(1)}))

	cp := d.Clone()
	inner.Set("x", N(2))

	v, _ := cp.Get("inner")
	x, _ := v.(*Dict).Get("x")
	assert.Equal(t, N(1), x)
}

func TestDict_NilValueIsNull(t *testing.T) {
	d := NewDict(P("a", nil))
	v, ok := d.Get("a")
	require.True(t, ok)
	assert.Equal(t, Null{}, v)
}

func TestDict_Without(t *testing.T) {
	d := NewDict(P("id", R("a")), P("remove_", Remove{}), P("v", N(1)))
	assert.Equal(t, []string{"id", "v"}, d.Without("remove_").Keys())
	assert.Equal(t, 3, d.Len())
}

func TestZones(t *testing.T) {
	tests := []struct {
		name string
		iana string
	}{
		{"Paris", "Europe/Paris"},
		{"New_York", "America/New_York"},
		{"GMT+5", "Etc/GMT+5"},
		{"GMT-3", "Etc/GMT-3"},
		{"Europe/Paris", "Europe/Paris"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadZone(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.iana, loc.String())
		})
	}

	loc, err := LoadZone("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadZone("Atlantis")
	assert.Error(t, err)
}

func TestZoneName(t *testing.T) {
	paris, err := LoadZone("Paris")
	require.NoError(t, err)

	assert.Equal(t, "Paris", ZoneName(paris))
	assert.Equal(t, "UTC", ZoneName(time.UTC))
	assert.Equal(t, "GMT-2", ZoneName(time.FixedZone("", 2*3600)))
	assert.Equal(t, "GMT+5", ZoneName(time.FixedZone("", -5*3600)))
	assert.Equal(t, "UTC", ZoneName(time.FixedZone("", 5400)))
}

func TestScalarStrings(t *testing.T) {
	assert.Equal(t, "2021-03-04", Date{2021, 3, 4}.String())
	assert.Equal(t, "07:08:09", Time{Hour: 7, Minute: 8, Second: 9}.String())
	assert.Equal(t, "07:08:09.5", Time{Hour: 7, Minute: 8, Second: 9, Nanosecond: 5e8}.String())
	assert.Equal(t, Date{2021, 3, 1}, Date{2021, 2, 28}.AddDays(1))

	paris, err := LoadZone("Paris")
	require.NoError(t, err)
	dt := DT(time.Date(2021, 1, 2, 3, 4, 5, 0, paris))
	assert.Equal(t, "2021-01-02T03:04:05+01:00 Paris", dt.String())
	assert.Equal(t, "2021-01-02T03:04:05Z UTC", DT(time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)).String())
}
