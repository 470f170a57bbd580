package observer

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"int", 5, 5},
		{"int64", int64(7), 7},
		{"uint64", uint64(9), 9},
		{"float", 2.5, 2.5},
		{"numeric string", "12", 12},
		{"json number", json.Number("3"), 3},
		{"word", "abc", 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"bool", true, 0},
		{"map", map[string]any{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVersionNumber(tt.in))
		})
	}
}

func TestVersionGuard(t *testing.T) {
	current := Fields{"v": int64(5)}

	assert.Equal(t, Fields{}, VersionGuard("v", current, Fields{"v": int64(3), "x": 1}))
	assert.Equal(t, Fields{"v": int64(5), "x": 1}, VersionGuard("v", current, Fields{"v": int64(5), "x": 1}))
	assert.Equal(t, Fields{"v": int64(6)}, VersionGuard("v", current, Fields{"v": int64(6)}))
	assert.Equal(t, Fields{"x": 1}, VersionGuard("", current, Fields{"x": 1}), "no attribute disables the guard")
	assert.Equal(t, Fields{}, VersionGuard("v", current, Fields{"x": 1}), "missing incoming version counts as 0")
	assert.Equal(t, Fields{"x": 1}, VersionGuard("v", Fields{}, Fields{"x": 1}))
}

func TestIncrementVersion(t *testing.T) {
	f := Fields{}
	IncrementVersion("v", f)
	assert.Equal(t, int64(1), f["v"])

	IncrementVersion("v", f)
	assert.Equal(t, int64(2), f["v"])

	f["v"] = "junk"
	IncrementVersion("v", f)
	assert.Equal(t, int64(1), f["v"])

	f["v"] = 1.5
	IncrementVersion("v", f)
	assert.Equal(t, 2.5, f["v"])

	g := Fields{"x": 1}
	IncrementVersion("", g)
	assert.Equal(t, Fields{"x": 1}, g)
}

func TestSameID(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{int64(1), int64(1), true},
		{int64(1), 1.0, true},
		{int64(1), "1", true},
		{"a", "a", true},
		{"a", "b", false},
		{int64(1), int64(2), false},
		{nil, nil, true},
		{nil, int64(0), false},
		{int64(0), "", false},
		{true, "true", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SameID(tt.a, tt.b), "SameID(%#v, %#v)", tt.a, tt.b)
	}
}

func TestNewClientID(t *testing.T) {
	a := NewClientID("list")
	b := NewClientID("list")
	assert.True(t, strings.HasPrefix(a, "list"))
	assert.Len(t, a, len("list")+26)
	assert.NotEqual(t, a, b)
}

func TestDoc(t *testing.T) {
	var events []Event
	d := NewDoc("/users/1", Options{Precache: true, VersionAttribute: "version", Watch: func(ev Event) {
		events = append(events, ev)
	}})
	assert.Equal(t, "/users/1", d.URL())
	assert.True(t, d.Precache())
	assert.NotEmpty(t, d.ClientID())

	f, err := d.Parse(map[string]any{"name": "ada", "version": int64(2)})
	require.NoError(t, err)
	d.Reset(f)
	assert.Equal(t, "ada", d.Get("name"))

	stale, err := d.Parse(map[string]any{"name": "old", "version": int64(1)})
	require.NoError(t, err)
	assert.Empty(t, stale)

	_, err = d.Parse([]any{1, 2})
	assert.ErrorIs(t, err, ErrUnexpectedShape)

	empty, err := d.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	d.Set(Fields{"role": "admin"})
	d.IncrementVersion()
	assert.Equal(t, Fields{"name": "ada", "role": "admin", "version": int64(3)}, d.Fields())
	assert.Equal(t, []Event{EventReset, EventSet}, events)
}

func TestListParse(t *testing.T) {
	l := NewList("/items", Options{})
	assert.Equal(t, DefaultIDAttribute, l.IDAttribute())

	recs, err := l.Parse([]any{map[string]any{"id": int64(1)}, map[any]any{"id": int64(2)}})
	require.NoError(t, err)
	assert.Equal(t, []Fields{{"id": int64(1)}, {"id": int64(2)}}, recs)

	recs, err = l.Parse([]map[string]any{{"id": "a"}})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = l.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = l.Parse(map[string]any{"id": 1})
	assert.ErrorIs(t, err, ErrUnexpectedShape)

	_, err = l.Parse([]any{"scalar"})
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestListResetAndMembers(t *testing.T) {
	l := NewList("/items", Options{IDAttribute: "key", VersionAttribute: "v"})
	l.Reset([]Fields{{"key": "a", "v": int64(5)}, {"key": "b"}})

	require.Equal(t, 2, l.Len())
	members := l.Members()
	assert.Equal(t, "a", members[0].ID())
	assert.Equal(t, "b", members[1].ID())

	assert.Empty(t, members[0].Parse(Fields{"key": "a", "v": int64(3)}))
	members[1].Set(members[1].Parse(Fields{"key": "b", "name": "bee"}))
	assert.Equal(t, "bee", l.Items()[1].Get("name"))

	l.Synced(nil)
	assert.Equal(t, 1, l.Resets())
	assert.Equal(t, 1, l.Syncs())
}

func TestListResetCopiesRecords(t *testing.T) {
	l := NewList("/items", Options{})
	rec := Fields{"id": int64(1), "n": "x"}
	l.Reset([]Fields{rec})
	rec["n"] = "changed"
	assert.Equal(t, "x", l.Items()[0].Get("n"))
}
