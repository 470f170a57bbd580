package payload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeColumnar(t *testing.T) {
	raw := map[string]any{
		"keys": []any{"id", "name"},
		"rows": []any{
			[]any{int64(1), "a"},
			[]any{int64(2), "b"},
		},
	}

	p, err := Decode(raw)
	require.NoError(t, err)

	c, ok := p.(Columnar)
	require.True(t, ok, "expected Columnar, got %T", p)
	assert.Equal(t, []string{"id", "name"}, c.Keys)
	assert.Len(t, c.Rows, 2)

	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "a"},
		{"id": int64(2), "name": "b"},
	}, p.Expand())
}

func TestDecodeColumnarGenericMap(t *testing.T) {
	raw := map[any]any{
		"keys": []any{"id"},
		"rows": []any{[]any{int64(7)}},
	}

	out, err := Uncompress(raw)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(7)}}, out)
}

func TestColumnarShortAndLongRows(t *testing.T) {
	c := Columnar{
		Keys: []string{"id", "name"},
		Rows: [][]any{{int64(1)}, {int64(2), "b", "extra"}},
	}

	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": nil},
		{"id": int64(2), "name": "b"},
	}, c.Expand())
}

func TestDecodePassthrough(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"scalar", "hello"},
		{"row list", []any{map[string]any{"id": int64(1)}}},
		{"object", map[string]any{"id": int64(1), "name": "x"}},
		{"keys only", map[string]any{"keys": []any{"a"}, "other": 1}},
		{"three fields", map[string]any{"keys": []any{}, "rows": []any{}, "x": 1}},
		{"non-string key", map[any]any{int64(1): "a", "rows": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.raw)
			require.NoError(t, err)
			r, ok := p.(Rows)
			require.True(t, ok, "expected Rows, got %T", p)
			assert.Equal(t, tt.raw, r.Expand())
		})
	}
}

func TestDecodeMalformedColumnar(t *testing.T) {
	_, err := Decode(map[string]any{"keys": []any{1}, "rows": []any{}})
	assert.True(t, errors.Is(err, ErrInvalidKeys))

	_, err = Decode(map[string]any{"keys": []any{"a"}, "rows": []any{"not a row"}})
	assert.True(t, errors.Is(err, ErrInvalidRows))
}

func TestDecodeEmptyColumnar(t *testing.T) {
	out, err := Uncompress(map[string]any{"keys": []any{"id"}, "rows": []any{}})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{}, out)
}
