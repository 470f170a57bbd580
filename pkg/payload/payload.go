package payload

import (
	"errors"
	"fmt"
)

// Columnar field names.
const (
	KeysField = "keys"
	RowsField = "rows"
)

// Payload errors.
var (
	ErrInvalidKeys = errors.New("columnar payload: keys must be a list of strings")
	ErrInvalidRows = errors.New("columnar payload: rows must be a list of lists")
)

// Payload is a decoded wire payload: either Columnar or Rows.
type Payload interface {
	// Expand returns the observer-ready representation of the payload.
	Expand() any

	isPayload()
}

// Columnar is the compressed {keys, rows} encoding.
type Columnar struct {
	Keys []string
	Rows [][]any
}

// Rows is any payload that is not columnar. It is passed through unchanged.
type Rows struct {
	Data any
}

func (Columnar) isPayload() {}
func (Rows) isPayload()     {}

// Expand zips every row with the key list. Missing trailing cells become nil,
// surplus cells are dropped.
func (c Columnar) Expand() any {
	out := make([]map[string]any, 0, len(c.Rows))
	for _, row := range c.Rows {
		rec := make(map[string]any, len(c.Keys))
		for i, k := range c.Keys {
			if i < len(row) {
				rec[k] = row[i]
			} else {
				rec[k] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

// Expand returns the data as-is.
func (r Rows) Expand() any {
	return r.Data
}

// Decode classifies raw. A map whose key set is exactly {keys, rows} is
// columnar; everything else is Rows. A columnar-shaped map with malformed
// contents is an error rather than silently passed through.
func Decode(raw any) (Payload, error) {
	m, ok := asStringMap(raw)
	if !ok || len(m) != 2 {
		return Rows{Data: raw}, nil
	}
	rawKeys, hasKeys := m[KeysField]
	rawRows, hasRows := m[RowsField]
	if !hasKeys || !hasRows {
		return Rows{Data: raw}, nil
	}

	keys, err := decodeKeys(rawKeys)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(rawRows)
	if err != nil {
		return nil, err
	}
	return Columnar{Keys: keys, Rows: rows}, nil
}

// Uncompress is Decode followed by Expand.
func Uncompress(raw any) (any, error) {
	p, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return p.Expand(), nil
}

func decodeKeys(v any) ([]string, error) {
	switch ks := v.(type) {
	case []string:
		return ks, nil
	case []any:
		keys := make([]string, len(ks))
		for i, k := range ks {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrInvalidKeys, i, k)
			}
			keys[i] = s
		}
		return keys, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidKeys, v)
	}
}

func decodeRows(v any) ([][]any, error) {
	switch rs := v.(type) {
	case [][]any:
		return rs, nil
	case []any:
		rows := make([][]any, len(rs))
		for i, r := range rs {
			row, ok := r.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: row %d is %T", ErrInvalidRows, i, r)
			}
			rows[i] = row
		}
		return rows, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidRows, v)
	}
}

// asStringMap accepts both map[string]any (JSON and the wire decoder) and
// map[any]any (generic CBOR) as long as every key is a string.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = val
		}
		return out, true
	default:
		return nil, false
	}
}
