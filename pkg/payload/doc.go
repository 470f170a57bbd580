// Package payload normalizes wire payloads before they reach observers.
//
// The upstream may send a resource either as plain data (an object or a list
// of row objects) or in a columnar form that factors the field names out of
// every row:
//
//	{"keys": ["id", "name"], "rows": [[1, "a"], [2, "b"]]}
//
// Decode resolves the shape exactly once at the boundary and returns a tagged
// union (Columnar or Rows). Expand turns either variant into the data the
// observers consume; for Columnar this is one map per row.
package payload
