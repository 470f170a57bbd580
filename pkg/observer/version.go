package observer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ParseVersionNumber converts a version field to a number. Missing,
// non-numeric and non-finite values are 0.
func ParseVersionNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// VersionGuard returns incoming unless current carries a higher version in
// attr, in which case it returns empty fields. An empty attr disables the
// guard.
func VersionGuard(attr string, current, incoming Fields) Fields {
	if attr == "" || incoming == nil {
		return incoming
	}
	if ParseVersionNumber(current[attr]) > ParseVersionNumber(incoming[attr]) {
		return Fields{}
	}
	return incoming
}

// IncrementVersion bumps the version in attr ahead of a local write.
func IncrementVersion(attr string, fields Fields) {
	if attr == "" || fields == nil {
		return
	}
	next := ParseVersionNumber(fields[attr]) + 1
	if next == math.Trunc(next) && math.Abs(next) < 1<<53 {
		fields[attr] = int64(next)
		return
	}
	fields[attr] = next
}

// SameID compares two record identities the way loosely typed upstream
// data needs: numbers compare by value across types and against numeric
// strings; everything else compares by its printed form.
func SameID(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := numeric(a)
	bf, bNum := numeric(b)
	if aNum && bNum {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return ParseVersionNumber(v), true
	}
	return 0, false
}
