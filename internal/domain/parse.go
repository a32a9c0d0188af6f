package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// parseFloatOr parses s as a finite float64. ok is false on empty, invalid or
// non-finite input ("NaN", "Inf"), so a parsed zero is distinguishable from a
// failure.
func parseFloatOr(s string, def float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def, false
	}
	return v, true
}

// parseIntOr parses s as an integer. Values written with a fractional part
// ("10.0") are accepted when they are whole and fit in an int.
func parseIntOr(s string, def int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, ok := parseFloatOr(s, 0)
	if !ok || f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return def, false
	}
	return int(f), true
}

// parseCoordinate returns NaN when s is not a finite number.
func parseCoordinate(s string) float64 {
	v, _ := parseFloatOr(s, math.NaN())
	return v
}

// parseLocal parses value with layout in loc and returns the instant in UTC.
func parseLocal(layout, value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
