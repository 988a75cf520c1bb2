package validate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// suffixes are checked in order; "bn" must precede "b".
var suffixes = []struct {
	suffix string
	mult   float64
}{
	{"bn", 1e9},
	{"b", 1e9},
	{"m", 1e6},
	{"k", 1e3},
}

// CoerceNumeric converts a free-form numeric value to float64. Strings may
// carry a currency sign, thousands separators, accounting parentheses for
// negatives and an M, B/BN or K unit suffix (case-insensitive). The second
// result is false when no finite number can be read.
func CoerceNumeric(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, ok := parseNumericString(t)
		if !ok {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "").Replace(s)
	s = strings.TrimSpace(s)

	mult := 1.0
	lower := strings.ToLower(s)
	for _, u := range suffixes {
		if strings.HasSuffix(lower, u.suffix) {
			s = strings.TrimSpace(s[:len(s)-len(u.suffix)])
			mult = u.mult
			break
		}
	}
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f * mult, true
}
