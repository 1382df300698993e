package farm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ExtractInt normalizes an interval value from the shapes datastores hand
// back for JSON numbers.
//
// Realtime Database decodes numbers as float64, pgx JSON as float64 or
// json.Number, and hand-entered records sometimes carry numeric strings.
// Fractional values are rejected.
//
// Returns ok=false if not extractable.
func ExtractInt(val any) (int, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
