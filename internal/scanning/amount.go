package scanning

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const unknownValue = "unknown"

// Amount is a numeric receipt field that the model may report as "unknown".
// It decodes from JSON numbers, numeric strings and null, and encodes back to
// "unknown" when no value was read.
type Amount struct {
	Value float64
	Known bool
}

// KnownAmount returns an Amount holding v
func KnownAmount(v float64) Amount {
	return Amount{Value: v, Known: true}
}

// Float returns the value, or 0 when it is unknown or not finite
func (a Amount) Float() float64 {
	if !a.Known || math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
		return 0
	}
	return a.Value
}

// UnmarshalJSON never fails on a well-formed JSON value; anything that is not
// a readable number leaves the Amount unknown.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, ok := parseNumber(s); ok {
			*a = KnownAmount(v)
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		// Objects, arrays and booleans are not amounts.
		return nil
	}
	*a = KnownAmount(v)
	return nil
}

// MarshalJSON writes the number, or "unknown"
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Known {
		return json.Marshal(unknownValue)
	}
	return json.Marshal(a.Float())
}

// parseNumber reads numbers the way receipts print them: "1,200", "¥1,200", "1200円"
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, unknownValue) {
		return 0, false
	}
	s = strings.NewReplacer(",", "", "，", "", "¥", "", "￥", "", "円", "", "$", "").Replace(s)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
