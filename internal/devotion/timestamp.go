package devotion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a store-assigned write time as it was decoded: epoch
// milliseconds as a number or numeric string, a native store time, or absent.
// The raw form is kept so legacy payloads round-trip unchanged.
type Timestamp struct {
	raw any
}

// TimestampFromMillis wraps epoch milliseconds.
func TimestampFromMillis(ms int64) Timestamp {
	return Timestamp{raw: float64(ms)}
}

// TimestampFromTime wraps a native time.
func TimestampFromTime(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{raw: t}
}

// TimestampOf normalises a decoded store value into a Timestamp.
func TimestampOf(v any) Timestamp {
	switch x := v.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return x
	case int:
		return Timestamp{raw: float64(x)}
	case int32:
		return Timestamp{raw: float64(x)}
	case int64:
		return Timestamp{raw: float64(x)}
	case float32:
		return Timestamp{raw: float64(x)}
	case float64:
		return Timestamp{raw: x}
	case json.Number:
		return Timestamp{raw: string(x)}
	case string:
		if x == "" {
			return Timestamp{}
		}
		return Timestamp{raw: x}
	case time.Time:
		return TimestampFromTime(x)
	case *time.Time:
		if x == nil {
			return Timestamp{}
		}
		return TimestampFromTime(*x)
	default:
		return Timestamp{raw: x}
	}
}

// IsZero reports whether the timestamp is absent.
func (t Timestamp) IsZero() bool {
	return t.raw == nil
}

// Millis coerces the timestamp to epoch milliseconds. ok is false when the
// timestamp is absent; a present value that is not numeric yields NaN.
// Strings follow the web client's numeric coercion, see parseNumber.
func (t Timestamp) Millis() (ms float64, ok bool) {
	switch x := t.raw.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case string:
		return parseNumber(x), true
	case time.Time:
		return float64(x.UnixMilli()), true
	default:
		return math.NaN(), true
	}
}

// Time returns the timestamp as a time, when it coerces to a finite number.
func (t Timestamp) Time() (time.Time, bool) {
	ms, ok := t.Millis()
	if !ok || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// MarshalJSON renders numbers and native times as epoch milliseconds and
// keeps strings as they were stored.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch x := t.raw.(type) {
	case nil:
		return []byte("null"), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(x, 'f', -1, 64)), nil
	case string:
		return json.Marshal(x)
	case time.Time:
		return []byte(strconv.FormatInt(x.UnixMilli(), 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a number or a string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*t = Timestamp{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TimestampOf(s)
		return nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be a number or string: %w", err)
	}
	*t = Timestamp{raw: v}
	return nil
}

// parseNumber converts a string the way the web client coerced stored
// values: surrounding whitespace is ignored and a blank string is 0,
// unsigned 0x, 0o and 0b prefixes select a base, only the exact spelling
// "Infinity" is infinite, and overflow saturates to ±Inf. Everything else
// that is not a decimal literal is NaN.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			digits := s[2:]
			if strings.ContainsRune(digits, '_') {
				return math.NaN()
			}
			n, err := strconv.ParseUint(digits, base, 64)
			if err != nil {
				if errors.Is(err, strconv.ErrRange) {
					return parseBigInt(digits, base)
				}
				return math.NaN()
			}
			return float64(n)
		}
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	// ParseFloat also takes inf, nan, underscores and hex floats.
	if strings.IndexFunc(s, notDecimal) >= 0 {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

func notDecimal(r rune) bool {
	return !strings.ContainsRune("0123456789+-.eE", r)
}

func parseBigInt(digits string, base int) float64 {
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return math.NaN()
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f
}
