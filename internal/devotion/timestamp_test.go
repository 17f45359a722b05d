package devotion

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestTimestampMillis(t *testing.T) {
	native := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		value  any
		wantMs float64
		wantOK bool
		wantNa bool
	}{
		{name: "absent", value: nil, wantOK: false},
		{name: "empty string", value: "", wantOK: false},
		{name: "int64", value: int64(1700000000000), wantMs: 1700000000000, wantOK: true},
		{name: "float", value: float64(1700000000000), wantMs: 1700000000000, wantOK: true},
		{name: "numeric string", value: "1700000000000", wantMs: 1700000000000, wantOK: true},
		{name: "padded string", value: " 1700000000000 ", wantMs: 1700000000000, wantOK: true},
		{name: "json number", value: json.Number("42"), wantMs: 42, wantOK: true},
		{name: "native time", value: native, wantMs: float64(native.UnixMilli()), wantOK: true},
		{name: "native time pointer", value: &native, wantMs: float64(native.UnixMilli()), wantOK: true},
		{name: "garbage string", value: "yesterday", wantOK: true, wantNa: true},
		{name: "unsupported type", value: []int{1}, wantOK: true, wantNa: true},
		{name: "blank string", value: "   ", wantMs: 0, wantOK: true},
		{name: "hex string", value: "0x1A", wantMs: 26, wantOK: true},
		{name: "octal string", value: "0o17", wantMs: 15, wantOK: true},
		{name: "binary string", value: "0b101", wantMs: 5, wantOK: true},
		{name: "signed hex string", value: "-0x1A", wantOK: true, wantNa: true},
		{name: "hex float string", value: "0x1p4", wantOK: true, wantNa: true},
		{name: "underscore digits", value: "1_000", wantOK: true, wantNa: true},
		{name: "exponent string", value: "1.7e12", wantMs: 1.7e12, wantOK: true},
		{name: "Infinity", value: "Infinity", wantMs: math.Inf(1), wantOK: true},
		{name: "negative Infinity", value: "-Infinity", wantMs: math.Inf(-1), wantOK: true},
		{name: "inf", value: "inf", wantOK: true, wantNa: true},
		{name: "lowercase infinity", value: "infinity", wantOK: true, wantNa: true},
		{name: "nan", value: "NaN", wantOK: true, wantNa: true},
		{name: "overflow string", value: "1e400", wantMs: math.Inf(1), wantOK: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ms, ok := TimestampOf(tc.value).Millis()
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if !ok {
				return
			}
			if tc.wantNa {
				if !math.IsNaN(ms) {
					t.Fatalf("expected NaN, got %v", ms)
				}
				return
			}
			if ms != tc.wantMs {
				t.Fatalf("expected %v, got %v", tc.wantMs, ms)
			}
		})
	}
}

func TestTimestampZeroTimeIsAbsent(t *testing.T) {
	if !TimestampFromTime(time.Time{}).IsZero() {
		t.Fatalf("expected zero time to be absent")
	}
	var nilTime *time.Time
	if !TimestampOf(nilTime).IsZero() {
		t.Fatalf("expected nil time pointer to be absent")
	}
}

func TestTimestampTime(t *testing.T) {
	if _, ok := TimestampOf("not a number").Time(); ok {
		t.Fatalf("expected non-numeric timestamp to have no time")
	}
	got, ok := TimestampFromMillis(1700000000000).Time()
	if !ok {
		t.Fatalf("expected time")
	}
	if got.UnixMilli() != 1700000000000 {
		t.Fatalf("expected 1700000000000, got %d", got.UnixMilli())
	}
}

func TestTimestampJSON(t *testing.T) {
	cases := []struct {
		name string
		ts   Timestamp
		want string
	}{
		{name: "absent", ts: Timestamp{}, want: "null"},
		{name: "number", ts: TimestampFromMillis(1700000000000), want: "1700000000000"},
		{name: "string kept", ts: TimestampOf("1700000000000"), want: `"1700000000000"`},
		{name: "native time", ts: TimestampFromTime(time.UnixMilli(1700000000123)), want: "1700000000123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.ts)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, data)
			}

			var back Timestamp
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			wantMs, wantOK := tc.ts.Millis()
			gotMs, gotOK := back.Millis()
			if wantOK != gotOK || wantMs != gotMs {
				t.Fatalf("expected (%v,%v) after round trip, got (%v,%v)", wantMs, wantOK, gotMs, gotOK)
			}
		})
	}
}

func TestTimestampUnmarshalRejectsObjects(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`{"seconds":1}`), &ts); err == nil {
		t.Fatalf("expected error for object payload")
	}
}
