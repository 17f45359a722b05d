package devotion

import (
	"time"
)

const dayMillis int64 = 86_400_000

// Stamped is implemented by records that carry a store timestamp.
type Stamped interface {
	Stamp() Timestamp
}

// Window is an inclusive range of epoch milliseconds.
type Window struct {
	Days  int   `json:"days"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// PeriodWindow returns the window covering today and the days-1 previous
// days, in the location carried by now.
func PeriodWindow(now time.Time, days int) Window {
	y, m, d := now.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	endOfToday := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).UnixMilli() - 1

	return Window{
		Days:  days,
		Start: startOfToday.UnixMilli() - int64(days-1)*dayMillis,
		End:   endOfToday,
	}
}

// Contains reports whether ts falls inside the window. Absent and
// non-numeric timestamps never match.
func (w Window) Contains(ts Timestamp) bool {
	ms, ok := ts.Millis()
	if !ok {
		return false
	}
	// NaN fails both comparisons.
	return ms >= float64(w.Start) && ms <= float64(w.End)
}

// FilterByPeriod returns the records stamped inside PeriodWindow(now, days),
// in input order.
func FilterByPeriod[T Stamped](records []T, days int, now time.Time) []T {
	return FilterByWindow(records, PeriodWindow(now, days))
}

// FilterByWindow returns the records stamped inside w, in input order.
func FilterByWindow[T Stamped](records []T, w Window) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if w.Contains(rec.Stamp()) {
			out = append(out, rec)
		}
	}
	return out
}
