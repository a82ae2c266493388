package journal

import (
	"slices"
	"time"
)

// FilterByTime keeps entries whose timestamp falls within [from, to]. A zero bound is open.
func FilterByTime(entries []Entry, from, to time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		ts := e.Timestamp.Time
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SortNewestFirst returns a copy ordered by timestamp, newest first. Equal timestamps keep
// their log order.
func SortNewestFirst(entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.Timestamp.Time.Compare(a.Timestamp.Time)
	})
	return out
}

// Last returns at most n entries from the end of entries. n <= 0 returns all.
func Last(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}
