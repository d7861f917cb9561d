// Package timewindow enumerates the hourly buckets a backfill covers.
// Collector event files are laid out per date-hour, so all fetching and
// batching is hour-granular.
package timewindow

import (
	"fmt"
	"time"
)

// Window is a contiguous range of hourly buckets starting at Start.
type Window struct {
	Start time.Time
	Hours int
}

// FromDays builds a window covering a whole number of days from start.
func FromDays(start time.Time, days int) Window {
	return Window{Start: start.UTC(), Hours: days * 24}
}

// Buckets returns every hour bucket in the window, in order.
func (w Window) Buckets() []time.Time {
	out := make([]time.Time, 0, w.Hours)
	for i := 0; i < w.Hours; i++ {
		out = append(out, w.Start.Add(time.Duration(i)*time.Hour))
	}
	return out
}

// Batches splits the window into consecutive sub-windows of at most size
// hours. A size of zero or less yields the whole window as one batch.
func (w Window) Batches(size int) []Window {
	if size <= 0 || size >= w.Hours {
		return []Window{w}
	}
	var out []Window
	for offset := 0; offset < w.Hours; offset += size {
		hours := size
		if offset+hours > w.Hours {
			hours = w.Hours - offset
		}
		out = append(out, Window{Start: w.Start.Add(time.Duration(offset) * time.Hour), Hours: hours})
	}
	return out
}

// String identifies the window in logs, e.g. "2022/11/02/05+6h".
func (w Window) String() string {
	return fmt.Sprintf("%s+%dh", HourKey(w.Start), w.Hours)
}

// HourKey formats a bucket timestamp as the zero-padded date-hour folder
// name used in the collector's bucket layout, e.g. "2022/11/02/05".
func HourKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%02d", t.Year(), int(t.Month()), t.Day(), t.Hour())
}
