package model

import (
	"strconv"
	"strings"
	"time"
)

// DateToEpochMS converts a "dd/MM/yyyy" display date to epoch milliseconds.
//
// The time-of-day is pinned to noon local time to keep the derived value
// stable across timezone and DST shifts. Malformed input yields the current
// time, matching the behavior records received with a broken date get
// everywhere else in the pipeline.
func DateToEpochMS(dateStr string) int64 {
	return dateToEpochMSAt(dateStr, time.Now())
}

func dateToEpochMSAt(dateStr string, now time.Time) int64 {
	parts := strings.Split(dateStr, "/")
	if len(parts) != 3 {
		return now.UnixMilli()
	}

	d, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	y, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return now.UnixMilli()
	}

	return time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.Local).UnixMilli()
}

// ISOTime formats a timestamp the way records store created_at: RFC 3339
// with millisecond precision in UTC.
func ISOTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// isoToEpochMS parses an ISO-8601 created_at string to epoch milliseconds
// for sorting. Unparseable strings sort as 0 (oldest).
func isoToEpochMS(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
