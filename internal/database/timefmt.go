package database

import (
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC format bound for every DATETIME
// parameter. Both backends compare these strings correctly against stored
// values, and on SQLite the fixed width keeps lexical order equal to time
// order.
const TimeLayout = "2006-01-02 15:04:05.000000"

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

var parseLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02",
}

// ParseTime accepts every textual form either backend may hand back.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// Timestamp scans a DATETIME column regardless of whether the driver
// delivers it as time.Time (MySQL parseTime, SQLite typed columns) or as
// text (SQLite expressions). NULL leaves Valid false.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time, ts.Valid = time.Time{}, false
		return nil
	case time.Time:
		ts.Time, ts.Valid = v.UTC(), true
		return nil
	case string:
		t, err := ParseTime(v)
		if err != nil {
			return err
		}
		ts.Time, ts.Valid = t, true
		return nil
	case []byte:
		t, err := ParseTime(string(v))
		if err != nil {
			return err
		}
		ts.Time, ts.Valid = t, true
		return nil
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}
