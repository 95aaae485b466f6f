package sqlite

import (
	"database/sql"
	"time"
)

// === Column Conversion Helpers ===
//
// Timestamps are stored as INTEGER unix nanoseconds in UTC.

func timeToNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func timePtrToNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

func nanosToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nanosToTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := nanosToTime(n.Int64)
	return &t
}

func intPtrToNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullToIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func weekdayToNull(d *time.Weekday) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*d), Valid: true}
}

func nullToWeekday(v sql.NullInt64) *time.Weekday {
	if !v.Valid {
		return nil
	}
	d := time.Weekday(v.Int64)
	return &d
}

func stringPtrToNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
