package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// === pgtype Conversion Helpers ===

// timeToPgtype converts time.Time to pgtype.Timestamptz.
func timeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// timePtrToPgtype converts *time.Time to pgtype.Timestamptz, NULL for nil.
func timePtrToPgtype(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// pgtypeToTime converts pgtype.Timestamptz to time.Time (zero if invalid).
// Always returns time in UTC location for consistent timezone handling.
func pgtypeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// pgtypeToTimePtr converts pgtype.Timestamptz to *time.Time (nil if invalid).
func pgtypeToTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	utcTime := t.Time.UTC()
	return &utcTime
}

// weekdayToPgtype converts an optional weekday to a nullable smallint.
func weekdayToPgtype(d *time.Weekday) pgtype.Int2 {
	if d == nil {
		return pgtype.Int2{Valid: false}
	}
	return pgtype.Int2{Int16: int16(*d), Valid: true}
}

// pgtypeToWeekday converts a nullable smallint to an optional weekday.
func pgtypeToWeekday(v pgtype.Int2) *time.Weekday {
	if !v.Valid {
		return nil
	}
	d := time.Weekday(v.Int16)
	return &d
}

// intPtrToPgtype converts an optional int to a nullable integer.
func intPtrToPgtype(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

// pgtypeToIntPtr converts a nullable integer to an optional int.
func pgtypeToIntPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

// int2PtrToPgtype converts an optional int to a nullable smallint.
func int2PtrToPgtype(v *int) pgtype.Int2 {
	if v == nil {
		return pgtype.Int2{Valid: false}
	}
	return pgtype.Int2{Int16: int16(*v), Valid: true}
}

// pgtypeInt2ToIntPtr converts a nullable smallint to an optional int.
func pgtypeInt2ToIntPtr(v pgtype.Int2) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int16)
	return &i
}
