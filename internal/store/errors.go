package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrEmailTaken     = errors.New("email already registered")
	ErrAlreadyMember  = errors.New("user is already a member of this house")
	ErrCodeTaken      = errors.New("invite code already issued")
	ErrCodesExhausted = errors.New("could not allocate a unique invite code")
)

// uniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// violation mentioning target ("table.column"). An empty target matches any
// unique violation.
func uniqueViolation(err error, target string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
	case sqlite3.SQLITE_CONSTRAINT:
		// Extended codes disabled: fall back to the message.
		if !strings.Contains(se.Error(), "UNIQUE constraint failed") {
			return false
		}
	default:
		return false
	}
	return target == "" || strings.Contains(se.Error(), target)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
