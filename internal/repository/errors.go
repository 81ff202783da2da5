// Package repository implements MySQL persistence for users, profiles,
// linked accounts, scheduled casts and refresh tokens.  Every repository is
// bound to a database.DBTX so the same code runs on the pool or inside a
// transaction.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a unique key, such as a
// second profile for the same user.
var ErrConflict = errors.New("conflict")

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrConflict
	}
	return err
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
