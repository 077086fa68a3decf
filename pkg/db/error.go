package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailMsg  = "UNIQUE constraint failed"
	pgUniqueViolationMsg = "duplicate key value violates unique constraint"
)

// IsDuplicateKeyErr reports unique-constraint violations for every
// DATABASE_TYPE the service can open.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	// the pure-go sqlite driver only exposes its error text
	msg := err.Error()
	return strings.Contains(msg, sqliteUniqueFailMsg) || strings.Contains(msg, pgUniqueViolationMsg)
}
