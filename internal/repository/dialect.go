package repository

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const uniqueViolationCode = "23505"

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// Dialect captures the differences between the SQL engines the ledger runs on.
// Queries are written with postgres placeholders and rebound per engine.
type Dialect struct {
	Name string
	// LockClause is appended to a SELECT to hold the row until commit.
	LockClause string
	rebind     func(string) string
	unique     func(error) bool
}

func (d Dialect) Rebind(query string) string {
	if d.rebind == nil {
		return query
	}
	return d.rebind(query)
}

// IsUniqueViolation reports whether err is a primary key / unique conflict.
func (d Dialect) IsUniqueViolation(err error) bool {
	return d.unique(err)
}

var Postgres = Dialect{
	Name:       DriverPostgres,
	LockClause: " FOR UPDATE",
	unique: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
	},
}

// SQLite relies on BEGIN IMMEDIATE (_txlock=immediate) instead of row locks:
// the transaction owns the database write lock from its first statement.
var SQLite = Dialect{
	Name:       DriverSQLite,
	LockClause: "",
	rebind: func(query string) string {
		return placeholderPattern.ReplaceAllString(query, "?$1")
	},
	unique: func(err error) bool {
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	},
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// SQLiteDSN builds the go-sqlite3 DSN the ledger needs: WAL journal, a busy
// timeout, and IMMEDIATE transactions so ApplyDelta holds the write lock from
// BEGIN.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// SQLiteMigrationURL addresses the same database file for golang-migrate.
func SQLiteMigrationURL(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("sqlite3://%s?_busy_timeout=%d", path, busyTimeout.Milliseconds())
}
