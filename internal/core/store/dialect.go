package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

const (
	driverLibsql   = "libsql"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverMySQL    = "mysql"
	driverMemory   = "memory"
)

// Drivers lists every supported store.driver value.
var Drivers = []string{driverLibsql, driverSQLite, driverPostgres, driverMySQL, driverMemory}

// dialect captures the SQL differences between engines.
type dialect struct {
	name string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// row lock suffix for read-modify-write selects
	lockSuffix string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case driverLibsql, driverSQLite:
		return dialect{name: driverSQLite}, nil
	case driverPostgres:
		return dialect{name: driverPostgres, numbered: true, lockSuffix: " FOR UPDATE"}, nil
	case driverMySQL:
		return dialect{name: driverMySQL, lockSuffix: " FOR UPDATE"}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// rebind rewrites ? placeholders for engines that use numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// isUniqueViolation reports whether err came from a unique or primary key
// constraint.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "constraint failed: unique")
}
