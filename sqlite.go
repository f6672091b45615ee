package orderstore

import (
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// OpenSQLite opens a SQLite database file through the pure Go driver
// ("sqlite") or the cgo driver ("sqlite3"). Foreign keys are enforced on every
// connection.
func OpenSQLite(driverName, path string) (Backend, error) {
	dsn := path
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	var dialect sqlDialect
	switch driverName {
	case DriverSQLite3:
		dsn += sep + "_foreign_keys=on&_busy_timeout=5000"
		dialect = sqlDialect{driver: DriverSQLite3, columnType: sqliteColumnType, classify: classifyMattnError}
	default:
		driverName = DriverSQLite
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		dialect = sqlDialect{driver: DriverSQLite, columnType: sqliteColumnType, classify: classifyModerncError}
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, classified(ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors

	return newSQLBackend(db, dialect), nil
}

func sqliteColumnType(col Column) string {
	switch col.Type {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func classifyModerncError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return nil
	}
	return classifySQLiteCode(err, se.Code())
}

// classifySQLiteCode maps a SQLite result code, extended or primary, to a
// failure class.
func classifySQLiteCode(err error, code int) error {
	switch code {
	case sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlitelib.SQLITE_CONSTRAINT_UNIQUE:
		return classified(ErrDuplicateKey, err)
	}

	switch code & 0xff {
	case sqlitelib.SQLITE_CONSTRAINT:
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return classified(ErrDuplicateKey, err)
		}
		return classified(ErrConstraintViolation, err)
	case sqlitelib.SQLITE_CANTOPEN, sqlitelib.SQLITE_IOERR, sqlitelib.SQLITE_NOTADB, sqlitelib.SQLITE_CORRUPT:
		return classified(ErrStoreUnavailable, err)
	case sqlitelib.SQLITE_ERROR:
		msg := err.Error()
		if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") ||
			strings.Contains(msg, "has no column named") {
			return classified(ErrSchemaMismatch, err)
		}
	}
	return nil
}
