package orderstore

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PGConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
}

func (c PGConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, sslMode)
}

// OpenPostgres opens a PostgreSQL database through jackc/pgx ("pgx") or
// lib/pq ("postgres"). An empty dsn is built from config.
func OpenPostgres(driverName, dsn string, config PGConfig) (Backend, error) {
	if dsn == "" {
		dsn = config.ConnString()
	}
	if driverName != DriverPostgres {
		driverName = DriverPgx
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, classified(ErrStoreUnavailable, err)
	}
	return newSQLBackend(db, sqlDialect{
		driver:     driverName,
		columnType: pgColumnType,
		classify:   classifyPostgresError,
	}), nil
}

func pgColumnType(col Column) string {
	switch col.Type {
	case TypeInteger:
		return "BIGINT"
	case TypeReal:
		return "DOUBLE PRECISION"
	default:
		if col.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Size)
		}
		return "TEXT"
	}
}

// classifyPostgresError maps SQLSTATE codes reported by either driver to a
// failure class.
func classifyPostgresError(err error) error {
	var code string

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &connectErr), errors.As(err, &netErr), pgconn.Timeout(err):
		return classified(ErrStoreUnavailable, err)
	default:
		return nil
	}

	switch {
	case code == pgerrcode.UniqueViolation:
		return classified(ErrDuplicateKey, err)
	case pgerrcode.IsIntegrityConstraintViolation(code), pgerrcode.IsDataException(code):
		return classified(ErrConstraintViolation, err)
	case pgerrcode.IsConnectionException(code), pgerrcode.IsOperatorIntervention(code),
		pgerrcode.IsInsufficientResources(code):
		return classified(ErrStoreUnavailable, err)
	case code == pgerrcode.UndefinedTable, code == pgerrcode.UndefinedColumn:
		return classified(ErrSchemaMismatch, err)
	}
	return nil
}
