package orderstore

import (
	"context"
	"errors"
	"fmt"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMongo    = "mongodb"
)

// Config describes how to reach the store and which statement texts to use.
type Config struct {
	Driver     string            `mapstructure:"driver" yaml:"driver"`
	DSN        string            `mapstructure:"dsn" yaml:"dsn,omitempty"`
	Postgres   PGConfig          `mapstructure:"postgres" yaml:"postgres,omitempty"`
	Mongo      MongoConfig       `mapstructure:"mongo" yaml:"mongo,omitempty"`
	Statements map[string]string `mapstructure:"statements" yaml:"statements,omitempty"`
}

func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverSQLite3:
		if c.DSN == "" {
			return errors.New("expected dsn for sqlite driver")
		}
	case DriverPgx, DriverPostgres:
		if c.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
			return errors.New("expected dsn or postgres host and database")
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("expected mongo uri and database")
		}
	case "":
		return errors.New("expected driver")
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}

	stmts := DefaultStatements().Merge(c.Statements)
	for name := range c.Statements {
		if _, err := stmts.Get(name); err != nil {
			return fmt.Errorf("statement %s: %w", name, err)
		}
	}
	return nil
}

// Open validates the config and opens its backend.
func Open(ctx context.Context, c Config) (Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch c.Driver {
	case DriverSQLite, DriverSQLite3:
		return OpenSQLite(c.Driver, c.DSN)
	case DriverPgx, DriverPostgres:
		return OpenPostgres(c.Driver, c.DSN, c.Postgres)
	default:
		return OpenMongo(ctx, c.Mongo)
	}
}

// SchemaCreator is implemented by backends able to create the tables of a
// catalog.
type SchemaCreator interface {
	CreateSchema(ctx context.Context, catalog Catalog) error
}

var (
	_ SchemaCreator = (*sqlBackend)(nil)
	_ SchemaCreator = (*mongoBackend)(nil)
)

// CreateSchema creates the catalog's tables in the backend's store.
func CreateSchema(ctx context.Context, b Backend, catalog Catalog) error {
	sc, ok := b.(SchemaCreator)
	if !ok {
		return fmt.Errorf("backend %s cannot create a schema", b.Name())
	}
	return sc.CreateSchema(ctx, catalog)
}
