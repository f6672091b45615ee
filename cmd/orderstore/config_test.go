package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/likearthian/orderstore"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultAppConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "store.yaml", `store:
  driver: pgx
  postgres:
    host: localhost
    port: "5432"
    database: classicmodels
    user: app
  statements:
    SELECT_ALL_CUSTOMERS: SELECT * FROM customers
log:
  level: debug
  format: json
`)

	cfg, err := loadConfig(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)

	assert.Equal(t, orderstore.DriverPgx, cfg.Store.Driver)
	assert.Equal(t, "orderstore.db", cfg.Store.DSN, "unset keys keep their default")
	assert.Equal(t, "postgres://app:@localhost:5432/classicmodels?sslmode=disable", cfg.Store.Postgres.ConnString())
	assert.Equal(t, map[string]string{"select_all_customers": "SELECT * FROM customers"}, cfg.Store.Statements)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.NoError(t, cfg.Store.Validate())
}

func TestLoadConfigEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "store.yaml", "store:\n  driver: sqlite\n  dsn: file.db\n")
	t.Setenv("ORDERSTORE_STORE_DSN", "/var/lib/orderstore/store.db")
	t.Setenv("ORDERSTORE_LOG_LEVEL", "warn")

	cfg, err := loadConfig(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/orderstore/store.db", cfg.Store.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	writeFile(t, dir, "broken.yaml", "store: [\n")
	_, err = loadConfig(filepath.Join(dir, "broken.yaml"))
	assert.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderstore.yaml")

	written, err := writeDefaultConfig(path)
	require.NoError(t, err)
	assert.True(t, written)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, defaultAppConfig(), cfg)

	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: mongodb\n"), 0o644))
	written, err = writeDefaultConfig(path)
	require.NoError(t, err)
	assert.False(t, written, "an existing file is kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "store:\n  driver: mongodb\n", string(data))
}

func TestStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  orderstore.Config
		ok   bool
	}{
		{"sqlite", orderstore.Config{Driver: orderstore.DriverSQLite, DSN: "x.db"}, true},
		{"sqlite without dsn", orderstore.Config{Driver: orderstore.DriverSQLite3}, false},
		{"postgres dsn", orderstore.Config{Driver: orderstore.DriverPostgres, DSN: "postgres://localhost/db"}, true},
		{"postgres without host", orderstore.Config{Driver: orderstore.DriverPgx}, false},
		{"mongo", orderstore.Config{Driver: orderstore.DriverMongo, Mongo: orderstore.MongoConfig{URI: "mongodb://localhost", Database: "classicmodels"}}, true},
		{"mongo without database", orderstore.Config{Driver: orderstore.DriverMongo, Mongo: orderstore.MongoConfig{URI: "mongodb://localhost"}}, false},
		{"no driver", orderstore.Config{}, false},
		{"unknown driver", orderstore.Config{Driver: "oracle", DSN: "x"}, false},
		{"blank statement", orderstore.Config{Driver: orderstore.DriverSQLite, DSN: "x.db", Statements: map[string]string{"insert_one_order": " "}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestInitLog(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(&log.TextFormatter{})

	require.NoError(t, initLog(LogConfig{Level: "warn", Format: "json"}))
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	assert.Error(t, initLog(LogConfig{Level: "loud", Format: "text"}))
	assert.Error(t, initLog(LogConfig{Level: "info", Format: "xml"}))
}
