package orderstore

import (
	log "github.com/sirupsen/logrus"
)

type StorageOption func(o *option)

type option struct {
	statements Statements
	catalog    *Catalog
	logger     *log.Entry
}

// WithStatements overrides statement texts by logical name.
func WithStatements(stmts map[string]string) StorageOption {
	return func(o *option) {
		o.statements = o.statements.Merge(stmts)
	}
}

func WithCatalog(c Catalog) StorageOption {
	return func(o *option) {
		o.catalog = &c
	}
}

func WithLogger(logger *log.Entry) StorageOption {
	return func(o *option) {
		o.logger = logger
	}
}

func defaultLogger() *log.Entry {
	return log.StandardLogger().WithField("component", "orderstore")
}
