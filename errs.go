package orderstore

import (
	"errors"
	"fmt"
)

// Store failure classes. Every error returned by a Backend is classified into
// one of these at the backend boundary.
var (
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrSchemaMismatch      = errors.New("schema mismatch")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrConflict            = errors.New("conflict")
	ErrConstraintViolation = errors.New("constraint violation")
)

// Caller errors.
var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrUnknownTable     = errors.New("unknown table")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrKeyImmutable     = errors.New("key column is immutable")
	ErrInvalidValue     = errors.New("invalid value")
	ErrCacheNotLoaded   = errors.New("cache not loaded")
	ErrUnknownStatement = errors.New("unknown statement")
	ErrPendingChanges   = errors.New("cache has pending changes")
)

// OpError records the operation, table and key of a failed data access.
type OpError struct {
	Op    string
	Table string
	Key   any
	Err   error
}

func (e *OpError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("%s %s key=%v: %s", e.Op, e.Table, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Table, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, table string, key any, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Table: table, Key: key, Err: err}
}

// storeError pairs a failure class with the driver error that caused it, so
// both errors.Is(err, ErrConstraintViolation) and errors.As(err, &pgErr) hold.
type storeError struct {
	class error
	cause error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("%s: %s", e.class, e.cause)
}

func (e *storeError) Unwrap() []error {
	return []error{e.class, e.cause}
}

func classified(class, cause error) error {
	return &storeError{class: class, cause: cause}
}

// isClassified reports whether err already carries one of the store failure classes.
func isClassified(err error) bool {
	var se *storeError
	return errors.As(err, &se)
}
