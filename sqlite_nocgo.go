//go:build !cgo

package orderstore

import (
	// Registers a stub "sqlite3" driver whose Open reports that cgo is missing.
	_ "github.com/mattn/go-sqlite3"
)

func classifyMattnError(error) error {
	return nil
}
