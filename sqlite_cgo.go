//go:build cgo

package orderstore

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

func classifyMattnError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return nil
	}
	if se.ExtendedCode != 0 {
		return classifySQLiteCode(err, int(se.ExtendedCode))
	}
	return classifySQLiteCode(err, int(se.Code))
}
