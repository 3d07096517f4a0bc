package store

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// QueryError wraps a failed read against a collection.
type QueryError struct {
	Collection string
	Op         string
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s.%s: %v", e.Collection, e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// WriteError wraps a failed create, update, or delete.
type WriteError struct {
	Collection string
	Op         string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s.%s: %v", e.Collection, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func queryErr(collection, op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Collection: collection, Op: op, Err: err}
}

func writeErr(collection, op string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Collection: collection, Op: op, Err: err}
}

// NewQueryError and NewWriteError let alternative repository implementations
// report failures with the same taxonomy.
func NewQueryError(collection, op string, err error) error { return queryErr(collection, op, err) }

func NewWriteError(collection, op string, err error) error { return writeErr(collection, op, err) }
