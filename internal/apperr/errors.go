// Package apperr holds the error conditions shared by the store, the cache and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrNotFound            = errors.New("not found")
	ErrReferentialConflict = errors.New("referential conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
)

// ConflictMessage is the explanation carried by a ReferentialConflict.
const ConflictMessage = "cannot delete: other records still reference this item"

// ConflictError reports a delete blocked by dependent rows.
type ConflictError struct {
	Table   string
	ID      string
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return ConflictMessage
	}
	return e.Message
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrReferentialConflict }

// NewConflict builds a ConflictError for the given table row.
func NewConflict(table, id string, cause error) *ConflictError {
	return &ConflictError{Table: table, ID: id, Message: ConflictMessage, Err: cause}
}

// ValidationError carries per-field messages keyed by the json field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid is a shortcut for a single-field ValidationError.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// SyncError wraps any other store failure raised while mutating data.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *SyncError) Unwrap() error { return e.Err }

// Sync classifies err for a mutation. Known conditions are returned unchanged so
// callers can still match them; everything else becomes a SyncError.
func Sync(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrReferentialConflict),
		errors.As(err, &ve):
		return err
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	return &SyncError{Op: op, Err: err}
}
