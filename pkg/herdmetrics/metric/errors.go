package metric

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for definition storage.
var (
	// ErrNotFound indicates no definition has the requested ID.
	ErrNotFound = errors.New("metric definition not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("metric store closed")

	// ErrInvalidDefinition indicates a definition failed validation.
	ErrInvalidDefinition = errors.New("invalid metric definition")

	// ErrDuplicateID indicates Create was given an ID that is already stored.
	ErrDuplicateID = errors.New("metric definition id already exists")

	// ErrStaleVersion indicates an update targeted a superseded version.
	ErrStaleVersion = errors.New("metric definition is not the current version")
)

// ValidationError lists the invalid fields of a definition, keyed by their
// JSON name.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDefinition, strings.Join(parts, "; "))
}

// Unwrap returns ErrInvalidDefinition for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidDefinition
}
