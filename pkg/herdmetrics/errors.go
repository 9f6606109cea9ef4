package herdmetrics

import (
	"errors"
	"fmt"
)

// Sentinel errors for formula parsing.
var (
	// ErrSyntax indicates a token did not match what the grammar expects.
	ErrSyntax = errors.New("formula syntax error")

	// ErrUnknownFunction indicates a call to a function outside the catalogue.
	ErrUnknownFunction = errors.New("unknown function")
)

// SyntaxError reports an unexpected token.
type SyntaxError struct {
	// Token is the offending token.
	Token Token
	// Message describes what was expected.
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return e.Message
}

// Unwrap returns ErrSyntax for errors.Is support.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// UnknownFunctionError reports a call to a function with no handler.
type UnknownFunctionError struct {
	Name string
	Pos  int
}

// Error implements the error interface.
func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function: %s", e.Name)
}

// Unwrap returns ErrUnknownFunction for errors.Is support.
func (e *UnknownFunctionError) Unwrap() error {
	return ErrUnknownFunction
}

// PanicError wraps a panic recovered during evaluation.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("formula evaluation panic: %v", e.Value)
}
