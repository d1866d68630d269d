// Package errors provides structured error types for the gcroot library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the Go type involved, the debug label of
// the root or edge, and a cause chain.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
//		GoType("root.Rooted[value.Value]").
//		Label("stack root").
//		Detail("released out of LIFO order").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Violation(errors.PhaseRoot, "released out of LIFO order")
//	err := errors.AllocationFailed(errors.PhaseAlloc, 4096)
//
// Protocol violations are programming errors. The gc and root packages panic
// with a *Error of KindProtocolViolation when they detect one; every other
// kind is returned as an ordinary error.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
