// Package util provides logging helpers, address arithmetic and the common
// error types shared by the validation, compile and deploy stages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the deployment error taxonomy
var (
	ErrPreconditionFailed = errors.New("precondition not met")
	ErrValidationFailed   = errors.New("validation failed")
	ErrTransport          = errors.New("transport failure")
	ErrAuth               = errors.New("authentication rejected")
	ErrCommandRejected    = errors.New("command rejected by device")
	ErrPersistFailed      = errors.New("configuration save not acknowledged")
	ErrDeviceLocked       = errors.New("device locked by another deployment")
	ErrNotFound           = errors.New("resource not found")
)

// PreconditionError represents a failed precondition check with context.
// Compiling an intent that still carries error diagnostics produces one.
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// CommandRejectedError records a device-reported error for one command.
// It is attached to the report entry, never returned from a deploy.
type CommandRejectedError struct {
	Device   string
	Command  string
	Response string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("%s rejected %q: %s", e.Device, e.Command, FirstLine(e.Response))
}

func (e *CommandRejectedError) Unwrap() error {
	return ErrCommandRejected
}

// PersistError means the save command was sent but not acknowledged.
type PersistError struct {
	Device   string
	Response string
	Err      error
}

func (e *PersistError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("saving configuration on %s: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("saving configuration on %s: no acknowledgement (%s)", e.Device, FirstLine(e.Response))
}

func (e *PersistError) Unwrap() error {
	return ErrPersistFailed
}

// FirstLine returns the first line of s, trimmed
func FirstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
