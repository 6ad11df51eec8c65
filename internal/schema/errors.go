package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies the failure class surfaced to callers.
type ErrorCode string

const (
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeExecutionNotFound   ErrorCode = "EXECUTION_NOT_FOUND"
	CodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	CodeValidation          ErrorCode = "VALIDATION_ERROR"
	CodeToolExecution       ErrorCode = "TOOL_EXECUTION_FAILED"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeUnsupportedProtocol ErrorCode = "UNSUPPORTED_PROTOCOL_VERSION"
	CodeBackpressure        ErrorCode = "BACKPRESSURE"
	CodeSessionExpired      ErrorCode = "SESSION_EXPIRED"
)

// ErrorKind partitions errors into the retry taxonomy.
type ErrorKind int

const (
	// KindClient — bad input, unknown tool/session. Never retried.
	KindClient ErrorKind = iota
	// KindTransient — downstream timeout or connection failure. Retried
	// internally for idempotent operations only.
	KindTransient
	// KindFatal — protocol mismatch or corrupted state. Connection/session
	// is torn down.
	KindFatal
)

// FieldError carries per-field validation detail.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed error carried across component boundaries. Every error
// that can be attributed to a session or execution is tagged with its id.
type Error struct {
	Code        ErrorCode    `json:"code"`
	Message     string       `json:"message"`
	Kind        ErrorKind    `json:"-"`
	Fields      []FieldError `json:"fields,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
	ExecutionID string       `json:"executionId,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(names, ", "))
}

// WithSession tags the error with its owning session id.
func (e *Error) WithSession(sessionID string) *Error {
	e.SessionID = sessionID
	return e
}

// WithExecution tags the error with its owning execution id.
func (e *Error) WithExecution(executionID string) *Error {
	e.ExecutionID = executionID
	return e
}

// NewError builds a client-kind Error with the given code.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Kind: KindClient}
}

// NewTransient builds a transient-kind Error.
func NewTransient(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Kind: KindTransient}
}

// NewFatal builds a fatal-kind Error.
func NewFatal(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Kind: KindFatal}
}

// NewValidationError builds the per-field validation failure. fields must
// list every failing field, not just the first.
func NewValidationError(fields []FieldError) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: "parameter validation failed",
		Kind:    KindClient,
		Fields:  fields,
	}
}

// AsError unwraps err into a *Error, converting plain errors into a
// TOOL_EXECUTION_FAILED client error so no untyped error crosses a boundary.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeToolExecution, Message: err.Error(), Kind: KindClient}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
