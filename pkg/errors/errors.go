package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel values used throughout the application.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternalError = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
	ErrUnavailable   = errors.New("service unavailable")
	ErrCanceled      = errors.New("operation canceled")

	// Domain-specific sentinel values.
	ErrAdapterUnavailable = errors.New("perception adapter unavailable")
	ErrMalformedInput     = errors.New("malformed media payload")
	ErrProtocolViolation  = errors.New("stream protocol violation")
	ErrSessionInactive    = errors.New("session not active")
	ErrSessionActive      = errors.New("session already active")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrNoAdapterAvailable = errors.New("no perception adapter available")
)

// Error is a structured error carrying context fields, an optional code and
// the location where it was created.
type Error struct {
	original error
	message  string
	fields   map[string]interface{}
	file     string
	line     int

	// Code is an optional error code for categorization
	Code string
}

// New creates a new structured error with the given message.
func New(message string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: errors.New(message),
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

// Wrap wraps an existing error with additional context. Returns nil if err is nil.
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: err,
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

func firstOrEmpty(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 && fields[0] != nil {
		return fields[0]
	}
	return make(map[string]interface{})
}

// WithField returns a copy of the error with one extra context field.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(len(e.fields) + 1)
	result.fields[key] = value
	return result
}

// WithFields returns a copy of the error with extra context fields.
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(len(e.fields) + len(fields))
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// WithCode returns a copy of the error with the given code.
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(len(e.fields))
	result.Code = code
	return result
}

func (e *Error) clone(fieldCap int) *Error {
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, fieldCap),
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	return result
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}
	if e.message == "" {
		return e.original.Error()
	}
	return fmt.Sprintf("%s: %v", e.message, e.original)
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Is reports whether any error in e's tree matches target.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if errors.Is(e.original, target) {
		return true
	}
	return e == target
}

// Location returns the file:line where the error was created.
func (e *Error) Location() string {
	if e == nil {
		return ""
	}
	parts := strings.Split(e.file, "/")
	return fmt.Sprintf("%s:%d", parts[len(parts)-1], e.line)
}

// GetFields returns the error's context fields.
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// GetCode returns the error's code.
func (e *Error) GetCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// NewAdapterUnavailable creates an ErrAdapterUnavailable error for the named
// collaborator service.
func NewAdapterUnavailable(service string, cause error) *Error {
	_, file, line, _ := runtime.Caller(1)
	original := error(ErrAdapterUnavailable)
	if cause != nil {
		original = fmt.Errorf("%w: %v", ErrAdapterUnavailable, cause)
	}
	return &Error{
		original: original,
		message:  fmt.Sprintf("adapter %s unavailable", service),
		fields:   map[string]interface{}{"service": service},
		file:     file,
		line:     line,
		Code:     "ADAPTER_UNAVAILABLE",
	}
}

// NewMalformedInput creates an ErrMalformedInput error with details about the
// undecodable payload.
func NewMalformedInput(details string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: ErrMalformedInput,
		message:  fmt.Sprintf("malformed media payload: %s", details),
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
		Code:     "MALFORMED_INPUT",
	}
}

// NewProtocolViolation creates an ErrProtocolViolation error for an inbound
// message the stream protocol cannot interpret.
func NewProtocolViolation(details string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: ErrProtocolViolation,
		message:  fmt.Sprintf("stream protocol violation: %s", details),
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
		Code:     "PROTOCOL_VIOLATION",
	}
}

// IsErrorType checks whether err matches the target sentinel.
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the code from a structured error, or "" otherwise.
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetCode()
	}
	return ""
}

// GetErrorFields extracts context fields from a structured error.
func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}
