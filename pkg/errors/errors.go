// Package errors provides structured error types for the sahttp library.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorType represents the category of error that occurred.
type ErrorType string

const (
	// ErrorTypeDNS represents address resolution errors
	ErrorTypeDNS ErrorType = "dns"
	// ErrorTypeSocket represents socket creation errors
	ErrorTypeSocket ErrorType = "socket"
	// ErrorTypeConnection represents TCP connect errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeBind represents server-mode bind errors
	ErrorTypeBind ErrorType = "bind"
	// ErrorTypeListen represents server-mode listen errors
	ErrorTypeListen ErrorType = "listen"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeProtocol represents HTTP protocol errors
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeIO represents I/O errors
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeValidation represents request configuration errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeParse represents URL parse errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeRedirect represents redirect handling errors
	ErrorTypeRedirect ErrorType = "redirect"
)

// Kind narrows an ErrorType down to a specific condition.
type Kind string

const (
	KindNone               Kind = ""
	KindParseError         Kind = "ParseError"
	KindMissingHost        Kind = "MissingHost"
	KindInvalidMethod      Kind = "InvalidMethod"
	KindInvalidMethodState Kind = "InvalidMethodState"
	KindTooManyRedirects   Kind = "TooManyRedirects"
	KindMissingLocation    Kind = "MissingLocation"
	KindStatus             Kind = "StatusError"
	KindFraming            Kind = "FramingError"
	KindClosed             Kind = "Closed"
)

// Templates usable with errors.Is.
var (
	ErrParse              = &Error{Type: ErrorTypeParse, Kind: KindParseError}
	ErrMissingHost        = &Error{Type: ErrorTypeValidation, Kind: KindMissingHost}
	ErrInvalidMethod      = &Error{Type: ErrorTypeValidation, Kind: KindInvalidMethod}
	ErrInvalidMethodState = &Error{Type: ErrorTypeValidation, Kind: KindInvalidMethodState}
	ErrTooManyRedirects   = &Error{Type: ErrorTypeRedirect, Kind: KindTooManyRedirects}
	ErrMissingLocation    = &Error{Type: ErrorTypeRedirect, Kind: KindMissingLocation}
	ErrStatus             = &Error{Type: ErrorTypeProtocol, Kind: KindStatus}
	ErrFraming            = &Error{Type: ErrorTypeProtocol, Kind: KindFraming}
	ErrClosed             = &Error{Type: ErrorTypeIO, Kind: KindClosed}
	ErrTimeout            = &Error{Type: ErrorTypeTimeout}
)

// Error represents a structured error with context information.
type Error struct {
	Type      ErrorType `json:"type"`
	Kind      Kind      `json:"kind,omitempty"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Kind != KindNone {
		prefix = fmt.Sprintf("%s/%s", e.Type, e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Type, and on Kind when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Kind == KindNone || e.Kind == t.Kind
}

func newError(typ ErrorType, kind Kind, msg string, cause error) *Error {
	return &Error{
		Type:      typ,
		Kind:      kind,
		Message:   msg,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewDNSError creates an address resolution error.
func NewDNSError(host string, cause error) *Error {
	e := newError(ErrorTypeDNS, KindNone, fmt.Sprintf("dns resolve failure for host %s", host), cause)
	e.Host = host
	return e
}

// NewSocketError creates a socket creation error.
func NewSocketError(host string, port int, cause error) *Error {
	e := newError(ErrorTypeSocket, KindNone, fmt.Sprintf("socket create failure for %s:%d", host, port), cause)
	e.Host, e.Port = host, port
	return e
}

// NewConnectionError creates a connect error.
func NewConnectionError(host string, port int, cause error) *Error {
	e := newError(ErrorTypeConnection, KindNone, fmt.Sprintf("connect failure to %s:%d", host, port), cause)
	e.Host, e.Port = host, port
	return e
}

// NewBindError creates a server-mode bind error.
func NewBindError(host string, port int, cause error) *Error {
	e := newError(ErrorTypeBind, KindNone, fmt.Sprintf("bind server failure on %s:%d", host, port), cause)
	e.Host, e.Port = host, port
	return e
}

// NewListenError creates a server-mode listen error.
func NewListenError(host string, port int, cause error) *Error {
	e := newError(ErrorTypeListen, KindNone, fmt.Sprintf("listen server failure on %s:%d", host, port), cause)
	e.Host, e.Port = host, port
	return e
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(operation string, timeout time.Duration, cause error) *Error {
	return newError(ErrorTypeTimeout, KindNone, fmt.Sprintf("%s timed out after %v", operation, timeout), cause)
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string, cause error) *Error {
	return newError(ErrorTypeProtocol, KindNone, message, cause)
}

// NewFramingError reports a response whose header block could not be delimited.
func NewFramingError(message string) *Error {
	return newError(ErrorTypeProtocol, KindFraming, message, nil)
}

// NewStatusError reports a status code outside 2xx/3xx.
func NewStatusError(status int) *Error {
	e := newError(ErrorTypeProtocol, KindStatus, fmt.Sprintf("unexpected status %d", status), nil)
	e.Status = status
	return e
}

// NewIOError creates an I/O error.
func NewIOError(operation string, cause error) *Error {
	return newError(ErrorTypeIO, KindNone, fmt.Sprintf("I/O error during %s", operation), cause)
}

// NewClosedError reports use of a closed socket.
func NewClosedError(operation string) *Error {
	return newError(ErrorTypeIO, KindClosed, fmt.Sprintf("%s on closed socket", operation), nil)
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return newError(ErrorTypeValidation, KindNone, message, nil)
}

// NewMissingHostError is returned when a request is rendered without a host.
func NewMissingHostError() *Error {
	return newError(ErrorTypeValidation, KindMissingHost, "host is not set", nil)
}

// NewInvalidMethodError is returned for an unset or unknown method.
func NewInvalidMethodError(method string) *Error {
	if method == "" {
		return newError(ErrorTypeValidation, KindInvalidMethod, "method is not set", nil)
	}
	return newError(ErrorTypeValidation, KindInvalidMethod, fmt.Sprintf("unsupported method %q", method), nil)
}

// NewInvalidMethodStateError is returned when a body is set under a non-POST method.
func NewInvalidMethodStateError(method string) *Error {
	return newError(ErrorTypeValidation, KindInvalidMethodState,
		fmt.Sprintf("post data requires POST, method is %q", method), nil)
}

// NewParseError creates a URL parse error.
func NewParseError(raw string) *Error {
	return newError(ErrorTypeParse, KindParseError, fmt.Sprintf("url %q does not match scheme://host[:port][/path[?query]]", raw), nil)
}

// NewTooManyRedirectsError reports an exceeded redirect budget.
func NewTooManyRedirectsError(limit int) *Error {
	return newError(ErrorTypeRedirect, KindTooManyRedirects, fmt.Sprintf("stopped after %d redirects", limit), nil)
}

// NewMissingLocationError reports a 3xx response without a Location header.
func NewMissingLocationError(status int) *Error {
	e := newError(ErrorTypeRedirect, KindMissingLocation, fmt.Sprintf("redirect status %d without location", status), nil)
	e.Status = status
	return e
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Type == ErrorTypeTimeout {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// GetKind returns the error kind if it's a structured error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// IsContextCanceled checks if an error is due to context cancellation.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
