package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Every error that reaches a caller of the core
// components carries exactly one Kind, attached where the failure happened.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindStorage        Kind = "storage"
	KindFilesystem     Kind = "filesystem"
	KindRealtime       Kind = "realtime"
	KindNetwork        Kind = "network"
	KindValidation     Kind = "validation"
	KindRateLimited    Kind = "rate_limited"
	KindUnknown        Kind = "unknown"
)

// DomainError represents a classified failure with a stable error code.
//
// Message is safe to return to remote callers. Cause and Details may carry
// low-level information and are only logged locally.
type DomainError struct {
	Code      string // Error code (e.g., "PM-AUTH-4010")
	Kind      Kind
	Message   string // Externally safe message
	Details   string // Optional additional details
	Retryable bool
	Cause     error // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new non-retryable DomainError.
func NewDomainError(kind Kind, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// WithRetryable returns a copy of the error with the retryable flag set.
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	c := *e
	c.Retryable = retryable
	return &c
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the classification of err. Unclassified errors are Unknown.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err may succeed if attempted again.
// Only retryable Storage and Network failures qualify.
func IsRetryable(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) || !de.Retryable {
		return false
	}
	return de.Kind == KindStorage || de.Kind == KindNetwork
}

// AsDomainError returns err as a DomainError, classifying anything else as
// an internal failure that wraps err.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return ErrInternalServer.WithCause(err)
}

// StorageError classifies an object storage failure.
func StorageError(cause error, retryable bool) *DomainError {
	return ErrStorageUnavailable.WithCause(cause).WithRetryable(retryable)
}

// FilesystemError classifies a local filesystem failure.
func FilesystemError(cause error, retryable bool) *DomainError {
	return ErrFilesystem.WithCause(cause).WithRetryable(retryable)
}

// NetworkError classifies a failure talking to a remote collaborator.
func NetworkError(cause error, retryable bool) *DomainError {
	return ErrNetworkUnavailable.WithCause(cause).WithRetryable(retryable)
}

// RealtimeError classifies a realtime transport failure. Recovery is the
// client's job (reconnect), so it is never retried by the server.
func RealtimeError(cause error) *DomainError {
	return ErrRealtimeTransport.WithCause(cause)
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrTokenInvalid indicates the pairing token is unknown, consumed, or of
	// the wrong kind.
	ErrTokenInvalid = NewDomainError(KindAuthentication, "PM-AUTH-4010",
		"pairing token is invalid, request a new pairing code")

	// ErrTokenExpired indicates the pairing token expired before exchange.
	ErrTokenExpired = NewDomainError(KindAuthentication, "PM-AUTH-4011",
		"pairing token expired, request a new pairing code")

	// ErrSessionInvalid indicates the session token is missing, unknown, or
	// expired. Clients match on the leading "Authentication failed".
	ErrSessionInvalid = NewDomainError(KindAuthentication, "PM-AUTH-4012",
		"Authentication failed: session is invalid or expired, pair again with a new pairing code")

	// ErrAdminKeyInvalid indicates the admin key is missing or wrong.
	ErrAdminKeyInvalid = NewDomainError(KindAuthentication, "PM-AUTH-4013", "invalid admin key")
)

// ============================================================================
// Validation Errors (ARG)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError(KindValidation, "PM-ARG-4000", "bad request")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError(KindValidation, "PM-ARG-4001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError(KindValidation, "PM-ARG-4002", "missing required argument")

	// ErrPayloadTooLarge indicates the request body exceeds the configured limit.
	ErrPayloadTooLarge = NewDomainError(KindValidation, "PM-ARG-4130", "payload too large")
)

// ============================================================================
// Rate Limit Errors
// ============================================================================

var (
	// ErrRateLimited indicates too many requests from one identifier.
	ErrRateLimited = NewDomainError(KindRateLimited, "PM-SYS-4290", "too many requests")
)

// ============================================================================
// Collaborator Errors (STOR, FS, NET, RT)
// ============================================================================

var (
	// ErrStorageUnavailable indicates object storage failed.
	ErrStorageUnavailable = NewDomainError(KindStorage, "PM-STOR-5030", "storage temporarily unavailable")

	// ErrFilesystem indicates a local file operation failed.
	ErrFilesystem = NewDomainError(KindFilesystem, "PM-FS-5000", "file operation failed")

	// ErrNetworkUnavailable indicates a remote collaborator is unreachable.
	ErrNetworkUnavailable = NewDomainError(KindNetwork, "PM-NET-5030", "network temporarily unavailable")

	// ErrRealtimeTransport indicates the realtime transport failed.
	ErrRealtimeTransport = NewDomainError(KindRealtime, "PM-RT-5030", "realtime connection failed, reconnect")

	// ErrSlowConsumer indicates a realtime peer could not keep up with broadcasts.
	ErrSlowConsumer = NewDomainError(KindRealtime, "PM-RT-5031", "connection too slow, reconnect and request state")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError(KindUnknown, "PM-SYS-5000", "internal server error")

	// ErrNotFound indicates the route or resource does not exist.
	ErrNotFound = NewDomainError(KindValidation, "PM-SYS-4040", "not found")

	// ErrServiceUnavailable indicates the service is shutting down or not ready.
	ErrServiceUnavailable = NewDomainError(KindUnknown, "PM-SYS-5030", "service unavailable")
)
