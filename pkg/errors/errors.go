// Package errors provides the structured error type shared by remotefs components.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// Configuration
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Remote metadata service
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeServerError  ErrorCode = "SERVER_ERROR"
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
	ErrCodeUnhealthy    ErrorCode = "REMOTE_UNHEALTHY"

	// Mount lifecycle
	ErrCodeMountFailed      ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed    ErrorCode = "UNMOUNT_FAILED"
	ErrCodeAlreadyMounted   ErrorCode = "MOUNT_ALREADY_ACTIVE"
	ErrCodeNotMounted       ErrorCode = "MOUNT_NOT_ACTIVE"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodePathInvalid      ErrorCode = "PATH_INVALID"

	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory groups error codes.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryRemote        ErrorCategory = "remote"
	CategoryConnection    ErrorCategory = "connection"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryInternal      ErrorCategory = "internal"
)

// RemoteFSError is a structured error with context for logs and operators.
type RemoteFSError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Retryable  bool `json:"retryable"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *RemoteFSError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Component != "" {
		if e.Operation != "" {
			msg = fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, msg)
		} else {
			msg = fmt.Sprintf("[%s] %s", e.Component, msg)
		}
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RemoteFSError) Unwrap() error {
	return e.Cause
}

// Is matches another RemoteFSError with the same code.
func (e *RemoteFSError) Is(target error) bool {
	var other *RemoteFSError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// String returns a key=value rendering for debug logs.
func (e *RemoteFSError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.HTTPStatus != 0 {
		parts = append(parts, fmt.Sprintf("HTTPStatus=%d", e.HTTPStatus))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("RemoteFSError{%s}", strings.Join(parts, ", "))
}

// NewError creates an error with category and retryability derived from code.
func NewError(code ErrorCode, message string) *RemoteFSError {
	return &RemoteFSError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
		Context:   make(map[string]string),
		Retryable: IsRetryableByDefault(code),
	}
}

// Newf is NewError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *RemoteFSError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category of a code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeConfigLoad, ErrCodeConfigSave, ErrCodeConfigValidation:
		return CategoryConfiguration
	case ErrCodeNotFound, ErrCodeServerError, ErrCodeUnhealthy:
		return CategoryRemote
	case ErrCodeNetworkError:
		return CategoryConnection
	case ErrCodeMountFailed, ErrCodeUnmountFailed, ErrCodeAlreadyMounted, ErrCodeNotMounted,
		ErrCodePermissionDenied, ErrCodePathInvalid:
		return CategoryFilesystem
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault reports whether a failure with this code may succeed on retry.
func IsRetryableByDefault(code ErrorCode) bool {
	return code == ErrCodeNetworkError
}

// GetCode extracts the code of the first RemoteFSError in err's chain.
func GetCode(err error) ErrorCode {
	var rfsErr *RemoteFSError
	if errors.As(err, &rfsErr) {
		return rfsErr.Code
	}
	return ""
}

// IsNotFound reports whether err is a remote not-found.
func IsNotFound(err error) bool {
	return GetCode(err) == ErrCodeNotFound
}

// IsServerError reports whether err is a remote non-success status or an undecodable response.
func IsServerError(err error) bool {
	return GetCode(err) == ErrCodeServerError
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	return GetCode(err) == ErrCodeNetworkError
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var rfsErr *RemoteFSError
	if errors.As(err, &rfsErr) {
		return rfsErr.Retryable
	}
	return false
}

// WithContext adds a context key.
func (e *RemoteFSError) WithContext(key, value string) *RemoteFSError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds a detail value.
func (e *RemoteFSError) WithDetail(key string, value interface{}) *RemoteFSError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component.
func (e *RemoteFSError) WithComponent(component string) *RemoteFSError {
	e.Component = component
	return e
}

// WithOperation sets the operation.
func (e *RemoteFSError) WithOperation(operation string) *RemoteFSError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *RemoteFSError) WithCause(cause error) *RemoteFSError {
	e.Cause = cause
	return e
}

// WithHTTPStatus records the status the remote service answered with.
func (e *RemoteFSError) WithHTTPStatus(status int) *RemoteFSError {
	e.HTTPStatus = status
	return e
}

// GetRecommendation returns a hint for the operator.
func (e *RemoteFSError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeNetworkError: "The metadata service could not be reached. " +
			"Check the server URL and that the service is running.",
		ErrCodeServerError: "The metadata service answered with an error or an unexpected payload. " +
			"Check the service logs for the request ID.",
		ErrCodeUnhealthy: "The metadata service health endpoint did not report success. " +
			"Start the service or point --server at a healthy instance.",
		ErrCodePermissionDenied: "Mounting was not permitted. " +
			"Check the mount point ownership and that FUSE is available to this user.",
		ErrCodeAlreadyMounted: "Another remotefs process is serving this mount point. " +
			"Unmount it first or choose another mount point.",
		ErrCodeInvalidConfig: "Configuration validation failed. " +
			"Check your configuration file syntax and required parameters.",
	}
	if rec, ok := recommendations[e.Code]; ok {
		return rec
	}
	return "Please check the error message for details."
}
