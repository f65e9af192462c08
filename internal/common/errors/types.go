package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents malformed or incomplete input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeAuthorization represents missing, invalid or insufficient credentials
	ErrTypeAuthorization ErrorType = "authorization"
	// ErrTypeForbidden represents cross-tenant or role access violations
	ErrTypeForbidden ErrorType = "forbidden"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeRateLimit represents rate limit rejections
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeUpstream represents failed provider API calls
	ErrTypeUpstream ErrorType = "upstream"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents unexpected internal errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError is the structured error carried across the gateway. StatusCode is
// the HTTP status the error maps to; for upstream errors it preserves the
// status originally returned by the provider.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	RetryAfter int                    `json:"retry_after,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// HTTPStatus returns the HTTP status code the error maps to
func (e *AppError) HTTPStatus() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeAuthorization:
		return http.StatusUnauthorized
	case ErrTypeForbidden:
		return http.StatusForbidden
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// AuthorizationError creates a new authorization error
func AuthorizationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuthorization,
		Message: msg,
	}
}

// ForbiddenError creates a new forbidden error
func ForbiddenError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeForbidden,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// RateLimitError creates a rate limit error carrying the retry-after hint in seconds
func RateLimitError(msg string, retryAfter int) *AppError {
	return &AppError{
		Type:       ErrTypeRateLimit,
		Message:    msg,
		RetryAfter: retryAfter,
	}
}

// UpstreamError creates an error for a failed provider call. A 4xx provider
// status is preserved and propagated; anything else surfaces as 502.
func UpstreamError(msg string, providerStatus int, cause error) *AppError {
	status := http.StatusBadGateway
	if providerStatus >= 400 && providerStatus < 500 {
		status = providerStatus
	}
	return &AppError{
		Type:       ErrTypeUpstream,
		Message:    msg,
		StatusCode: status,
		Cause:      cause,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// AsAppError returns err as an *AppError, wrapping unknown errors as internal
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return InternalError(err.Error(), err)
}
