// Package errors defines the service error taxonomy. Engine packages
// return plain typed errors; only the HTTP layer wraps them into AppError
// via ToAppError, which maps engine validation failures to 400 responses.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/graph"
	"github.com/sybilwatch/trustgraph/internal/reputation"
)

// ErrorCategory classifies an error for handling and logging.
type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "validation"
	CategoryNotFound     ErrorCategory = "not_found"
	CategoryRateLimit    ErrorCategory = "rate_limit"
	CategoryUnauthorized ErrorCategory = "unauthorized"
	CategoryDatabase     ErrorCategory = "database"
	CategoryNetwork      ErrorCategory = "network"
	CategoryTimeout      ErrorCategory = "timeout"
	CategoryInternal     ErrorCategory = "internal"
)

// AppError wraps an errbuilder error with HTTP and request context.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from an errbuilder with category and
// HTTP status.
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError reports invalid graph, account or config input.
func NewValidationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewValidationErrorWithMap reports multiple field-level validation
// failures in one response.
func NewValidationErrorWithMap(fields map[string]string) *AppError {
	errMap := errbuilder.ErrorMap{}
	for field, message := range fields {
		errMap.Set(field, stderrors.New(message))
	}
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("invalid configuration").
		WithDetails(errbuilder.NewErrDetails(errMap))
	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError reports an unknown run, node or account ID.
func NewNotFoundError(kind, id string) *AppError {
	errMap := errbuilder.ErrorMap{}
	errMap.Set(kind, stderrors.New(id))
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found", kind)).
		WithDetails(errbuilder.NewErrDetails(errMap))
	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewRateLimitError reports an exhausted rate limit budget.
func NewRateLimitError(retryAfter string) *AppError {
	errMap := errbuilder.ErrorMap{}
	errMap.Set("retry_after", stderrors.New(retryAfter))
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("rate limit exceeded").
		WithDetails(errbuilder.NewErrDetails(errMap))
	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewUnauthorizedError reports a missing or invalid admin token.
func NewUnauthorizedError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnauthenticated).
		WithMsg(message)
	return NewAppError(builder, CategoryUnauthorized, http.StatusUnauthorized)
}

// NewDatabaseError reports a run-history store failure.
func NewDatabaseError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryDatabase, http.StatusInternalServerError)
}

// NewNetworkError reports a graph-source adapter failure.
func NewNetworkError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryNetwork, http.StatusBadGateway)
}

// NewTimeoutError reports an exceeded deadline.
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewInternalError reports an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// ToAppError converts any error to an AppError. Engine validation types
// map to 400 with the original message preserved so the caller can locate
// the offending node, edge or field.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var graphErr *graph.InvalidGraphError
	if stderrors.As(err, &graphErr) {
		return NewValidationError(graphErr.Error(), nil)
	}
	var acctErr *clustering.InvalidAccountError
	if stderrors.As(err, &acctErr) {
		return NewValidationError(acctErr.Error(), nil)
	}
	var repCfgErr *reputation.ConfigError
	if stderrors.As(err, &repCfgErr) {
		return NewValidationErrorWithMap(repCfgErr.Fields)
	}
	var clusCfgErr *clustering.ConfigError
	if stderrors.As(err, &clusCfgErr) {
		return NewValidationErrorWithMap(clusCfgErr.Fields)
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("computation deadline exceeded", err)
	}

	return NewInternalError("an unexpected error occurred", err)
}

// Respond writes an AppError to the response and logs it.
func Respond(c *gin.Context, err error) {
	appErr := ToAppError(err)
	appErr.RequestID = c.GetHeader("X-Request-ID")
	LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

// ErrorHandler is gin middleware writing a structured response for errors
// attached to the context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			Respond(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryHandler converts panics into structured 500 responses.
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError("panic recovered", fmt.Errorf("%v", recovered))
		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}

// LogError logs an error at a level appropriate to its category.
func LogError(c *gin.Context, err *AppError) {
	entry := slog.With(
		"error_category", err.Category,
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)

	switch err.Category {
	case CategoryValidation, CategoryNotFound, CategoryRateLimit, CategoryUnauthorized:
		entry.Warn(err.ErrBuilder.Msg)
	case CategoryNetwork, CategoryTimeout:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			entry.Info(err.ErrBuilder.Msg, "cause", cause)
		} else {
			entry.Info(err.ErrBuilder.Msg)
		}
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			entry.Error(err.ErrBuilder.Msg, "cause", cause)
		} else {
			entry.Error(err.ErrBuilder.Msg)
		}
	}
}

// WrapError adds formatted context while preserving the cause chain.
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// SafeClose closes a resource and logs failures instead of returning them.
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close resource", "resource", resourceName, "error", err)
	}
}
