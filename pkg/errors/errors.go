package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/resicare/resicare-backend/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")

	// Stock business rules. These are expected runtime conditions that
	// require caller or operator action, never automatic retries.
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientQuantity = errors.New("insufficient lot quantity")
	ErrOwnershipMismatch    = errors.New("ownership mismatch")
	ErrNotLinkedToStock     = errors.New("not linked to stock")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		MessageKey: "errors.unauthorized",
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		MessageKey: "errors.forbidden",
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		MessageKey: "errors.token_expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		MessageKey: "errors.token_invalid",
		StatusCode: http.StatusUnauthorized,
	}
}

// Stock business-rule constructors

// InsufficientStock signals that no active, unexpired lot of the item can
// cover the requested quantity. Surfaced distinctly so callers can prompt
// for restock.
func InsufficientStock(itemName string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for item %s", itemName),
		MessageKey: "errors.insufficient_stock",
		Params:     map[string]string{"item": itemName},
		StatusCode: http.StatusConflict,
	}
}

// InsufficientQuantity signals an attempt to consume more units than a
// single lot currently holds.
func InsufficientQuantity(lotNumber string) *AppError {
	return &AppError{
		Err:        ErrInsufficientQuantity,
		Code:       "INSUFFICIENT_QUANTITY",
		Message:    fmt.Sprintf("lot %s does not hold the requested quantity", lotNumber),
		MessageKey: "errors.insufficient_quantity",
		Params:     map[string]string{"lot": lotNumber},
		StatusCode: http.StatusConflict,
	}
}

// OwnershipMismatch carries the specific inconsistency between a
// prescription's payment origin and the linked stock item's ownership.
// The reason is diagnostic and is never silently repaired.
func OwnershipMismatch(reason string) *AppError {
	return &AppError{
		Err:        ErrOwnershipMismatch,
		Code:       "OWNERSHIP_MISMATCH",
		Message:    fmt.Sprintf("prescription and stock item ownership do not match: %s", reason),
		MessageKey: "errors.ownership_mismatch",
		Params:     map[string]string{"reason": reason},
		StatusCode: http.StatusUnprocessableEntity,
		Details:    map[string]string{"reason": reason},
	}
}

// NotLinkedToStock signals a stock-funded prescription with no stock item
// linkage at administration time.
func NotLinkedToStock() *AppError {
	return &AppError{
		Err:        ErrNotLinkedToStock,
		Code:       "NOT_LINKED_TO_STOCK",
		Message:    "prescription is not linked to a stock item",
		MessageKey: "errors.not_linked_to_stock",
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
