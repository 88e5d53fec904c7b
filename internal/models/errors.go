package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"coffer/internal/codec"
)

// ErrorResponse represents a standardized API error response body.
type ErrorResponse struct {
	Code   string `json:"code" cbor:"code"`
	Detail string `json:"detail" cbor:"detail"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors

// NewNotFoundError reports a missing target. It is also used deliberately
// where revealing existence would leak membership: an unauthorized lookup
// and an absent one produce the identical outcome.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    "not_found",
		Status:  fiber.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    "permission_denied",
		Status:  fiber.StatusForbidden,
		Message: message,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "validation_error",
		Status:  fiber.StatusUnprocessableEntity,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    "conflict",
		Status:  fiber.StatusConflict,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "unauthorized",
		Status:  fiber.StatusUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "internal_error",
		Status:  fiber.StatusInternalServerError,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError writes a standardized error response, negotiating the
// body encoding. Internal error details are never leaked to clients.
func RespondWithError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternalError(err)
	}
	return codec.Respond(c, appErr.Status, ErrorResponse{
		Code:   appErr.Code,
		Detail: appErr.Message,
	})
}
