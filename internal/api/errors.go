// errors.go - Structured error handling for API responses
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baksh-audit/survey-backend/internal/catalog"
	"github.com/baksh-audit/survey-backend/internal/request"
	"github.com/baksh-audit/survey-backend/internal/survey"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int
	Code    string
	Title   string
	Message string
	Details string
	Extra   map[string]any
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// With attaches a diagnostic field to the error body.
func (e *APIError) With(key string, value any) *APIError {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

// MarshalJSON flattens Extra into the error object.
func (e *APIError) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(e.Extra)+4)
	maps.Copy(body, e.Extra)
	body["error"] = e.Title
	body["message"] = e.Message
	body["code"] = e.Code
	if e.Details != "" {
		body["error_details"] = e.Details
	}
	return json.Marshal(body)
}

// Response renders e as an envelope.
func (e *APIError) Response() Response {
	return JSON(e.Status, e)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(title, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Title:   title,
		Message: message,
	}
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	title, message := "Missing "+field, fmt.Sprintf("validation failed for field: %s", field)
	switch field {
	case "type":
		message = "Type must be specified (company or employee)"
	case "company_id":
		message = "Company ID is required"
	case "employee_id":
		message = "Employee ID is required for employee responses"
	}
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Title:   title,
		Message: message,
	}
}

// NewInvalidTypeError creates a 400 error for an unknown subject kind
func NewInvalidTypeError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_TYPE",
		Title:   "Invalid type parameter",
		Message: "Type must be either company or employee",
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(title, message string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Title:   title,
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Title:   "Internal server error",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromError maps a domain error onto an APIError. Causes of 500s are kept
// in Details only when verbose is set.
func FromError(err error, verbose bool) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var missing *survey.MissingFieldError
	switch {
	case errors.As(err, &missing):
		return NewValidationError(missing.Field)
	case errors.Is(err, survey.ErrMissingIdentifier):
		return NewValidationError("identifier")
	case errors.Is(err, survey.ErrInvalidSubjectKind), errors.Is(err, catalog.ErrInvalidKind):
		return NewInvalidTypeError()
	case errors.Is(err, request.ErrMalformed):
		return NewBadRequestError("Invalid JSON", "Request body must be valid JSON")
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrEmpty):
		return NewNotFoundError("Questions file not found", "No questions available")
	}

	var cause error
	if verbose {
		cause = err
	}
	return NewInternalError("An unexpected error occurred", cause)
}

// ErrorHandler renders errors raised inside echo (routing, body limits,
// middleware) with the same body and headers as operation errors.
// Usage: e.HTTPErrorHandler = api.ErrorHandler(verbose)
func ErrorHandler(verbose bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Title:   http.StatusText(httpErr.Code),
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			apiErr = FromError(err, verbose)
		}

		if err := writeResponse(c, apiErr.Response()); err != nil {
			c.Logger().Error(err)
		}
	}
}
