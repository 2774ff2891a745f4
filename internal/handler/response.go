package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bahon/internal/repository"
	"bahon/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrNoLocationData):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case service.IsInvalidInput(err):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrRiderBusy),
		errors.Is(err, service.ErrAlreadyOnBoard),
		errors.Is(err, service.ErrDuplicateEvent):
		return http.StatusConflict

	// Processing failed after the event was accepted
	case errors.Is(err, service.ErrSettlementFailed):
		return http.StatusUnprocessableEntity

	// Store unavailable
	case errors.Is(err, service.ErrLedgerWriteFailed):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
