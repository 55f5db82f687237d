// Package errors provides error handling and HTTP status code mapping for
// the sync service API.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	syncsvc "github.com/IlyaTsupryk/ggrc-core/internal/sync"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// General errors
	ErrorCodeUnknown        ErrorCode = "UNKNOWN"
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"

	// Domain errors
	ErrorCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrorCodeCommitFailed ErrorCode = "COMMIT_FAILED"

	// Auth errors
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden    ErrorCode = "FORBIDDEN"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError processes an error and writes an appropriate HTTP response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")
	h.WriteErrorResponse(w, HTTPStatus(err), Code(err), err.Error(), requestID)
}

// HTTPStatus maps a service error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var validationErr *syncsvc.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Code maps a service error to an application error code.
func Code(err error) ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}
	var validationErr *syncsvc.ValidationError
	if errors.As(err, &validationErr) {
		return ErrorCodeInvalidRequest
	}
	var commitErr *syncsvc.CommitError
	if errors.As(err, &commitErr) {
		return ErrorCodeCommitFailed
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrorCodeNotFound
	}
	return ErrorCodeInternalError
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteUnauthorizedError writes an unauthorized response.
func (h *Handler) WriteUnauthorizedError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusUnauthorized, ErrorCodeUnauthorized, message, requestID)
}

// WriteInternalError writes an internal error response.
func (h *Handler) WriteInternalError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, message, requestID)
}

// WriteRateLimitedError writes a rate limit exceeded response.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}
