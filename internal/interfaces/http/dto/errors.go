package dto

import (
	"net/http"

	"github.com/shopledger/backend/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep the code of their
// shared.DomainError.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeInvalidToken    = "INVALID_TOKEN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// Validation -> 400
	shared.CodeValidation:       http.StatusBadRequest,
	shared.CodeInvalidAmount:    http.StatusBadRequest,
	shared.CodeCurrencyMismatch: http.StatusBadRequest,
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeInvalidJSON:          http.StatusBadRequest,

	// Auth
	shared.CodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeInvalidToken:     http.StatusUnauthorized,
	shared.CodeForbidden:    http.StatusForbidden,

	// Resources
	shared.CodeNotFound:            http.StatusNotFound,
	shared.CodeAlreadyExists:       http.StatusConflict,
	shared.CodeDuplicateReference:  http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,

	// Ledger rules -> 422, a locked wallet is 423
	shared.CodeInvalidState:        http.StatusUnprocessableEntity,
	shared.CodeInsufficientBalance: http.StatusUnprocessableEntity,
	shared.CodeAccountLocked:       http.StatusLocked,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
