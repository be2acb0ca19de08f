// Package apierrors generalizes the teacher's src/errors package into
// the full error taxonomy of spec.md §7: one sentinel per domain
// failure plus an APIError envelope carrying the HTTP status and code
// the handlers layer serializes.
package apierrors

import (
	"errors"
	"net/http"
)

// APIError is the uniform JSON error envelope payload described in
// spec.md §6: {"error": {"code", "message", "violations"?}}.
type APIError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
	Status     int      `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

// Envelope wraps an APIError in the {"error": ...} response shape.
type Envelope struct {
	Error *APIError `json:"error"`
}

// Error codes, one per spec.md §6/§7 mapping entry.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeIdempotencyKeyRequired = "IDEMPOTENCY_KEY_REQUIRED"
	CodeIdempotencyKeyReuse    = "IDEMPOTENCY_KEY_REUSE"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeTransferNotFound       = "TRANSFER_NOT_FOUND"
	CodeAccountFrozen          = "ACCOUNT_FROZEN"
	CodeAccountClosed          = "ACCOUNT_CLOSED"
	CodeInvalidAccountState    = "INVALID_ACCOUNT_STATE"
	CodeNonZeroBalanceOnClose  = "NON_ZERO_BALANCE_ON_CLOSE"
	CodeInvalidTransferState   = "INVALID_TRANSFER_STATE"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeSameAccountTransfer    = "SAME_ACCOUNT_TRANSFER"
	CodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	CodeInvalidTransferAmount  = "INVALID_TRANSFER_AMOUNT"
	CodeInternalError          = "INTERNAL_ERROR"
)

// Sentinel domain errors. Domain and service packages return these
// (wrapped with fmt.Errorf("...: %w", ...) where useful); the handlers
// layer maps them to APIError via MapDomainError.
var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrTransferNotFound      = errors.New("transfer not found")
	ErrAccountFrozen         = errors.New("account is frozen")
	ErrAccountClosed         = errors.New("account is closed")
	ErrInvalidAccountState   = errors.New("invalid account state transition")
	ErrNonZeroBalanceOnClose = errors.New("account balance must be zero to close")
	ErrInvalidTransferState  = errors.New("invalid transfer state transition")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSameAccountTransfer   = errors.New("source and destination accounts must differ")
	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrInvalidTransferAmount = errors.New("transfer amount must be positive")
	ErrBalanceOverflow       = errors.New("balance overflow")
)

// DomainCode returns the spec.md §6/§7 error code for a sentinel
// domain error, or "" if err does not match a known sentinel.
func DomainCode(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrTransferNotFound):
		return CodeTransferNotFound
	case errors.Is(err, ErrAccountFrozen):
		return CodeAccountFrozen
	case errors.Is(err, ErrAccountClosed):
		return CodeAccountClosed
	case errors.Is(err, ErrInvalidAccountState):
		return CodeInvalidAccountState
	case errors.Is(err, ErrNonZeroBalanceOnClose):
		return CodeNonZeroBalanceOnClose
	case errors.Is(err, ErrInvalidTransferState):
		return CodeInvalidTransferState
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrSameAccountTransfer):
		return CodeSameAccountTransfer
	case errors.Is(err, ErrCurrencyMismatch):
		return CodeCurrencyMismatch
	case errors.Is(err, ErrInvalidTransferAmount):
		return CodeInvalidTransferAmount
	default:
		return ""
	}
}

// MapDomainError converts a sentinel domain error into the HTTP status
// + APIError pair from spec.md §6. Unrecognized errors map to a 500
// internal error, per §7's "Overflow ... surface as internal error".
func MapDomainError(err error) *APIError {
	code := DomainCode(err)
	switch code {
	case CodeAccountNotFound, CodeTransferNotFound:
		return &APIError{Code: code, Message: err.Error(), Status: http.StatusNotFound}
	case CodeAccountFrozen, CodeAccountClosed, CodeInvalidAccountState,
		CodeNonZeroBalanceOnClose, CodeInvalidTransferState:
		return &APIError{Code: code, Message: err.Error(), Status: http.StatusConflict}
	case CodeInsufficientFunds, CodeSameAccountTransfer, CodeCurrencyMismatch,
		CodeInvalidTransferAmount:
		return &APIError{Code: code, Message: err.Error(), Status: http.StatusUnprocessableEntity}
	default:
		return &APIError{Code: CodeInternalError, Message: "internal server error", Status: http.StatusInternalServerError}
	}
}

// NewValidationError builds a 400 VALIDATION_ERROR.
func NewValidationError(message string, violations ...string) *APIError {
	return &APIError{Code: CodeValidation, Message: message, Violations: violations, Status: http.StatusBadRequest}
}

// NewIdempotencyKeyRequired builds the 400 IDEMPOTENCY_KEY_REQUIRED error.
func NewIdempotencyKeyRequired() *APIError {
	return &APIError{
		Code:    CodeIdempotencyKeyRequired,
		Message: "Idempotency-Key header is required for this endpoint",
		Status:  http.StatusBadRequest,
	}
}

// NewIdempotencyKeyReuse builds the 422 IDEMPOTENCY_KEY_REUSE error.
func NewIdempotencyKeyReuse() *APIError {
	return &APIError{
		Code:    CodeIdempotencyKeyReuse,
		Message: "idempotency key was already used with a different request",
		Status:  http.StatusUnprocessableEntity,
	}
}

// NewInternalError builds a 500 wrapping an underlying cause without
// leaking its message to the caller.
func NewInternalError(cause error) *APIError {
	return &APIError{Code: CodeInternalError, Message: "internal server error", Status: http.StatusInternalServerError}
}

// AsAPIError unwraps err looking for an *APIError, falling back to
// MapDomainError, and finally to a generic internal error.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if DomainCode(err) != "" {
		return MapDomainError(err)
	}
	return NewInternalError(err)
}
