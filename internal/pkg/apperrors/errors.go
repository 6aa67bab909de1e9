package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInsufficientPayment     ErrorType = "INSUFFICIENT_PAYMENT"
	ErrInvalidTierTransition   ErrorType = "INVALID_TIER_TRANSITION"
	ErrLimitReached            ErrorType = "LIMIT_REACHED"
	ErrExceedsTransactionLimit ErrorType = "EXCEEDS_TRANSACTION_LIMIT"
	ErrExceedsPeriodLimit      ErrorType = "EXCEEDS_PERIOD_LIMIT"
	ErrVaultPaused             ErrorType = "VAULT_PAUSED"
	ErrUnauthorized            ErrorType = "UNAUTHORIZED"
	ErrInvalidConfiguration    ErrorType = "INVALID_CONFIGURATION"
	ErrInsufficientBalance     ErrorType = "INSUFFICIENT_BALANCE"
	ErrInvalidRequest          ErrorType = "INVALID_REQUEST"
	ErrNotFound                ErrorType = "NOT_FOUND"
	ErrReadOnly                ErrorType = "READ_ONLY"
	ErrInternal                ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...interface{}) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewLimitReached(msg string) *AppError {
	return New(ErrLimitReached, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewUnauthorized(msg string) *AppError {
	return New(ErrUnauthorized, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err is an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == errType
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInsufficientPayment:
		return http.StatusPaymentRequired
	case ErrInvalidTierTransition, ErrExceedsTransactionLimit,
		ErrInvalidConfiguration, ErrInsufficientBalance, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrLimitReached, ErrExceedsPeriodLimit:
		return http.StatusTooManyRequests
	case ErrVaultPaused, ErrReadOnly:
		return http.StatusServiceUnavailable
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrInsufficientPayment:
		return "Retry with a payment covering the tier price."
	case ErrInvalidTierTransition:
		return "Upgrade target must be strictly higher than the current tier."
	case ErrLimitReached:
		return "Quota exhausted for the current window; wait for rollover."
	case ErrExceedsTransactionLimit:
		return "Reduce the withdrawal amount below the per-transaction cap."
	case ErrExceedsPeriodLimit:
		return "Reduce the amount or wait for the rate-limit period to roll over."
	case ErrVaultPaused:
		return "Withdrawals are frozen until the vault is unpaused."
	case ErrInvalidConfiguration:
		return "Rate-limit period and limit must both be zero or both be nonzero."
	case ErrReadOnly:
		return "Service is in read-only maintenance mode."
	default:
		return ""
	}
}
