// Package errors provides custom error types for the brokerfolio API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
	ErrInvalidAPIKey      = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrPipelineDisabled   = &AppError{Code: "PIPELINE_DISABLED", Message: "Pipeline endpoints are disabled on this server", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail    = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "A user with this username already exists", StatusCode: http.StatusConflict}
)

// Broker errors.
var (
	ErrBrokerNotFound   = &AppError{Code: "BROKER_NOT_FOUND", Message: "Broker not found", StatusCode: http.StatusNotFound}
	ErrDuplicateBroker  = &AppError{Code: "DUPLICATE_BROKER", Message: "A broker with this name already exists", StatusCode: http.StatusConflict}
	ErrBrokerInUse      = &AppError{Code: "BROKER_IN_USE", Message: "Broker still has portfolios or investments", StatusCode: http.StatusConflict}
	ErrInvalidRating    = &AppError{Code: "INVALID_RATING", Message: "Rating must be between 1 and 5", StatusCode: http.StatusBadRequest}
	ErrInvalidRatingCat = &AppError{Code: "INVALID_RATING_CATEGORY", Message: "Unsupported rating category", StatusCode: http.StatusBadRequest}
)

// Instrument errors.
var (
	ErrInstrumentNotFound  = &AppError{Code: "INSTRUMENT_NOT_FOUND", Message: "Instrument not found", StatusCode: http.StatusNotFound}
	ErrDuplicateInstrument = &AppError{Code: "DUPLICATE_INSTRUMENT", Message: "An instrument with this symbol already exists", StatusCode: http.StatusConflict}
	ErrInvalidPrice        = &AppError{Code: "INVALID_PRICE", Message: "Price must be greater than zero", StatusCode: http.StatusBadRequest}
)

// Portfolio errors.
var (
	ErrPortfolioNotFound = &AppError{Code: "PORTFOLIO_NOT_FOUND", Message: "Portfolio not found", StatusCode: http.StatusNotFound}
	ErrHoldingNotFound   = &AppError{Code: "HOLDING_NOT_FOUND", Message: "Holding not found", StatusCode: http.StatusNotFound}
	ErrInvalidQuantity   = &AppError{Code: "INVALID_QUANTITY", Message: "Quantity must be greater than zero", StatusCode: http.StatusBadRequest}
)

// Investment errors.
var (
	ErrInvestmentNotFound = &AppError{Code: "INVESTMENT_NOT_FOUND", Message: "Investment not found", StatusCode: http.StatusNotFound}
	ErrInvalidTerm        = &AppError{Code: "INVALID_TERM", Message: "End date must not be before start date", StatusCode: http.StatusBadRequest}
)

// Message errors.
var (
	ErrMessageNotFound = &AppError{Code: "MESSAGE_NOT_FOUND", Message: "Message not found", StatusCode: http.StatusNotFound}
	ErrInvalidParent   = &AppError{Code: "INVALID_PARENT", Message: "Parent message not found", StatusCode: http.StatusBadRequest}
)

// Quote provider errors.
var (
	ErrQuoteNotConfigured = &AppError{Code: "QUOTE_NOT_CONFIGURED", Message: "Quote provider credentials are not configured", StatusCode: http.StatusServiceUnavailable}
	ErrQuoteAuthFailed    = &AppError{Code: "QUOTE_AUTH_FAILED", Message: "Could not authenticate with the quote provider", StatusCode: http.StatusUnauthorized}
	ErrQuoteUnavailable   = &AppError{Code: "QUOTE_UNAVAILABLE", Message: "Price not available for this symbol", StatusCode: http.StatusNotFound}
)

// Report errors.
var (
	ErrUnsupportedFormat = &AppError{Code: "UNSUPPORTED_FORMAT", Message: "Unsupported report format", StatusCode: http.StatusBadRequest}
)
