package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for the current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInvalidTransition is used when an order status edge is not allowed
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeInsufficientStock is used when stock is insufficient
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeCannotCancel is used when the order is past the cancellable stages
	ErrCodeCannotCancel = "ERR_CANNOT_CANCEL"
	// ErrCodeReturnWindowClosed is used when a return is requested too late
	ErrCodeReturnWindowClosed = "ERR_RETURN_WINDOW_CLOSED"
	// ErrCodeRefundExceedsAvailable is used when a refund exceeds the refundable balance
	ErrCodeRefundExceedsAvailable = "ERR_REFUND_EXCEEDS_AVAILABLE"
	// ErrCodeDuplicatePayment is used when the order already has an active payment
	ErrCodeDuplicatePayment = "ERR_DUPLICATE_PAYMENT"
	// ErrCodeSignatureMismatch is used when a payment signature fails verification
	ErrCodeSignatureMismatch = "ERR_SIGNATURE_MISMATCH"
)

// Upstream error codes
const (
	// ErrCodeGatewayUnavailable is used when the payment gateway cannot be reached
	ErrCodeGatewayUnavailable = "ERR_GATEWAY_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation and input errors -> 400 Bad Request
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:           http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:      http.StatusUnprocessableEntity,
	ErrCodeCannotCancel:           http.StatusUnprocessableEntity,
	ErrCodeReturnWindowClosed:     http.StatusUnprocessableEntity,
	ErrCodeRefundExceedsAvailable: http.StatusUnprocessableEntity,
	ErrCodeDuplicatePayment:       http.StatusConflict,
	ErrCodeSignatureMismatch:      http.StatusBadRequest,

	// Upstream errors -> 502 Bad Gateway
	ErrCodeGatewayUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the wire format
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_STATE":            ErrCodeInvalidState,
	"UNAUTHORIZED":             ErrCodeUnauthorized,
	"FORBIDDEN":                ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"OPTIMISTIC_LOCK_FAILED":   ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":       ErrCodeInsufficientStock,
	"INVALID_TRANSITION":       ErrCodeInvalidTransition,
	"CANNOT_CANCEL":            ErrCodeCannotCancel,
	"RETURN_WINDOW_CLOSED":     ErrCodeReturnWindowClosed,
	"REFUND_EXCEEDS_AVAILABLE": ErrCodeRefundExceedsAvailable,
	"DUPLICATE_PAYMENT":        ErrCodeDuplicatePayment,
	"SIGNATURE_MISMATCH":       ErrCodeSignatureMismatch,
	"GATEWAY_UNAVAILABLE":      ErrCodeGatewayUnavailable,
	"TOY_UNAVAILABLE":          ErrCodeInvalidState,
	"ALERT_NOT_ACTIVE":         ErrCodeInvalidState,
	"RESERVATION_NOT_ACTIVE":   ErrCodeInvalidState,
	"UNEXPECTED_PAYMENT_STATE": ErrCodeInvalidState,
	"INVALID_WEBHOOK_PAYLOAD":  ErrCodeBadRequest,
	"NO_ITEMS":                 ErrCodeInvalidInput,
	"INVALID_QUANTITY":         ErrCodeInvalidInput,
	"INVALID_DELTA":            ErrCodeInvalidInput,
	"INVALID_REASON":           ErrCodeInvalidInput,
	"INVALID_TOY":              ErrCodeInvalidInput,
	"INVALID_PRICE":            ErrCodeInvalidInput,
	"VALIDATION_ERROR":         ErrCodeValidation,
	"BAD_REQUEST":              ErrCodeBadRequest,
	"INTERNAL_ERROR":           ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the wire format.
// If the code is already in the wire format or unknown, returns it as-is.
func NormalizeErrorCode(code string) string {
	if wireCode, ok := DomainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
