package utils

import "time"

// Application Constants
const (
	AppName    = "RideLink"
	AppVersion = "1.0.0"

	// Default values
	DefaultCurrency    = "KES"
	DefaultCountryCode = "+254"
	DefaultTimeZone    = "Africa/Nairobi"

	// Pagination
	DefaultPageSize = 10
	MaxPageSize     = 50
	MinPageSize     = 1

	// Wallet Constants
	DefaultOpeningBalance = 2600.0
	MinTopUpAmount        = 1.0
	MaxTopUpAmount        = 150000.0

	// Provider Constants
	ProviderCallTimeout = 30 * time.Second

	// Booking Constants
	MaxSeatsPerBooking = 10
)

// Response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error messages
const (
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Error codes surfaced in API responses
const (
	CodeInsufficientSeats    = "INSUFFICIENT_SEATS"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	CodeDuplicateBooking     = "DUPLICATE_BOOKING"
	CodeProviderAuthError    = "PROVIDER_AUTH_ERROR"
	CodeProviderRequestError = "PROVIDER_REQUEST_FAILED"
	CodeInvalidPhone         = "INVALID_PHONE"
	CodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
)
