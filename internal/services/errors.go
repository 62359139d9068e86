package services

import "errors"

var (
	// ErrInsufficientSeats is returned when a reservation asks for more seats
	// than the ride has available.
	ErrInsufficientSeats = errors.New("insufficient seats available")

	// ErrInsufficientBalance is returned when a debit would take a wallet
	// negative.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrInvalidPaymentMethod is returned for unknown payment method values.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrDuplicateBooking is returned when the user already holds a pending or
	// confirmed booking on the ride.
	ErrDuplicateBooking = errors.New("user already has an active booking on this ride")

	// ErrBookingNotPending is returned by transitions valid only from the
	// pending state.
	ErrBookingNotPending = errors.New("booking is not pending")

	// ErrNotRideOwner is returned when a driver-only operation is attempted by
	// someone other than the ride's driver.
	ErrNotRideOwner = errors.New("ride belongs to another driver")

	// ErrTransactionNotFound is returned when a provider event references an
	// unknown correlation id. Callback handlers acknowledge the provider and
	// discard the event.
	ErrTransactionNotFound = errors.New("transaction not found for correlation id")
)
