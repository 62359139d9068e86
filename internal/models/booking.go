package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string
type PaymentMethod string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"

	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodCard   PaymentMethod = "card"
)

// IsValid reports whether m names a supported payment rail.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodWallet, PaymentMethodMpesa, PaymentMethodCard:
		return true
	}
	return false
}

type Booking struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID             primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	UserID             primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	NoOfSeats          int                `json:"no_of_seats" bson:"no_of_seats" validate:"required,min=1"`
	Status             BookingStatus      `json:"status" bson:"status" default:"pending"`
	IsPaid             bool               `json:"is_paid" bson:"is_paid" default:"false"`
	SeatsDeducted      bool               `json:"seats_deducted" bson:"seats_deducted" default:"false"`
	PaymentMethod      PaymentMethod      `json:"payment_method" bson:"payment_method"`
	CancellationReason string             `json:"cancellation_reason" bson:"cancellation_reason"`
	BookedAt           time.Time          `json:"booked_at" bson:"booked_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// ExpectedAmount is the fare owed for this booking at the given seat price.
func (b *Booking) ExpectedAmount(seatPrice float64) float64 {
	return seatPrice * float64(b.NoOfSeats)
}
