package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string

const (
	RideStatusAvailable   RideStatus = "available"
	RideStatusFullyBooked RideStatus = "fully_booked"
)

type Ride struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DriverID          primitive.ObjectID `json:"driver_id" bson:"driver_id" validate:"required"`
	DepartureLocation string             `json:"departure_location" bson:"departure_location" validate:"required"`
	Destination       string             `json:"destination" bson:"destination" validate:"required"`
	DepartureTime     time.Time          `json:"departure_time" bson:"departure_time" validate:"required"`
	AvailableSeats    int                `json:"available_seats" bson:"available_seats" default:"1"`
	Price             float64            `json:"price" bson:"price" validate:"required"`
	PlatformFee       float64            `json:"platform_fee" bson:"platform_fee" default:"100"`
	AdditionalInfo    string             `json:"additional_info" bson:"additional_info"`
	Status            RideStatus         `json:"status" bson:"status" default:"available"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// IsAvailable reports whether the ride can still accept bookings.
func (r *Ride) IsAvailable() bool {
	return r.AvailableSeats > 0 && r.Status == RideStatusAvailable
}
