package interfaces

import (
	"context"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Booking, int64, error)
	GetByRideID(ctx context.Context, rideID primitive.ObjectID) ([]*models.Booking, error)

	// HasActiveBooking reports whether the user already holds a pending or
	// confirmed booking on the ride.
	HasActiveBooking(ctx context.Context, userID, rideID primitive.ObjectID) (bool, error)

	// GetOldestPendingUnpaid returns the user's single oldest pending, unpaid
	// booking, or ErrNotFound. Used only when a payment carries no explicit
	// booking link.
	GetOldestPendingUnpaid(ctx context.Context, userID primitive.ObjectID) (*models.Booking, error)
}
