package interfaces

import (
	"context"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideRepository persists rides. Seat counts are mutated only through
// UpdateSeats, and only by the inventory service while it holds the ride's
// lock.
type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	List(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetByDriverID(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)

	// UpdateSeats persists a new seat count and the matching availability
	// status in one write.
	UpdateSeats(ctx context.Context, id primitive.ObjectID, availableSeats int, status models.RideStatus) error
}
