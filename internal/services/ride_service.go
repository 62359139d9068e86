package services

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideService interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	List(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetByDriverID(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetBookings(ctx context.Context, rideID, driverID primitive.ObjectID) ([]*models.Booking, error)
}

type rideService struct {
	rideRepo    interfaces.RideRepository
	bookingRepo interfaces.BookingRepository
	logger      *logger.Logger
}

func NewRideService(rideRepo interfaces.RideRepository, bookingRepo interfaces.BookingRepository, logger *logger.Logger) RideService {
	return &rideService{
		rideRepo:    rideRepo,
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

func (s *rideService) Create(ctx context.Context, ride *models.Ride) error {
	if ride.AvailableSeats < 1 {
		return fmt.Errorf("ride must have at least one seat, got %d", ride.AvailableSeats)
	}
	if ride.Price <= 0 {
		return fmt.Errorf("ride price must be positive, got %.2f", ride.Price)
	}
	if ride.DepartureTime.Before(time.Now()) {
		return fmt.Errorf("departure time must be in the future")
	}

	ride.Status = models.RideStatusAvailable
	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"ride_id":   ride.ID.Hex(),
		"driver_id": ride.DriverID.Hex(),
		"seats":     ride.AvailableSeats,
	}).Info("Ride created")

	return nil
}

func (s *rideService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	return s.rideRepo.GetByID(ctx, id)
}

func (s *rideService) List(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return s.rideRepo.List(ctx, params)
}

func (s *rideService) GetByDriverID(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return s.rideRepo.GetByDriverID(ctx, driverID, params)
}

// GetBookings lists a ride's bookings for its driver.
func (s *rideService) GetBookings(ctx context.Context, rideID, driverID primitive.ObjectID) ([]*models.Booking, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrNotRideOwner
	}

	return s.bookingRepo.GetByRideID(ctx, rideID)
}
