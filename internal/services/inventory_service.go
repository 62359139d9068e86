package services

import (
	"context"
	"fmt"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/pkg/lock"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InventoryService owns ride seat counts. Reserve and Release are the only
// paths that mutate them; both run under the ride's exclusive lock so
// concurrent calls on the same ride observe a consistent count. Neither
// operation deduplicates: callers track whether a booking's seats are
// currently deducted and must not reserve or release twice for one logical
// event.
type InventoryService interface {
	Reserve(ctx context.Context, rideID primitive.ObjectID, seats int) error
	Release(ctx context.Context, rideID primitive.ObjectID, seats int) error
}

type inventoryService struct {
	rideRepo interfaces.RideRepository
	locker   lock.Locker
	logger   *logger.Logger
}

func NewInventoryService(rideRepo interfaces.RideRepository, locker lock.Locker, logger *logger.Logger) InventoryService {
	return &inventoryService{
		rideRepo: rideRepo,
		locker:   locker,
		logger:   logger,
	}
}

func rideLockKey(rideID primitive.ObjectID) string {
	return "ride:" + rideID.Hex()
}

func (s *inventoryService) Reserve(ctx context.Context, rideID primitive.ObjectID, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("seats must be positive, got %d", seats)
	}

	return s.locker.WithLock(ctx, rideLockKey(rideID), func(ctx context.Context) error {
		ride, err := s.rideRepo.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		if seats > ride.AvailableSeats {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientSeats, seats, ride.AvailableSeats)
		}

		remaining := ride.AvailableSeats - seats
		status := models.RideStatusAvailable
		if remaining == 0 {
			status = models.RideStatusFullyBooked
		}

		if err := s.rideRepo.UpdateSeats(ctx, rideID, remaining, status); err != nil {
			return err
		}

		s.logger.WithFields(map[string]interface{}{
			"ride_id":         rideID.Hex(),
			"seats_reserved":  seats,
			"seats_remaining": remaining,
		}).Info("Seats reserved")

		return nil
	})
}

func (s *inventoryService) Release(ctx context.Context, rideID primitive.ObjectID, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("seats must be positive, got %d", seats)
	}

	return s.locker.WithLock(ctx, rideLockKey(rideID), func(ctx context.Context) error {
		ride, err := s.rideRepo.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		remaining := ride.AvailableSeats + seats
		status := ride.Status
		if remaining > 0 {
			status = models.RideStatusAvailable
		}

		if err := s.rideRepo.UpdateSeats(ctx, rideID, remaining, status); err != nil {
			return err
		}

		s.logger.WithFields(map[string]interface{}{
			"ride_id":         rideID.Hex(),
			"seats_released":  seats,
			"seats_remaining": remaining,
		}).Info("Seats released")

		return nil
	})
}
