package services

import (
	"context"
	"fmt"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/lock"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingService owns the booking lifecycle: pending to confirmed or
// cancelled. It is the only component that flips status, is_paid and
// seats_deducted, and it drives the inventory service so a booking's seats
// are deducted at most once and restored at most once per reservation cycle.
type BookingService interface {
	Create(ctx context.Context, userID, rideID primitive.ObjectID, seats int, method models.PaymentMethod) (*models.Booking, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	GetForUser(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Booking, int64, error)

	// Reserve deducts the booking's seats from the ride if they are not
	// already deducted. Used for optimistic reservation on the async payment
	// rails.
	Reserve(ctx context.Context, bookingID primitive.ObjectID) error

	// ConfirmPayment marks the booking paid and confirmed, reserving seats
	// first when the booking does not already hold them. No-op when already
	// paid.
	ConfirmPayment(ctx context.Context, bookingID primitive.ObjectID) error

	// ConfirmBooking is the driver's manual confirmation: same reservation as
	// ConfirmPayment but the booking stays unpaid. Valid only from pending.
	ConfirmBooking(ctx context.Context, bookingID, driverID primitive.ObjectID) error

	// Cancel releases the booking's seats if it holds any and moves it to
	// cancelled. No-op when already cancelled.
	Cancel(ctx context.Context, bookingID primitive.ObjectID, reason string) error

	// Abort removes a booking whose payment initiation failed, releasing any
	// seats it held. The booking never becomes visible as cancelled; creation
	// is undone entirely.
	Abort(ctx context.Context, bookingID primitive.ObjectID) error
}

type bookingService struct {
	bookingRepo interfaces.BookingRepository
	rideRepo    interfaces.RideRepository
	inventory   InventoryService
	notifier    NotificationService
	locker      lock.Locker
	logger      *logger.Logger
}

func NewBookingService(
	bookingRepo interfaces.BookingRepository,
	rideRepo interfaces.RideRepository,
	inventory InventoryService,
	notifier NotificationService,
	locker lock.Locker,
	logger *logger.Logger,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		rideRepo:    rideRepo,
		inventory:   inventory,
		notifier:    notifier,
		locker:      locker,
		logger:      logger,
	}
}

func bookingLockKey(bookingID primitive.ObjectID) string {
	return "booking:" + bookingID.Hex()
}

// Create runs the request-time guards and persists a pending booking. The
// seat pre-check here is advisory only; the authoritative check is the
// reservation at confirmation time, since availability can change in between.
func (s *bookingService) Create(ctx context.Context, userID, rideID primitive.ObjectID, seats int, method models.PaymentMethod) (*models.Booking, error) {
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	if seats < 1 || seats > utils.MaxSeatsPerBooking {
		return nil, fmt.Errorf("seats must be between 1 and %d, got %d", utils.MaxSeatsPerBooking, seats)
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if seats > ride.AvailableSeats {
		return nil, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientSeats, seats, ride.AvailableSeats)
	}

	hasActive, err := s.bookingRepo.HasActiveBooking(ctx, userID, rideID)
	if err != nil {
		return nil, err
	}
	if hasActive {
		return nil, ErrDuplicateBooking
	}

	booking := &models.Booking{
		RideID:        rideID,
		UserID:        userID,
		NoOfSeats:     seats,
		Status:        models.BookingStatusPending,
		PaymentMethod: method,
	}
	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.LogBookingEvent(booking.ID, "booking_created", map[string]interface{}{
		"ride_id":        rideID.Hex(),
		"seats":          seats,
		"payment_method": string(method),
	})

	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *bookingService) GetForUser(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Booking, int64, error) {
	return s.bookingRepo.GetByUserID(ctx, userID, params)
}

func (s *bookingService) Reserve(ctx context.Context, bookingID primitive.ObjectID) error {
	return s.locker.WithLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		reserved, err := s.reserveLocked(ctx, booking)
		if err != nil {
			return err
		}
		if !reserved {
			return nil
		}
		return s.bookingRepo.Update(ctx, bookingID, map[string]interface{}{
			"seats_deducted": true,
		})
	})
}

func (s *bookingService) ConfirmPayment(ctx context.Context, bookingID primitive.ObjectID) error {
	return s.locker.WithLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.IsPaid {
			return nil
		}

		reserved, err := s.reserveLocked(ctx, booking)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"is_paid": true,
			"status":  models.BookingStatusConfirmed,
		}
		if reserved {
			updates["seats_deducted"] = true
		}
		if err := s.bookingRepo.Update(ctx, bookingID, updates); err != nil {
			return err
		}

		s.logger.LogBookingEvent(bookingID, "payment_confirmed", map[string]interface{}{
			"ride_id": booking.RideID.Hex(),
			"seats":   booking.NoOfSeats,
		})
		s.notifier.Notify(EventBookingConfirmed, map[string]interface{}{
			"booking_id": bookingID.Hex(),
			"user_id":    booking.UserID.Hex(),
			"ride_id":    booking.RideID.Hex(),
		})

		return nil
	})
}

func (s *bookingService) ConfirmBooking(ctx context.Context, bookingID, driverID primitive.ObjectID) error {
	return s.locker.WithLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		ride, err := s.rideRepo.GetByID(ctx, booking.RideID)
		if err != nil {
			return err
		}
		if ride.DriverID != driverID {
			return ErrNotRideOwner
		}

		if booking.Status != models.BookingStatusPending {
			return fmt.Errorf("%w: status is %s", ErrBookingNotPending, booking.Status)
		}

		reserved, err := s.reserveLocked(ctx, booking)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status": models.BookingStatusConfirmed,
		}
		if reserved {
			updates["seats_deducted"] = true
		}
		if err := s.bookingRepo.Update(ctx, bookingID, updates); err != nil {
			return err
		}

		s.logger.LogBookingEvent(bookingID, "booking_confirmed_by_driver", map[string]interface{}{
			"driver_id": driverID.Hex(),
		})
		s.notifier.Notify(EventBookingConfirmed, map[string]interface{}{
			"booking_id": bookingID.Hex(),
			"user_id":    booking.UserID.Hex(),
			"ride_id":    booking.RideID.Hex(),
		})

		return nil
	})
}

func (s *bookingService) Cancel(ctx context.Context, bookingID primitive.ObjectID, reason string) error {
	return s.locker.WithLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.Status == models.BookingStatusCancelled {
			return nil
		}

		if booking.SeatsDeducted {
			if err := s.inventory.Release(ctx, booking.RideID, booking.NoOfSeats); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"status":              models.BookingStatusCancelled,
			"seats_deducted":      false,
			"cancellation_reason": reason,
		}
		if err := s.bookingRepo.Update(ctx, bookingID, updates); err != nil {
			return err
		}

		s.logger.LogBookingEvent(bookingID, "booking_cancelled", map[string]interface{}{
			"reason": reason,
		})
		s.notifier.Notify(EventBookingCancelled, map[string]interface{}{
			"booking_id": bookingID.Hex(),
			"user_id":    booking.UserID.Hex(),
			"reason":     reason,
		})

		return nil
	})
}

func (s *bookingService) Abort(ctx context.Context, bookingID primitive.ObjectID) error {
	return s.locker.WithLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.SeatsDeducted {
			if err := s.inventory.Release(ctx, booking.RideID, booking.NoOfSeats); err != nil {
				return err
			}
		}

		return s.bookingRepo.Delete(ctx, bookingID)
	})
}

// reserveLocked deducts seats for the booking unless they are already
// deducted. Caller holds the booking lock. Reports whether a reservation was
// made.
func (s *bookingService) reserveLocked(ctx context.Context, booking *models.Booking) (bool, error) {
	if booking.SeatsDeducted {
		return false, nil
	}

	if err := s.inventory.Reserve(ctx, booking.RideID, booking.NoOfSeats); err != nil {
		return false, err
	}

	booking.SeatsDeducted = true
	return true, nil
}
