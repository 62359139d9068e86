package services

import (
	"context"
	"errors"
	"testing"

	"ridelink/internal/models"
	"ridelink/pkg/lock"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type bookingFixture struct {
	service     BookingService
	bookingRepo *fakeBookingRepo
	rideRepo    *fakeRideRepo
	notifier    *fakeNotifier
	rideID      primitive.ObjectID
	driverID    primitive.ObjectID
}

func newBookingFixture(t *testing.T, seats int) *bookingFixture {
	t.Helper()
	rideRepo := newFakeRideRepo()
	bookingRepo := newFakeBookingRepo()
	notifier := &fakeNotifier{}
	locker := lock.NewKeyedMutex()
	log := logger.Discard()

	driverID := primitive.NewObjectID()
	ride := &models.Ride{
		DriverID:       driverID,
		AvailableSeats: seats,
		Price:          400,
		Status:         models.RideStatusAvailable,
	}
	if err := rideRepo.Create(context.Background(), ride); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	inventory := NewInventoryService(rideRepo, locker, log)
	service := NewBookingService(bookingRepo, rideRepo, inventory, notifier, locker, log)

	return &bookingFixture{
		service:     service,
		bookingRepo: bookingRepo,
		rideRepo:    rideRepo,
		notifier:    notifier,
		rideID:      ride.ID,
		driverID:    driverID,
	}
}

func (f *bookingFixture) mustCreate(t *testing.T, userID primitive.ObjectID, seats int, method models.PaymentMethod) *models.Booking {
	t.Helper()
	booking, err := f.service.Create(context.Background(), userID, f.rideID, seats, method)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}

func TestCreateBookingStartsPending(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodWallet)

	if booking.Status != models.BookingStatusPending {
		t.Errorf("status = %s, want pending", booking.Status)
	}
	if booking.IsPaid || booking.SeatsDeducted {
		t.Error("new booking must start unpaid with no seats held")
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 4 {
		t.Errorf("create deducted seats early: %d", ride.AvailableSeats)
	}
}

func TestCreateBookingRejectsInvalidMethod(t *testing.T) {
	f := newBookingFixture(t, 4)
	_, err := f.service.Create(context.Background(), primitive.NewObjectID(), f.rideID, 1, "cheque")
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("err = %v, want ErrInvalidPaymentMethod", err)
	}
}

func TestCreateBookingRejectsTooManySeats(t *testing.T) {
	f := newBookingFixture(t, 2)
	_, err := f.service.Create(context.Background(), primitive.NewObjectID(), f.rideID, 3, models.PaymentMethodWallet)
	if !errors.Is(err, ErrInsufficientSeats) {
		t.Fatalf("err = %v, want ErrInsufficientSeats", err)
	}
}

func TestCreateBookingRejectsDuplicate(t *testing.T) {
	f := newBookingFixture(t, 4)
	userID := primitive.NewObjectID()
	f.mustCreate(t, userID, 1, models.PaymentMethodWallet)

	_, err := f.service.Create(context.Background(), userID, f.rideID, 1, models.PaymentMethodWallet)
	if !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("err = %v, want ErrDuplicateBooking", err)
	}
}

func TestConfirmPaymentReservesAndMarksPaid(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 3, models.PaymentMethodWallet)

	if err := f.service.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	updated, _ := f.bookingRepo.GetByID(context.Background(), booking.ID)
	if !updated.IsPaid || updated.Status != models.BookingStatusConfirmed || !updated.SeatsDeducted {
		t.Errorf("booking after confirm = paid:%v status:%s deducted:%v", updated.IsPaid, updated.Status, updated.SeatsDeducted)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 1 {
		t.Errorf("available seats = %d, want 1", ride.AvailableSeats)
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodWallet)

	if err := f.service.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := f.service.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("second confirm: %v", err)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 2 {
		t.Errorf("seats deducted twice: %d remaining, want 2", ride.AvailableSeats)
	}
}

func TestConfirmPaymentAfterReserveDoesNotDoubleDeduct(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodMpesa)

	if err := f.service.Reserve(context.Background(), booking.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.service.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 2 {
		t.Errorf("available seats = %d, want 2", ride.AvailableSeats)
	}

	updated, _ := f.bookingRepo.GetByID(context.Background(), booking.ID)
	if !updated.IsPaid || !updated.SeatsDeducted {
		t.Errorf("booking = paid:%v deducted:%v", updated.IsPaid, updated.SeatsDeducted)
	}
}

func TestReserveIsIdempotent(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodMpesa)

	if err := f.service.Reserve(context.Background(), booking.ID); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := f.service.Reserve(context.Background(), booking.ID); err != nil {
		t.Fatalf("second reserve: %v", err)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 2 {
		t.Errorf("available seats = %d, want 2", ride.AvailableSeats)
	}
}

func TestCancelReleasesHeldSeats(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 3, models.PaymentMethodWallet)

	if err := f.service.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if err := f.service.Cancel(context.Background(), booking.ID, "plans changed"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	updated, _ := f.bookingRepo.GetByID(context.Background(), booking.ID)
	if updated.Status != models.BookingStatusCancelled {
		t.Errorf("status = %s, want cancelled", updated.Status)
	}
	if updated.SeatsDeducted {
		t.Error("cancelled booking still holds seats")
	}
	if updated.CancellationReason != "plans changed" {
		t.Errorf("reason = %q", updated.CancellationReason)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 4 {
		t.Errorf("available seats = %d, want 4", ride.AvailableSeats)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodWallet)

	if err := f.service.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if err := f.service.Cancel(context.Background(), booking.ID, "first"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := f.service.Cancel(context.Background(), booking.ID, "second"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 4 {
		t.Errorf("seats released twice: %d, want 4", ride.AvailableSeats)
	}
}

func TestCancelUnreservedBookingLeavesSeats(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodWallet)

	if err := f.service.Cancel(context.Background(), booking.ID, "never paid"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 4 {
		t.Errorf("available seats = %d, want 4", ride.AvailableSeats)
	}
}

func TestConfirmBookingByDriver(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodMpesa)

	if err := f.service.ConfirmBooking(context.Background(), booking.ID, f.driverID); err != nil {
		t.Fatalf("confirm booking: %v", err)
	}

	updated, _ := f.bookingRepo.GetByID(context.Background(), booking.ID)
	if updated.Status != models.BookingStatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
	if updated.IsPaid {
		t.Error("driver confirmation must not mark the booking paid")
	}
	if !updated.SeatsDeducted {
		t.Error("driver confirmation must hold seats")
	}
}

func TestConfirmBookingRejectsWrongDriver(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 1, models.PaymentMethodMpesa)

	err := f.service.ConfirmBooking(context.Background(), booking.ID, primitive.NewObjectID())
	if !errors.Is(err, ErrNotRideOwner) {
		t.Fatalf("err = %v, want ErrNotRideOwner", err)
	}
}

func TestConfirmBookingRejectsNonPending(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 1, models.PaymentMethodMpesa)

	if err := f.service.Cancel(context.Background(), booking.ID, "gone"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err := f.service.ConfirmBooking(context.Background(), booking.ID, f.driverID)
	if !errors.Is(err, ErrBookingNotPending) {
		t.Fatalf("err = %v, want ErrBookingNotPending", err)
	}
}

func TestAbortDeletesBookingAndReleasesSeats(t *testing.T) {
	f := newBookingFixture(t, 4)
	booking := f.mustCreate(t, primitive.NewObjectID(), 2, models.PaymentMethodMpesa)

	if err := f.service.Reserve(context.Background(), booking.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.service.Abort(context.Background(), booking.ID); err != nil {
		t.Fatalf("abort: %v", err)
	}

	if _, err := f.bookingRepo.GetByID(context.Background(), booking.ID); err == nil {
		t.Error("aborted booking still exists")
	}

	ride, _ := f.rideRepo.GetByID(context.Background(), f.rideID)
	if ride.AvailableSeats != 4 {
		t.Errorf("available seats = %d, want 4", ride.AvailableSeats)
	}
}
