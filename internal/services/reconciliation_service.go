package services

import (
	"context"
	"errors"
	"fmt"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/lock"
	"ridelink/pkg/logger"
	"ridelink/pkg/payment"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProcessOutcome tells a callback handler what happened to a provider result.
type ProcessOutcome int

const (
	// OutcomeProcessed means the result changed state: a credit was applied or
	// the transaction moved to failed.
	OutcomeProcessed ProcessOutcome = iota

	// OutcomeAlreadyProcessed means the transaction was already in a matching
	// terminal state. Duplicate callbacks and poll-after-callback land here.
	OutcomeAlreadyProcessed

	// OutcomeDiscarded means the result referenced no known transaction or an
	// event type the engine does not act on. The provider is still
	// acknowledged so it stops retrying.
	OutcomeDiscarded
)

// BookingIntent is what a booking request produces: the pending or confirmed
// booking, the ledger row tracking its payment, and a redirect URL when the
// rail uses hosted checkout.
type BookingIntent struct {
	Booking     *models.Booking     `json:"booking"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	RedirectURL string              `json:"redirect_url,omitempty"`
}

// ReconciliationService is the single entry point for money movement. It
// orchestrates bookings, the ledger and the payment providers so that every
// provider result is applied exactly once regardless of how many times or
// through which channel it arrives. Providers are never called while a lock
// is held.
type ReconciliationService interface {
	CreateBooking(ctx context.Context, userID, rideID primitive.ObjectID, seats int, method models.PaymentMethod, payerPhone string) (*BookingIntent, error)

	// TopUpWallet starts an STK push crediting the user's wallet.
	TopUpWallet(ctx context.Context, userID primitive.ObjectID, phone string, amount float64) (*models.Transaction, error)

	// CreateTopUpSession starts a hosted card checkout crediting the user's
	// wallet, returning the transaction and the checkout redirect URL.
	CreateTopUpSession(ctx context.Context, userID primitive.ObjectID, amount float64) (*models.Transaction, string, error)

	HandleMpesaCallback(ctx context.Context, callback *payment.MpesaCallback) (ProcessOutcome, error)
	HandleCheckoutEvent(ctx context.Context, event *payment.CheckoutEvent) (ProcessOutcome, error)

	// QueryPaymentStatus polls the provider for the transaction's current
	// state and reconciles the answer through the same path callbacks use.
	QueryPaymentStatus(ctx context.Context, correlationID string) (*models.Transaction, ProcessOutcome, error)

	// ProcessResult applies one provider result to the transaction identified
	// by correlationID. settledAmount is the provider-reported amount when the
	// channel carries one, zero otherwise.
	ProcessResult(ctx context.Context, correlationID string, result *payment.StatusResult, settledAmount float64) (ProcessOutcome, error)
}

type reconciliationService struct {
	ledger      LedgerService
	bookings    BookingService
	rideRepo    interfaces.RideRepository
	bookingRepo interfaces.BookingRepository
	walletRepo  interfaces.WalletRepository
	mpesa       payment.Provider
	card        payment.Provider
	notifier    NotificationService
	locker      lock.Locker
	logger      *logger.Logger
}

func NewReconciliationService(
	ledger LedgerService,
	bookings BookingService,
	rideRepo interfaces.RideRepository,
	bookingRepo interfaces.BookingRepository,
	walletRepo interfaces.WalletRepository,
	mpesa payment.Provider,
	card payment.Provider,
	notifier NotificationService,
	locker lock.Locker,
	logger *logger.Logger,
) ReconciliationService {
	return &reconciliationService{
		ledger:      ledger,
		bookings:    bookings,
		rideRepo:    rideRepo,
		bookingRepo: bookingRepo,
		walletRepo:  walletRepo,
		mpesa:       mpesa,
		card:        card,
		notifier:    notifier,
		locker:      locker,
		logger:      logger,
	}
}

func transactionLockKey(transactionID primitive.ObjectID) string {
	return "txn:" + transactionID.Hex()
}

func (s *reconciliationService) CreateBooking(ctx context.Context, userID, rideID primitive.ObjectID, seats int, method models.PaymentMethod, payerPhone string) (*BookingIntent, error) {
	wallet, err := s.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.Create(ctx, userID, rideID, seats, method)
	if err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	amount := booking.ExpectedAmount(ride.Price)

	switch method {
	case models.PaymentMethodWallet:
		return s.payBookingFromWallet(ctx, wallet, booking, amount)
	case models.PaymentMethodMpesa:
		return s.startBookingPush(ctx, wallet, booking, amount, payerPhone)
	case models.PaymentMethodCard:
		return s.startBookingCheckout(ctx, wallet, booking, amount)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
}

// payBookingFromWallet settles the booking synchronously: debit first, then
// reserve and confirm. A reservation failure after the debit is compensated
// with a refund row so the ledger keeps both movements.
func (s *reconciliationService) payBookingFromWallet(ctx context.Context, wallet *models.Wallet, booking *models.Booking, amount float64) (*BookingIntent, error) {
	transaction, err := s.ledger.Debit(ctx, wallet.ID, amount, &booking.ID, "Ride booking payment")
	if err != nil {
		if abortErr := s.bookings.Abort(ctx, booking.ID); abortErr != nil {
			s.logger.WithError(abortErr).WithBookingID(booking.ID).Error("Failed to abort unpaid booking")
		}
		return nil, err
	}

	if err := s.bookings.ConfirmPayment(ctx, booking.ID); err != nil {
		if _, refundErr := s.ledger.Refund(ctx, wallet.ID, amount, &booking.ID, "Refund: booking could not be confirmed"); refundErr != nil {
			s.logger.WithError(refundErr).WithBookingID(booking.ID).Error("Failed to refund wallet after confirmation failure")
		}
		if cancelErr := s.bookings.Cancel(ctx, booking.ID, "seats no longer available"); cancelErr != nil {
			s.logger.WithError(cancelErr).WithBookingID(booking.ID).Error("Failed to cancel booking after confirmation failure")
		}
		return nil, err
	}

	return &BookingIntent{Booking: booking, Transaction: transaction}, nil
}

// startBookingPush reserves seats up front, records a pending ledger row and
// only then calls the provider. A failed initiation undoes both, but a failed
// payment later does not: the seats stay held for retry until the passenger
// cancels.
func (s *reconciliationService) startBookingPush(ctx context.Context, wallet *models.Wallet, booking *models.Booking, amount float64, payerPhone string) (*BookingIntent, error) {
	if err := s.bookings.Reserve(ctx, booking.ID); err != nil {
		if abortErr := s.bookings.Abort(ctx, booking.ID); abortErr != nil {
			s.logger.WithError(abortErr).WithBookingID(booking.ID).Error("Failed to abort unreserved booking")
		}
		return nil, err
	}

	transaction := &models.Transaction{
		WalletID:      wallet.ID,
		BookingID:     &booking.ID,
		Amount:        amount,
		PaymentMethod: models.PaymentMethodMpesa,
		Description:   "Ride booking payment",
	}
	if err := s.ledger.CreatePending(ctx, transaction); err != nil {
		return nil, err
	}

	response, err := s.initiate(ctx, s.mpesa, &payment.InitiateRequest{
		PayerPhone:  payerPhone,
		Amount:      amount,
		Reference:   booking.ID.Hex(),
		Description: "Ride booking",
	})
	if err != nil {
		s.abandonInitiation(ctx, transaction.ID, &booking.ID, err)
		return nil, err
	}

	if err := s.ledger.RecordInitiation(ctx, transaction.ID, response.ProviderRequestID, response.CorrelationID, ""); err != nil {
		return nil, err
	}

	return &BookingIntent{Booking: booking, Transaction: transaction}, nil
}

func (s *reconciliationService) startBookingCheckout(ctx context.Context, wallet *models.Wallet, booking *models.Booking, amount float64) (*BookingIntent, error) {
	if err := s.bookings.Reserve(ctx, booking.ID); err != nil {
		if abortErr := s.bookings.Abort(ctx, booking.ID); abortErr != nil {
			s.logger.WithError(abortErr).WithBookingID(booking.ID).Error("Failed to abort unreserved booking")
		}
		return nil, err
	}

	transaction := &models.Transaction{
		WalletID:      wallet.ID,
		BookingID:     &booking.ID,
		Amount:        amount,
		PaymentMethod: models.PaymentMethodCard,
		Description:   "Ride booking payment",
	}
	if err := s.ledger.CreatePending(ctx, transaction); err != nil {
		return nil, err
	}

	response, err := s.initiate(ctx, s.card, &payment.InitiateRequest{
		PayerID:     booking.UserID.Hex(),
		Amount:      amount,
		Reference:   booking.ID.Hex(),
		Description: "Ride booking",
		Metadata: map[string]string{
			"type":           "booking",
			"user_id":        booking.UserID.Hex(),
			"booking_id":     booking.ID.Hex(),
			"transaction_id": transaction.ID.Hex(),
		},
	})
	if err != nil {
		s.abandonInitiation(ctx, transaction.ID, &booking.ID, err)
		return nil, err
	}

	if err := s.ledger.RecordInitiation(ctx, transaction.ID, "", "", response.CorrelationID); err != nil {
		return nil, err
	}

	return &BookingIntent{Booking: booking, Transaction: transaction, RedirectURL: response.RedirectURL}, nil
}

func (s *reconciliationService) TopUpWallet(ctx context.Context, userID primitive.ObjectID, phone string, amount float64) (*models.Transaction, error) {
	if amount < utils.MinTopUpAmount || amount > utils.MaxTopUpAmount {
		return nil, fmt.Errorf("top up amount must be between %.0f and %.0f", utils.MinTopUpAmount, utils.MaxTopUpAmount)
	}

	wallet, err := s.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		WalletID:      wallet.ID,
		Amount:        amount,
		PaymentMethod: models.PaymentMethodMpesa,
		Description:   "Wallet top up",
	}
	if err := s.ledger.CreatePending(ctx, transaction); err != nil {
		return nil, err
	}

	response, err := s.initiate(ctx, s.mpesa, &payment.InitiateRequest{
		PayerPhone:  phone,
		Amount:      amount,
		Reference:   "TOPUP",
		Description: "Wallet top up",
	})
	if err != nil {
		s.abandonInitiation(ctx, transaction.ID, nil, err)
		return nil, err
	}

	if err := s.ledger.RecordInitiation(ctx, transaction.ID, response.ProviderRequestID, response.CorrelationID, ""); err != nil {
		return nil, err
	}

	s.logger.WithTransactionID(transaction.ID).WithFields(map[string]interface{}{
		"phone":  utils.MaskPhone(phone),
		"amount": amount,
	}).Info("Top up push initiated")

	return transaction, nil
}

func (s *reconciliationService) CreateTopUpSession(ctx context.Context, userID primitive.ObjectID, amount float64) (*models.Transaction, string, error) {
	if amount < utils.MinTopUpAmount || amount > utils.MaxTopUpAmount {
		return nil, "", fmt.Errorf("top up amount must be between %.0f and %.0f", utils.MinTopUpAmount, utils.MaxTopUpAmount)
	}

	wallet, err := s.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	transaction := &models.Transaction{
		WalletID:      wallet.ID,
		Amount:        amount,
		PaymentMethod: models.PaymentMethodCard,
		Description:   "Wallet top up",
	}
	if err := s.ledger.CreatePending(ctx, transaction); err != nil {
		return nil, "", err
	}

	response, err := s.initiate(ctx, s.card, &payment.InitiateRequest{
		PayerID:     userID.Hex(),
		Amount:      amount,
		Reference:   transaction.ID.Hex(),
		Description: "Wallet top up",
		Metadata: map[string]string{
			"type":           "topup",
			"user_id":        userID.Hex(),
			"transaction_id": transaction.ID.Hex(),
		},
	})
	if err != nil {
		s.abandonInitiation(ctx, transaction.ID, nil, err)
		return nil, "", err
	}

	if err := s.ledger.RecordInitiation(ctx, transaction.ID, "", "", response.CorrelationID); err != nil {
		return nil, "", err
	}

	return transaction, response.RedirectURL, nil
}

func (s *reconciliationService) HandleMpesaCallback(ctx context.Context, callback *payment.MpesaCallback) (ProcessOutcome, error) {
	return s.ProcessResult(ctx, callback.CheckoutRequestID, callback.Result(), callback.Amount())
}

func (s *reconciliationService) HandleCheckoutEvent(ctx context.Context, event *payment.CheckoutEvent) (ProcessOutcome, error) {
	if !event.Completed() {
		s.logger.WithField("event_type", event.EventType).Debug("Ignoring checkout event")
		return OutcomeDiscarded, nil
	}

	result := &payment.StatusResult{
		ResultCode: payment.ResultCodeSuccess,
		ResultDesc: event.EventType,
	}
	return s.ProcessResult(ctx, event.SessionID, result, event.AmountTotal)
}

func (s *reconciliationService) QueryPaymentStatus(ctx context.Context, correlationID string) (*models.Transaction, ProcessOutcome, error) {
	transaction, err := s.ledger.GetTransactionByCorrelationID(ctx, correlationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, OutcomeDiscarded, ErrTransactionNotFound
		}
		return nil, OutcomeDiscarded, err
	}

	provider := s.mpesa
	if transaction.PaymentMethod == models.PaymentMethodCard {
		provider = s.card
	}

	queryCtx, cancel := context.WithTimeout(ctx, utils.ProviderCallTimeout)
	result, err := provider.QueryStatus(queryCtx, correlationID)
	cancel()
	if err != nil {
		return transaction, OutcomeDiscarded, err
	}

	outcome, err := s.ProcessResult(ctx, correlationID, result, 0)
	if err != nil {
		return transaction, outcome, err
	}

	transaction, err = s.ledger.GetTransaction(ctx, transaction.ID)
	return transaction, outcome, err
}

// ProcessResult is the idempotent core. All channels (callback, webhook,
// poll, retries of any of them) converge here; the same result applied twice
// changes nothing the second time.
func (s *reconciliationService) ProcessResult(ctx context.Context, correlationID string, result *payment.StatusResult, settledAmount float64) (ProcessOutcome, error) {
	transaction, err := s.ledger.GetTransactionByCorrelationID(ctx, correlationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.logger.WithCorrelationID(correlationID).Warn("Provider result references unknown transaction, discarding")
			return OutcomeDiscarded, nil
		}
		return OutcomeDiscarded, err
	}

	outcome := OutcomeProcessed
	err = s.locker.WithLock(ctx, transactionLockKey(transaction.ID), func(ctx context.Context) error {
		transaction, err = s.ledger.GetTransaction(ctx, transaction.ID)
		if err != nil {
			return err
		}

		if transaction.Status == models.TransactionStatusSuccess {
			outcome = OutcomeAlreadyProcessed
			return nil
		}
		if transaction.Status == models.TransactionStatusFailed && !result.Success() {
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		if err := s.ledger.RecordResult(ctx, transaction.ID, result.ResultCode, result.ResultDesc); err != nil {
			return err
		}

		if !result.Success() {
			if err := s.ledger.MarkFailed(ctx, transaction.ID); err != nil {
				return err
			}
			s.logger.WithTransactionID(transaction.ID).WithFields(map[string]interface{}{
				"result_code": result.ResultCode,
				"result_desc": result.ResultDesc,
			}).Info("Payment failed")
			s.notifier.Notify(EventPaymentFailed, map[string]interface{}{
				"transaction_id": transaction.ID.Hex(),
				"result_desc":    result.ResultDesc,
			})
			return nil
		}

		amount := settledAmount
		if amount <= 0 {
			amount = transaction.Amount
		}
		if err := s.ledger.Credit(ctx, transaction.ID, amount, result.ReceiptID); err != nil {
			return err
		}
		s.notifier.Notify(EventWalletCredited, map[string]interface{}{
			"transaction_id": transaction.ID.Hex(),
			"amount":         amount,
		})

		return s.settleBooking(ctx, transaction, amount)
	})
	if err != nil {
		return OutcomeDiscarded, err
	}

	return outcome, nil
}

// settleBooking confirms the booking a successful payment was for and debits
// the expected fare from the freshly credited wallet. A payment with no
// booking link falls back to the payer's oldest pending unpaid booking; a
// top up with no such booking, or one too small to cover the fare, leaves
// the credit in the wallet.
func (s *reconciliationService) settleBooking(ctx context.Context, transaction *models.Transaction, amount float64) error {
	booking, err := s.resolveBooking(ctx, transaction)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil
		}
		return err
	}
	if booking == nil || booking.IsPaid {
		return nil
	}

	ride, err := s.rideRepo.GetByID(ctx, booking.RideID)
	if err != nil {
		return err
	}
	expected := booking.ExpectedAmount(ride.Price)

	// Confirm only when the credited amount covers the fare. An underpayment
	// stays in the wallet and the booking remains pending until a further
	// top up settles it.
	if amount < expected {
		s.logger.WithBookingID(booking.ID).WithFields(map[string]interface{}{
			"credited": amount,
			"expected": expected,
		}).Info("Credited amount below fare, booking left pending")
		return nil
	}

	if err := s.bookings.ConfirmPayment(ctx, booking.ID); err != nil {
		// The credit stands; the passenger keeps the money in the wallet and
		// the booking stays pending for a later attempt.
		s.logger.WithError(err).WithBookingID(booking.ID).Warn("Could not confirm booking after payment")
		return nil
	}

	if _, err := s.ledger.Debit(ctx, transaction.WalletID, expected, &booking.ID, "Ride booking payment"); err != nil {
		return err
	}

	return nil
}

func (s *reconciliationService) resolveBooking(ctx context.Context, transaction *models.Transaction) (*models.Booking, error) {
	if transaction.BookingID != nil {
		return s.bookingRepo.GetByID(ctx, *transaction.BookingID)
	}

	wallet, err := s.walletRepo.GetByID(ctx, transaction.WalletID)
	if err != nil {
		return nil, err
	}

	return s.bookingRepo.GetOldestPendingUnpaid(ctx, wallet.UserID)
}

func (s *reconciliationService) initiate(ctx context.Context, provider payment.Provider, request *payment.InitiateRequest) (*payment.InitiateResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, utils.ProviderCallTimeout)
	defer cancel()
	return provider.Initiate(callCtx, request)
}

// abandonInitiation marks the pending row failed after a provider initiation
// error. Booking-linked initiations also abort the booking, releasing its
// optimistically held seats.
func (s *reconciliationService) abandonInitiation(ctx context.Context, transactionID primitive.ObjectID, bookingID *primitive.ObjectID, cause error) {
	if err := s.ledger.MarkFailed(ctx, transactionID); err != nil {
		s.logger.WithError(err).WithTransactionID(transactionID).Error("Failed to mark transaction failed")
	}
	if bookingID != nil {
		if err := s.bookings.Abort(ctx, *bookingID); err != nil {
			s.logger.WithError(err).WithBookingID(*bookingID).Error("Failed to abort booking after initiation failure")
		}
	}
	s.logger.WithError(cause).WithTransactionID(transactionID).Warn("Payment initiation failed")
}
