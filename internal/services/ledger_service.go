package services

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/lock"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerService owns wallets and the transaction ledger. Every balance change
// happens under the wallet's exclusive lock and is backed by exactly one
// transaction row updated in the same scope, so balance and history never
// diverge. Rows that reached success are only ever touched again to attach a
// receipt identifier.
type LedgerService interface {
	GetOrCreateWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)

	// CreatePending appends a pending transaction row, before any provider
	// call, so an initiation timeout never orphans money movement: the row is
	// safe to reconcile later via poll or callback.
	CreatePending(ctx context.Context, transaction *models.Transaction) error

	// RecordInitiation attaches the provider identifiers returned by a
	// successful initiate call.
	RecordInitiation(ctx context.Context, transactionID primitive.ObjectID, merchantRequestID, checkoutRequestID, sessionID string) error

	// RecordResult stores the provider's latest result code and description
	// for audit, without changing the transaction status.
	RecordResult(ctx context.Context, transactionID primitive.ObjectID, resultCode int, resultDesc string) error

	// Credit settles a pending credit transaction: the wallet balance grows by
	// amount and the row reaches its terminal success state with the receipt
	// attached.
	Credit(ctx context.Context, transactionID primitive.ObjectID, amount float64, receiptID string) error

	// Debit takes amount from the wallet, appending a new debit row tagged
	// with the booking it pays for. Fails with ErrInsufficientBalance without
	// partial effect.
	Debit(ctx context.Context, walletID primitive.ObjectID, amount float64, bookingID *primitive.ObjectID, description string) (*models.Transaction, error)

	// Refund returns amount to the wallet, appending a new credit row tagged
	// with the booking it compensates.
	Refund(ctx context.Context, walletID primitive.ObjectID, amount float64, bookingID *primitive.ObjectID, description string) (*models.Transaction, error)

	// MarkFailed moves a transaction to its terminal failed state.
	MarkFailed(ctx context.Context, transactionID primitive.ObjectID) error

	GetTransaction(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	GetTransactionByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error)
	GetTransactions(ctx context.Context, walletID primitive.ObjectID, status models.TransactionStatus, params *utils.PaginationParams) ([]*models.Transaction, int64, error)
	GetRecentTransactions(ctx context.Context, walletID primitive.ObjectID, limit int) ([]*models.Transaction, error)
}

type ledgerService struct {
	walletRepo      interfaces.WalletRepository
	transactionRepo interfaces.TransactionRepository
	locker          lock.Locker
	logger          *logger.Logger
	openingBalance  float64
}

func NewLedgerService(
	walletRepo interfaces.WalletRepository,
	transactionRepo interfaces.TransactionRepository,
	locker lock.Locker,
	logger *logger.Logger,
	openingBalance float64,
) LedgerService {
	return &ledgerService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		locker:          locker,
		logger:          logger,
		openingBalance:  openingBalance,
	}
}

func walletLockKey(walletID primitive.ObjectID) string {
	return "wallet:" + walletID.Hex()
}

func (s *ledgerService) GetOrCreateWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, userID, s.openingBalance)
}

func (s *ledgerService) GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	return s.walletRepo.GetByUserID(ctx, userID)
}

func (s *ledgerService) CreatePending(ctx context.Context, transaction *models.Transaction) error {
	transaction.Status = models.TransactionStatusPending
	return s.transactionRepo.Create(ctx, transaction)
}

func (s *ledgerService) RecordInitiation(ctx context.Context, transactionID primitive.ObjectID, merchantRequestID, checkoutRequestID, sessionID string) error {
	updates := map[string]interface{}{}
	if merchantRequestID != "" {
		updates["merchant_request_id"] = merchantRequestID
	}
	if checkoutRequestID != "" {
		updates["checkout_request_id"] = checkoutRequestID
	}
	if sessionID != "" {
		updates["provider_session_id"] = sessionID
	}
	if len(updates) == 0 {
		return nil
	}

	return s.transactionRepo.Update(ctx, transactionID, updates)
}

func (s *ledgerService) RecordResult(ctx context.Context, transactionID primitive.ObjectID, resultCode int, resultDesc string) error {
	return s.transactionRepo.Update(ctx, transactionID, map[string]interface{}{
		"result_code":  resultCode,
		"result_desc":  resultDesc,
		"completed_at": time.Now(),
	})
}

func (s *ledgerService) Credit(ctx context.Context, transactionID primitive.ObjectID, amount float64, receiptID string) error {
	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}

	return s.locker.WithLock(ctx, walletLockKey(transaction.WalletID), func(ctx context.Context) error {
		wallet, err := s.walletRepo.GetByID(ctx, transaction.WalletID)
		if err != nil {
			return err
		}

		balanceAfter := wallet.Balance + amount
		if err := s.walletRepo.UpdateBalance(ctx, wallet.ID, balanceAfter); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":         models.TransactionStatusSuccess,
			"amount":         amount,
			"balance_before": wallet.Balance,
			"balance_after":  balanceAfter,
			"completed_at":   time.Now(),
		}
		if receiptID != "" {
			updates["mpesa_receipt_number"] = receiptID
		}
		if err := s.transactionRepo.Update(ctx, transactionID, updates); err != nil {
			return err
		}

		s.logger.LogPaymentEvent(transactionID, "wallet_credited", amount, wallet.Currency)
		return nil
	})
}

func (s *ledgerService) Debit(ctx context.Context, walletID primitive.ObjectID, amount float64, bookingID *primitive.ObjectID, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %.2f", amount)
	}

	var transaction *models.Transaction
	err := s.locker.WithLock(ctx, walletLockKey(walletID), func(ctx context.Context) error {
		wallet, err := s.walletRepo.GetByID(ctx, walletID)
		if err != nil {
			return err
		}

		if amount > wallet.Balance {
			return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, amount, wallet.Balance)
		}

		balanceAfter := wallet.Balance - amount
		if err := s.walletRepo.UpdateBalance(ctx, walletID, balanceAfter); err != nil {
			return err
		}

		now := time.Now()
		transaction = &models.Transaction{
			WalletID:      walletID,
			BookingID:     bookingID,
			Amount:        -amount,
			Status:        models.TransactionStatusSuccess,
			PaymentMethod: models.PaymentMethodWallet,
			Description:   description,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  balanceAfter,
			CompletedAt:   &now,
		}
		if err := s.transactionRepo.Create(ctx, transaction); err != nil {
			return err
		}

		s.logger.LogPaymentEvent(transaction.ID, "wallet_debited", amount, wallet.Currency)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

func (s *ledgerService) Refund(ctx context.Context, walletID primitive.ObjectID, amount float64, bookingID *primitive.ObjectID, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive, got %.2f", amount)
	}

	var transaction *models.Transaction
	err := s.locker.WithLock(ctx, walletLockKey(walletID), func(ctx context.Context) error {
		wallet, err := s.walletRepo.GetByID(ctx, walletID)
		if err != nil {
			return err
		}

		balanceAfter := wallet.Balance + amount
		if err := s.walletRepo.UpdateBalance(ctx, walletID, balanceAfter); err != nil {
			return err
		}

		now := time.Now()
		transaction = &models.Transaction{
			WalletID:      walletID,
			BookingID:     bookingID,
			Amount:        amount,
			Status:        models.TransactionStatusSuccess,
			PaymentMethod: models.PaymentMethodWallet,
			Description:   description,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  balanceAfter,
			CompletedAt:   &now,
		}
		if err := s.transactionRepo.Create(ctx, transaction); err != nil {
			return err
		}

		s.logger.LogPaymentEvent(transaction.ID, "wallet_refunded", amount, wallet.Currency)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

func (s *ledgerService) MarkFailed(ctx context.Context, transactionID primitive.ObjectID) error {
	return s.transactionRepo.Update(ctx, transactionID, map[string]interface{}{
		"status": models.TransactionStatusFailed,
	})
}

func (s *ledgerService) GetTransaction(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

func (s *ledgerService) GetTransactionByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error) {
	return s.transactionRepo.GetByCorrelationID(ctx, correlationID)
}

func (s *ledgerService) GetTransactions(ctx context.Context, walletID primitive.ObjectID, status models.TransactionStatus, params *utils.PaginationParams) ([]*models.Transaction, int64, error) {
	return s.transactionRepo.GetByWalletID(ctx, walletID, status, params)
}

func (s *ledgerService) GetRecentTransactions(ctx context.Context, walletID primitive.ObjectID, limit int) ([]*models.Transaction, error) {
	return s.transactionRepo.GetRecentByWalletID(ctx, walletID, limit)
}
