package interfaces

import (
	"context"

	"ridelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WalletRepository persists wallets. Balances are mutated only through
// UpdateBalance, and only by the ledger service while it holds the wallet's
// lock.
type WalletRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)

	// GetOrCreate returns the user's wallet, creating it with the opening
	// balance when it does not exist yet.
	GetOrCreate(ctx context.Context, userID primitive.ObjectID, openingBalance float64) (*models.Wallet, error)

	UpdateBalance(ctx context.Context, id primitive.ObjectID, balance float64) error
}
