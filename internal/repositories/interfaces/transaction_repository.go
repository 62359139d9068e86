package interfaces

import (
	"context"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionRepository is append-heavy: rows are created, updated while
// pending, and never deleted.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// GetByCorrelationID locates a transaction by whichever provider
	// identifier it carries (CheckoutRequestID for the push rail, session id
	// for the card rail).
	GetByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error)

	GetByWalletID(ctx context.Context, walletID primitive.ObjectID, status models.TransactionStatus, params *utils.PaginationParams) ([]*models.Transaction, int64, error)
	GetRecentByWalletID(ctx context.Context, walletID primitive.ObjectID, limit int) ([]*models.Transaction, error)
}
