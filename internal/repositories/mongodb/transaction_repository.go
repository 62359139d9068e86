package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) interfaces.TransactionRepository {
	return &transactionRepository{
		collection: db.Collection("transactions"),
	}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	transaction.ID = primitive.NewObjectID()
	transaction.CreatedAt = time.Now()
	transaction.UpdatedAt = time.Now()
	if transaction.Status == "" {
		transaction.Status = models.TransactionStatusPending
	}

	_, err := r.collection.InsertOne(ctx, transaction)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&transaction)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("transaction %s: %w", id.Hex(), interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &transaction, nil
}

func (r *transactionRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("transaction %s: %w", id.Hex(), interfaces.ErrNotFound)
	}

	return nil
}

func (r *transactionRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error) {
	filter := bson.M{"$or": []bson.M{
		{"checkout_request_id": correlationID},
		{"provider_session_id": correlationID},
	}}

	var transaction models.Transaction
	err := r.collection.FindOne(ctx, filter).Decode(&transaction)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("transaction with correlation id %q: %w", correlationID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction by correlation id: %w", err)
	}

	return &transaction, nil
}

func (r *transactionRepository) GetByWalletID(ctx context.Context, walletID primitive.ObjectID, status models.TransactionStatus, params *utils.PaginationParams) ([]*models.Transaction, int64, error) {
	filter := bson.M{"wallet_id": walletID}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, 0, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return transactions, total, nil
}

func (r *transactionRepository) GetRecentByWalletID(ctx context.Context, walletID primitive.ObjectID, limit int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"wallet_id": walletID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return transactions, nil
}
