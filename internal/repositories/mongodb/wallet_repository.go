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

type walletRepository struct {
	collection *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) interfaces.WalletRepository {
	return &walletRepository{
		collection: db.Collection("wallets"),
	}
}

func (r *walletRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&wallet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("wallet %s: %w", id.Hex(), interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&wallet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("wallet for user %s: %w", userID.Hex(), interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

// GetOrCreate upserts the user's wallet. The upsert keeps concurrent first
// top-ups from creating two wallets for one user.
func (r *walletRepository) GetOrCreate(ctx context.Context, userID primitive.ObjectID, openingBalance float64) (*models.Wallet, error) {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"user_id":    userID,
			"balance":    openingBalance,
			"currency":   utils.DefaultCurrency,
			"is_active":  true,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var wallet models.Wallet
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create wallet: %w", err)
	}

	return &wallet, nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, id primitive.ObjectID, balance float64) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"balance":    balance,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("wallet %s: %w", id.Hex(), interfaces.ErrNotFound)
	}

	return nil
}
