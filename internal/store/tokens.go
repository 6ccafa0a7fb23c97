package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"todoapp/internal/auth"
	"todoapp/internal/models"
)

// TokenLedger persists refresh-token records in the refresh_tokens
// collection. Records are only ever inserted and flag-updated, never deleted.
type TokenLedger struct {
	db *mongo.Database
}

func NewTokenLedger(db *mongo.Database) *TokenLedger {
	return &TokenLedger{db: db}
}

func (l *TokenLedger) Insert(ctx context.Context, record *models.RefreshToken) error {
	res, err := l.db.Collection("refresh_tokens").InsertOne(ctx, record)
	if err != nil {
		return err
	}
	record.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (l *TokenLedger) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var record models.RefreshToken
	if err := l.db.Collection("refresh_tokens").FindOne(ctx, bson.M{"token": token}).Decode(&record); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, auth.ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return &record, nil
}

// MarkUsed flips isUsed on the record, but only if it is still unused. The
// filter makes the update a compare-and-set: of two concurrent refreshes on
// the same token exactly one matches, the other gets
// ErrRefreshTokenAlreadyUsed.
func (l *TokenLedger) MarkUsed(ctx context.Context, id primitive.ObjectID) error {
	res, err := l.db.Collection("refresh_tokens").UpdateOne(ctx,
		bson.M{"_id": id, "isUsed": false},
		bson.M{"$set": bson.M{"isUsed": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return auth.ErrRefreshTokenAlreadyUsed
	}
	return nil
}

func (l *TokenLedger) Revoke(ctx context.Context, token string) error {
	res, err := l.db.Collection("refresh_tokens").UpdateOne(ctx,
		bson.M{"token": token, "isRevoked": false},
		bson.M{"$set": bson.M{"isRevoked": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return auth.ErrRefreshTokenNotFound
	}
	return nil
}
