package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todoapp/internal/models"
)

var ErrItemNotFound = errors.New("item not found")

// ItemStore holds todo items, always scoped to a single owner. Every query
// filters on userId so one user can never see or touch another user's items.
type ItemStore struct {
	db *mongo.Database
}

func NewItemStore(db *mongo.Database) *ItemStore {
	return &ItemStore{db: db}
}

func (s *ItemStore) List(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]models.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := s.db.Collection("items").Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ItemStore) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Item, error) {
	var item models.Item
	if err := s.db.Collection("items").FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&item); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *ItemStore) Create(ctx context.Context, item *models.Item) error {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	res, err := s.db.Collection("items").InsertOne(ctx, item)
	if err != nil {
		return err
	}
	item.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *ItemStore) Update(ctx context.Context, userID, id primitive.ObjectID, title, details string, completed bool) error {
	res, err := s.db.Collection("items").UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{
			"title":     title,
			"details":   details,
			"completed": completed,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *ItemStore) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.db.Collection("items").DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}
