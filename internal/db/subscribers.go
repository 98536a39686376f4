package db

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"luxemap/estates/internal/models"
)

const SubscribersCollection = "newsletter_subscribers"

// SubscriberRepository persists newsletter signups.
type SubscriberRepository struct {
	coll *mongo.Collection
}

func NewSubscriberRepository(database *mongo.Database) *SubscriberRepository {
	return &SubscriberRepository{coll: database.Collection(SubscribersCollection)}
}

// Subscribe upserts s by email and reports whether the address is new. The
// original signup is kept when the address already exists. Two concurrent
// upserts of a new address can race on _id; the loser is retried and then
// matches the winner's document.
func (r *SubscriberRepository) Subscribe(ctx context.Context, s *models.Subscriber) (bool, error) {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	var created bool
	err := Try(ctx, func(ctx context.Context) error {
		res, err := r.coll.UpdateByID(ctx, s.Email,
			bson.M{"$setOnInsert": bson.M{"visitor_id": s.VisitorID, "created_at": s.CreatedAt}},
			options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to upsert subscriber: %w", err)
		}
		created = res.UpsertedCount > 0
		return nil
	})
	return created, err
}

// Count returns the number of stored subscribers.
func (r *SubscriberRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return n, nil
}
