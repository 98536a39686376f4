package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"luxemap/estates/internal/models"
)

const EnquiriesCollection = "enquiries"

// EnquiryRepository persists contact-form submissions.
type EnquiryRepository struct {
	coll *mongo.Collection
}

func NewEnquiryRepository(database *mongo.Database) *EnquiryRepository {
	return &EnquiryRepository{coll: database.Collection(EnquiriesCollection)}
}

// Insert stores e, assigning a fresh id on every attempt.
func (r *EnquiryRepository) Insert(ctx context.Context, e *models.Enquiry) error {
	return Try(ctx, func(ctx context.Context) error {
		e.ID = uuid.NewString()
		if _, err := r.coll.InsertOne(ctx, e); err != nil {
			return fmt.Errorf("failed to insert enquiry: %w", err)
		}
		return nil
	})
}

// MarkNotified flags an enquiry once its agent notification was sent.
func (r *EnquiryRepository) MarkNotified(ctx context.Context, id string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"notified": true}})
	if err != nil {
		return fmt.Errorf("failed to mark enquiry %s notified: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListRecent returns up to limit enquiries, newest first.
func (r *EnquiryRepository) ListRecent(ctx context.Context, limit int64) ([]models.Enquiry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query enquiries: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Enquiry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode enquiries: %w", err)
	}
	return out, nil
}
