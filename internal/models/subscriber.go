package models

import "time"

// Subscriber is a market-insights newsletter signup. The lowercased email is
// the document id, so an address is stored once however often it signs up.
type Subscriber struct {
	Email     string    `bson:"_id" json:"email"`
	VisitorID string    `bson:"visitor_id" json:"visitor_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
