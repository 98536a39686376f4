package models

import "time"

// Enquiry kinds. Documents written before kinds existed have none and are
// property enquiries.
const (
	EnquiryKindProperty     = "property"
	EnquiryKindConsultation = "consultation"
)

// PreferredTimes are the consultation slots an agent can be booked for.
var PreferredTimes = []string{
	"Morning (9 AM – 12 PM)",
	"Afternoon (12 PM – 5 PM)",
	"Evening (5 PM – 8 PM)",
}

// Enquiry is a contact-form submission or a consultation booking addressed
// to an agent. Consultations have no property.
type Enquiry struct {
	ID            string    `bson:"_id" json:"id"`
	Kind          string    `bson:"kind" json:"kind"`
	VisitorID     string    `bson:"visitor_id" json:"visitor_id"`
	PropertyID    string    `bson:"property_id,omitempty" json:"property_id,omitempty"`
	PropertyTitle string    `bson:"property_title" json:"property_title"` // Denormalized from the catalog
	AgentID       string    `bson:"agent_id" json:"agent_id"`
	FirstName     string    `bson:"first_name" json:"first_name"`
	LastName      string    `bson:"last_name" json:"last_name"`
	Email         string    `bson:"email" json:"email"`
	Phone         string    `bson:"phone,omitempty" json:"phone,omitempty"`
	PreferredTime string    `bson:"preferred_time,omitempty" json:"preferred_time,omitempty"`
	Message       string    `bson:"message,omitempty" json:"message,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	Notified      bool      `bson:"notified" json:"notified"` // Set once the agent notification email went out
}

// EnquiryAck is what the visitor sees after submitting the contact form.
type EnquiryAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
