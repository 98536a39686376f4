package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/tasks"
)

const (
	enquirySentMessage    = "Message sent successfully!"
	enquiryMissingMessage = "Please fill in all required fields."
	enquiryEmailMessage   = "Please enter a valid email address."
	enquiryTooLongMessage = "One of the fields is too long."
	enquiryUnknownMessage = "This property is no longer available."

	consultationBookedMessage = "Consultation requested. We'll confirm within 24 hours."
	consultationAgentMessage  = "This agent is no longer available."
	consultationTimeMessage   = "Please choose one of the offered times."
)

// EnquiryRequest is the contact form.
type EnquiryRequest struct {
	PropertyID string `json:"propertyId" validate:"required,max=32"`
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Message    string `json:"message" validate:"max=5000"`
}

func (r *EnquiryRequest) normalize() {
	r.PropertyID = strings.TrimSpace(r.PropertyID)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)
}

// ConsultationRequest is the "Book a Private Consultation" form on an agent
// card. Phone and PreferredTime are optional.
type ConsultationRequest struct {
	AgentID       string `json:"agentId" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Phone         string `json:"phone" validate:"max=40"`
	PreferredTime string `json:"preferredTime" validate:"max=64"`
}

func (r *ConsultationRequest) normalize() {
	r.AgentID = strings.TrimSpace(r.AgentID)
	r.Name = strings.Join(strings.Fields(r.Name), " ")
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.PreferredTime = strings.TrimSpace(r.PreferredTime)
}

// EnquiryStore is the persistence the enquiry service needs.
type EnquiryStore interface {
	Insert(ctx context.Context, e *models.Enquiry) error
	MarkNotified(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int64) ([]models.Enquiry, error)
}

type IEnquiryService interface {
	Submit(ctx context.Context, visitorID string, req EnquiryRequest) (models.EnquiryAck, error)
	BookConsultation(ctx context.Context, visitorID string, req ConsultationRequest) (models.EnquiryAck, error)
	MarkNotified(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int64) ([]models.Enquiry, error)
}

type enquiryService struct {
	cfg        *config.Config
	catalog    *fixtures.Catalog
	store      EnquiryStore
	taskClient tasks.IAsynqClient
	validate   *validator.Validate
}

// NewEnquiryService builds the contact-form service. store and taskClient
// may be nil, in which case persistence or notification is skipped.
func NewEnquiryService(cfg *config.Config, catalog *fixtures.Catalog, store EnquiryStore, taskClient tasks.IAsynqClient) IEnquiryService {
	return &enquiryService{
		cfg:        cfg,
		catalog:    catalog,
		store:      store,
		taskClient: taskClient,
		validate:   validator.New(),
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return enquiryMissingMessage
	}
	switch verrs[0].Tag() {
	case "email":
		return enquiryEmailMessage
	case "max":
		return enquiryTooLongMessage
	}
	return enquiryMissingMessage
}

// Submit waits the configured delay and always acknowledges success once
// the form is valid. Storage and notification failures are only logged.
// The returned error is non-nil only when ctx ends during the delay.
func (s *enquiryService) Submit(ctx context.Context, visitorID string, req EnquiryRequest) (models.EnquiryAck, error) {
	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return models.EnquiryAck{Success: false, Message: validationMessage(err)}, nil
	}
	property, ok := s.catalog.Property(req.PropertyID)
	if !ok {
		return models.EnquiryAck{Success: false, Message: enquiryUnknownMessage}, nil
	}

	if err := s.wait(ctx); err != nil {
		return models.EnquiryAck{}, err
	}

	enquiry := &models.Enquiry{
		ID:            uuid.NewString(),
		Kind:          models.EnquiryKindProperty,
		VisitorID:     visitorID,
		PropertyID:    property.ID,
		PropertyTitle: property.Title,
		AgentID:       property.Agent.ID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Message:       req.Message,
		CreatedAt:     time.Now().UTC(),
	}

	s.save(ctx, enquiry)
	s.notify(ctx, enquiry, property.Agent)

	return models.EnquiryAck{Success: true, Message: enquirySentMessage}, nil
}

// BookConsultation follows Submit: same delay, same best-effort storage and
// agent notification, stored alongside enquiries with the consultation kind.
func (s *enquiryService) BookConsultation(ctx context.Context, visitorID string, req ConsultationRequest) (models.EnquiryAck, error) {
	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return models.EnquiryAck{Success: false, Message: validationMessage(err)}, nil
	}
	if req.PreferredTime != "" && !slices.Contains(models.PreferredTimes, req.PreferredTime) {
		return models.EnquiryAck{Success: false, Message: consultationTimeMessage}, nil
	}
	agent, ok := s.catalog.Agent(req.AgentID)
	if !ok {
		return models.EnquiryAck{Success: false, Message: consultationAgentMessage}, nil
	}

	if err := s.wait(ctx); err != nil {
		return models.EnquiryAck{}, err
	}

	first, last, _ := strings.Cut(req.Name, " ")
	booking := &models.Enquiry{
		ID:            uuid.NewString(),
		Kind:          models.EnquiryKindConsultation,
		VisitorID:     visitorID,
		AgentID:       agent.ID,
		FirstName:     first,
		LastName:      last,
		Email:         req.Email,
		Phone:         req.Phone,
		PreferredTime: req.PreferredTime,
		CreatedAt:     time.Now().UTC(),
	}

	s.save(ctx, booking)
	s.notify(ctx, booking, agent)

	return models.EnquiryAck{Success: true, Message: consultationBookedMessage}, nil
}

func (s *enquiryService) wait(ctx context.Context) error {
	if s.cfg.EnquiryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.EnquiryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *enquiryService) save(ctx context.Context, e *models.Enquiry) {
	if s.store == nil {
		return
	}
	if err := s.store.Insert(ctx, e); err != nil {
		logging.Logger.Errorf("Failed to store %s enquiry %s for agent %s: %v", e.Kind, e.ID, e.AgentID, err)
	}
}

func (s *enquiryService) notify(ctx context.Context, e *models.Enquiry, agent models.Agent) {
	if s.taskClient == nil {
		logging.Logger.Infof("No task queue configured, enquiry %s not forwarded to %s", e.ID, agent.Email)
		return
	}
	task, err := tasks.NewEnquiryNotifyTask(tasks.EnquiryNotifyPayload{
		EnquiryID:     e.ID,
		Kind:          e.Kind,
		AgentEmail:    agent.Email,
		AgentName:     agent.Name,
		PropertyID:    e.PropertyID,
		PropertyTitle: e.PropertyTitle,
		VisitorName:   strings.TrimSpace(e.FirstName + " " + e.LastName),
		VisitorEmail:  e.Email,
		VisitorPhone:  e.Phone,
		PreferredTime: e.PreferredTime,
		Message:       e.Message,
	})
	if err != nil {
		logging.Logger.Errorf("Failed to build notification for enquiry %s: %v", e.ID, err)
		return
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		logging.Logger.Errorf("Failed to enqueue notification for enquiry %s: %v", e.ID, err)
	}
}

func (s *enquiryService) MarkNotified(ctx context.Context, id string) error {
	if s.store == nil {
		return mongo.ErrNoDocuments
	}
	return s.store.MarkNotified(ctx, id)
}

func (s *enquiryService) ListRecent(ctx context.Context, limit int64) ([]models.Enquiry, error) {
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	items, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list enquiries: %w", err)
	}
	return items, nil
}
