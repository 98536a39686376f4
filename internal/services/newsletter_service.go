package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/tasks"
)

const subscribedMessage = "Thank you for subscribing with: "

// SubscriberStore is the persistence the newsletter service needs.
type SubscriberStore interface {
	Subscribe(ctx context.Context, s *models.Subscriber) (bool, error)
}

type INewsletterService interface {
	Subscribe(ctx context.Context, visitorID, email string) (models.EnquiryAck, error)
}

type newsletterService struct {
	store      SubscriberStore
	taskClient tasks.IAsynqClient
	validate   *validator.Validate
}

// NewNewsletterService builds the market-insights signup. store and
// taskClient may be nil.
func NewNewsletterService(store SubscriberStore, taskClient tasks.IAsynqClient) INewsletterService {
	return &newsletterService{store: store, taskClient: taskClient, validate: validator.New()}
}

// Subscribe thanks every valid address. A welcome email is queued only for
// addresses the store has not seen, or always when there is no store.
func (s *newsletterService) Subscribe(ctx context.Context, visitorID, email string) (models.EnquiryAck, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return models.EnquiryAck{Success: false, Message: validationMessage(err)}, nil
	}

	isNew := true
	if s.store != nil {
		created, err := s.store.Subscribe(ctx, &models.Subscriber{
			Email:     email,
			VisitorID: visitorID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			logging.Logger.Errorf("Failed to store newsletter subscriber %s: %v", email, err)
		}
		isNew = created || err != nil
	}
	if isNew {
		s.welcome(ctx, email)
	}

	return models.EnquiryAck{Success: true, Message: subscribedMessage + email}, nil
}

func (s *newsletterService) welcome(ctx context.Context, email string) {
	if s.taskClient == nil {
		logging.Logger.Infof("No task queue configured, no welcome email for %s", email)
		return
	}
	task, err := tasks.NewNewsletterWelcomeTask(tasks.NewsletterWelcomePayload{Email: email})
	if err != nil {
		logging.Logger.Errorf("Failed to build newsletter welcome for %s: %v", email, err)
		return
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		logging.Logger.Errorf("Failed to enqueue newsletter welcome for %s: %v", email, err)
	}
}
