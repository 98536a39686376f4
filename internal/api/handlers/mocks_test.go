package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"luxemap/estates/internal/models"
	"luxemap/estates/internal/services"
)

// MockEnquiryService implements services.IEnquiryService
type MockEnquiryService struct {
	mock.Mock
}

func (m *MockEnquiryService) Submit(ctx context.Context, visitorID string, req services.EnquiryRequest) (models.EnquiryAck, error) {
	args := m.Called(ctx, visitorID, req)
	return args.Get(0).(models.EnquiryAck), args.Error(1)
}

func (m *MockEnquiryService) BookConsultation(ctx context.Context, visitorID string, req services.ConsultationRequest) (models.EnquiryAck, error) {
	args := m.Called(ctx, visitorID, req)
	return args.Get(0).(models.EnquiryAck), args.Error(1)
}

func (m *MockEnquiryService) MarkNotified(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEnquiryService) ListRecent(ctx context.Context, limit int64) ([]models.Enquiry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Enquiry), args.Error(1)
}

// MockNewsletterService implements services.INewsletterService
type MockNewsletterService struct {
	mock.Mock
}

func (m *MockNewsletterService) Subscribe(ctx context.Context, visitorID, email string) (models.EnquiryAck, error) {
	args := m.Called(ctx, visitorID, email)
	return args.Get(0).(models.EnquiryAck), args.Error(1)
}
