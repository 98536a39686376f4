package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/email"
	"luxemap/estates/internal/logging"
)

const (
	TypeEnquiryNotify     = "enquiry:notify"
	TypeNewsletterWelcome = "newsletter:welcome"
	TypeImageEnhance      = "image:enhance"
)

const (
	QueueDefault = "default"
	QueueImages  = "images"
)

// IAsynqClient is the part of *asynq.Client used to enqueue work.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient builds an asynq client on the same Redis as rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// EnquiryNotifyPayload carries everything needed to email the agent. Kind
// is "consultation" for booking requests; anything else is a property
// enquiry.
type EnquiryNotifyPayload struct {
	EnquiryID     string `json:"enquiry_id"`
	Kind          string `json:"kind,omitempty"`
	AgentEmail    string `json:"agent_email"`
	AgentName     string `json:"agent_name"`
	PropertyID    string `json:"property_id,omitempty"`
	PropertyTitle string `json:"property_title,omitempty"`
	VisitorName   string `json:"visitor_name"`
	VisitorEmail  string `json:"visitor_email"`
	VisitorPhone  string `json:"visitor_phone,omitempty"`
	PreferredTime string `json:"preferred_time,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (p EnquiryNotifyPayload) IsConsultation() bool {
	return p.Kind == "consultation"
}

// NewsletterWelcomePayload addresses the welcome email of a new subscriber.
type NewsletterWelcomePayload struct {
	Email string `json:"email"`
}

func NewEnquiryNotifyTask(p EnquiryNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enquiry payload: %w", err)
	}
	return asynq.NewTask(TypeEnquiryNotify, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewNewsletterWelcomeTask builds the welcome email task. Unique drops a
// second welcome to the same address while the first is still queued.
func NewNewsletterWelcomeTask(p NewsletterWelcomePayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal newsletter payload: %w", err)
	}
	return asynq.NewTask(TypeNewsletterWelcome, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(24*time.Hour),
	), nil
}

// NewImageEnhanceTask builds the single gallery enhancement run. Unique
// keeps repeated startups from queueing it twice.
func NewImageEnhanceTask() *asynq.Task {
	return asynq.NewTask(TypeImageEnhance, nil,
		asynq.Queue(QueueImages),
		asynq.MaxRetry(1),
		asynq.Unique(time.Hour),
		asynq.Timeout(30*time.Minute),
	)
}

// NotificationMarker records that an enquiry's agent was notified.
type NotificationMarker interface {
	MarkNotified(ctx context.Context, id string) error
}

// GalleryEnhancer regenerates gallery images.
type GalleryEnhancer interface {
	Run(ctx context.Context) error
}

var (
	subjectTmpl = template.Must(template.New("subject").Parse(
		`{{if .IsConsultation}}Consultation request from {{.VisitorName}}{{else}}New enquiry: {{.PropertyTitle}}{{end}}`))
	bodyTmpl = template.Must(template.New("body").Parse(
		`Hi {{.AgentName}},

{{if .IsConsultation -}}
{{.VisitorName}} <{{.VisitorEmail}}> would like to book a private consultation.

Phone: {{if .VisitorPhone}}{{.VisitorPhone}}{{else}}not given{{end}}
Preferred time: {{if .PreferredTime}}{{.PreferredTime}}{{else}}any{{end}}

Please confirm within 24 hours.
{{- else -}}
{{.VisitorName}} <{{.VisitorEmail}}> sent an enquiry about {{.PropertyTitle}} (listing #{{.PropertyID}}).

{{.Message}}
{{- end}}

Reply directly to this email to respond.
`))
	welcomeSubject = "Welcome to LuxeMap Market Insights"
	welcomeBody    = `Thank you for subscribing with: %s

You'll receive our quarterly market reports and early access to new listings.

To unsubscribe, reply to this email with "unsubscribe".
`
)

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg      *config.Config
	sender   email.Sender
	marker   NotificationMarker
	enhancer GalleryEnhancer
}

// NewTaskProcessor wires the handlers. marker and enhancer may be nil.
func NewTaskProcessor(cfg *config.Config, sender email.Sender, marker NotificationMarker, enhancer GalleryEnhancer) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, sender: sender, marker: marker, enhancer: enhancer}
}

// SetupServer builds the asynq server and mux for a worker. It does not
// start them; the caller owns Run/Shutdown. Returns nils when the mode runs
// no worker.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker, isImageWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()
	if isBgWorker {
		queues[QueueDefault] = 3
		mux.HandleFunc(TypeEnquiryNotify, processor.HandleEnquiryNotifyTask)
		mux.HandleFunc(TypeNewsletterWelcome, processor.HandleNewsletterWelcomeTask)
		logging.Logger.Info("Registered enquiry notification and newsletter handlers")
	}
	if isImageWorker {
		queues[QueueImages] = 1
		mux.HandleFunc(TypeImageEnhance, processor.HandleImageEnhanceTask)
		logging.Logger.Info("Registered image enhancement handler")
	}

	srv := asynq.NewServer(redisOpt(rdb), asynq.Config{
		Queues: queues,
		Logger: logging.Logger,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logging.Logger.WithField("task", task.Type()).Errorf("Task failed: %v", err)
		}),
	})
	return srv, mux
}

func (p *TaskProcessor) HandleEnquiryNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload EnquiryNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal enquiry payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.AgentEmail) == "" {
		return fmt.Errorf("enquiry %s has no agent email: %w", payload.EnquiryID, asynq.SkipRetry)
	}

	msg, err := renderEnquiryEmail(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send enquiry %s notification: %w", payload.EnquiryID, err)
	}

	if p.marker != nil && payload.EnquiryID != "" {
		err := p.marker.MarkNotified(ctx, payload.EnquiryID)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			logging.Logger.Warnf("Enquiry %s not stored, nothing to mark", payload.EnquiryID)
		case err != nil:
			// The email already went out; retrying would send it again.
			logging.Logger.Errorf("Failed to mark enquiry %s notified: %v", payload.EnquiryID, err)
		}
	}

	logging.Logger.Infof("Enquiry %s notification sent to %s", payload.EnquiryID, payload.AgentEmail)
	return nil
}

func renderEnquiryEmail(p EnquiryNotifyPayload) (email.Message, error) {
	var subject, body bytes.Buffer
	if err := subjectTmpl.Execute(&subject, p); err != nil {
		return email.Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := bodyTmpl.Execute(&body, p); err != nil {
		return email.Message{}, fmt.Errorf("render body: %w", err)
	}
	kind := "enquiry"
	if p.IsConsultation() {
		kind = "consultation"
	}
	return email.Message{
		To:      []string{p.AgentEmail},
		ReplyTo: p.VisitorEmail,
		Subject: subject.String(),
		Body:    body.String(),
		Kind:    kind,
	}, nil
}

func (p *TaskProcessor) HandleNewsletterWelcomeTask(ctx context.Context, t *asynq.Task) error {
	var payload NewsletterWelcomePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal newsletter payload: %v: %w", err, asynq.SkipRetry)
	}
	to := strings.TrimSpace(payload.Email)
	if to == "" {
		return fmt.Errorf("newsletter welcome has no address: %w", asynq.SkipRetry)
	}
	msg := email.Message{
		To:      []string{to},
		Subject: welcomeSubject,
		Body:    fmt.Sprintf(welcomeBody, to),
		Kind:    "newsletter",
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send newsletter welcome to %s: %w", to, err)
	}
	logging.Logger.Infof("Newsletter welcome sent to %s", to)
	return nil
}

func (p *TaskProcessor) HandleImageEnhanceTask(ctx context.Context, t *asynq.Task) error {
	if p.enhancer == nil || !p.cfg.ImageEnhanceEnabled {
		logging.Logger.Info("Image enhancement disabled, skipping task")
		return nil
	}
	if err := p.enhancer.Run(ctx); err != nil {
		return fmt.Errorf("image enhancement run failed: %w", err)
	}
	return nil
}
