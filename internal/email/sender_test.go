package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/utils"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type fakeSendGrid struct {
	got    *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.got = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "body"}, nil
}

var testMessage = Message{
	To:      []string{"sofia@luxemap.com"},
	ReplyTo: "jane@example.com",
	Subject: "New enquiry: Azure Villa",
	Body:    "Hello\nWorld",
	Kind:    "enquiry",
}

func TestBuildRawMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := string(buildRawMessage("concierge@luxemap.com", testMessage, now))

	assert.Contains(t, raw, "From: concierge@luxemap.com\r\n")
	assert.Contains(t, raw, "To: sofia@luxemap.com\r\n")
	assert.Contains(t, raw, "Reply-To: jane@example.com\r\n")
	assert.Contains(t, raw, "Subject: New enquiry: Azure Villa\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nHello\r\nWorld"))
}

func TestNewSMTPSender_FallsBackToLogging(t *testing.T) {
	s := NewSMTPSender(&config.Config{SmtpFromAddress: "concierge@luxemap.com"})
	_, ok := s.(*LoggingSender)
	require.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), testMessage))

	s = NewSMTPSender(&config.Config{SmtpHost: "smtp.example.com", SmtpPort: 587})
	smtpSender, ok := s.(*SMTPSender)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com:587", smtpSender.addr)
}

func TestNewSenderFromConfig(t *testing.T) {
	s := NewSenderFromConfig(&config.Config{SendGridAPIKey: "SG.key"})
	_, ok := s.(*SendGridSender)
	assert.True(t, ok)

	extra := &recordingSender{}
	s = NewSenderFromConfig(&config.Config{}, extra)
	composite, ok := s.(*CompositeEmailSender)
	require.True(t, ok)
	assert.Len(t, composite.senders, 2)
	require.NoError(t, s.Send(context.Background(), testMessage))
	assert.Len(t, extra.sent, 1)
}

func TestCompositeEmailSender(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		cs := NewCompositeEmailSender(nil)
		assert.Error(t, cs.Send(context.Background(), testMessage))
	})

	t.Run("all senders called even when one fails", func(t *testing.T) {
		failing := &recordingSender{err: errors.New("boom")}
		ok := &recordingSender{}
		cs := NewCompositeEmailSender(failing, ok)

		err := cs.Send(context.Background(), testMessage)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Len(t, failing.sent, 1)
		assert.Len(t, ok.sent, 1)
	})
}

func TestFileEmailSender(t *testing.T) {
	_, err := NewFileEmailSender("  ", "x@y.z")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "nested", "emails.log")
	s, err := NewFileEmailSender(path, "concierge@luxemap.com")
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), testMessage))
	require.NoError(t, s.Send(context.Background(), testMessage))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "--- End Logged Email ---"))
	assert.Contains(t, string(data), "Subject: New enquiry: Azure Villa")
}

func TestSendGridSender(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fake := &fakeSendGrid{status: http.StatusAccepted}
		s := &SendGridSender{client: fake, fromName: "LuxeMap", from: "concierge@luxemap.com"}

		require.NoError(t, s.Send(context.Background(), testMessage))
		require.NotNil(t, fake.got)
		assert.Equal(t, "New enquiry: Azure Villa", fake.got.Subject)
		assert.Equal(t, "concierge@luxemap.com", fake.got.From.Address)
		require.Len(t, fake.got.Personalizations, 1)
		assert.Equal(t, "sofia@luxemap.com", fake.got.Personalizations[0].To[0].Address)
		assert.Equal(t, []string{"enquiry"}, fake.got.Categories)
	})

	t.Run("rejected", func(t *testing.T) {
		s := &SendGridSender{client: &fakeSendGrid{status: http.StatusBadRequest}}
		assert.Error(t, s.Send(context.Background(), testMessage))
	})

	t.Run("transport error", func(t *testing.T) {
		s := &SendGridSender{client: &fakeSendGrid{err: errors.New("dial")}}
		assert.Error(t, s.Send(context.Background(), testMessage))
	})

	t.Run("no recipients", func(t *testing.T) {
		fake := &fakeSendGrid{status: http.StatusAccepted}
		s := &SendGridSender{client: fake}
		assert.Error(t, s.Send(context.Background(), Message{Subject: "x"}))
		assert.Nil(t, fake.got)
	})
}

func TestMockEmailKey(t *testing.T) {
	assert.Equal(t, "mockemail:sofia@luxemap.com:enquiry", MockEmailKey("Sofia@LuxeMap.com", "enquiry"))
	assert.Equal(t, "mockemail:a@b.c:unknown", MockEmailKey("a@b.c", ""))
}

func TestRedisSender(t *testing.T) {
	rdb := utils.SetupTestRedis(t)
	ctx := context.Background()
	s := NewRedisSender(rdb, "concierge@luxemap.com")

	require.NoError(t, s.Send(ctx, testMessage))

	raw, err := rdb.Get(ctx, MockEmailKey("sofia@luxemap.com", "enquiry")).Result()
	require.NoError(t, err)

	var stored map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "New enquiry: Azure Villa", stored["subject"])
	assert.Equal(t, "jane@example.com", stored["reply_to"])

	ttl, err := rdb.TTL(ctx, MockEmailKey("sofia@luxemap.com", "enquiry")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
