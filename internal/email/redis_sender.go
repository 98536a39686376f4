package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"luxemap/estates/internal/logging"
)

// MockEmailTTL is how long a mock email stays readable in Redis.
const MockEmailTTL = 5 * time.Minute

// MockEmailKey is where RedisSender stores the last email of a kind sent to addr.
func MockEmailKey(addr, kind string) string {
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(addr), kind)
}

// RedisSender stores emails in Redis instead of sending them, for
// end-to-end tests that read them back through the service API.
type RedisSender struct {
	client redis.Cmdable
	from   string
}

func NewRedisSender(client redis.Cmdable, from string) *RedisSender {
	return &RedisSender{client: client, from: from}
}

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mock email has no recipients")
	}

	data, err := json.Marshal(map[string]interface{}{
		"to":       strings.Join(msg.To, ", "),
		"from":     s.from,
		"reply_to": msg.ReplyTo,
		"subject":  msg.Subject,
		"body":     msg.Body,
		"kind":     msg.Kind,
		"sent_at":  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(msg.To[0], msg.Kind)
	if err := s.client.Set(ctx, key, data, MockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	logging.Logger.Infof("Mock email stored in Redis key '%s' (Subject: %s)", key, msg.Subject)
	return nil
}
