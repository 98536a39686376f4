package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"luxemap/estates/internal/logging"
)

// FileEmailSender appends every message to a log file.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
	from     string
}

// NewFileEmailSender creates the log file's directory if needed.
func NewFileEmailSender(filePath, from string) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath, from: from}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	now := time.Now()
	entry := fmt.Sprintf("--- Email Logged at %s (To: %v, Subject: %s) ---\n", now.Format(time.RFC3339Nano), msg.To, msg.Subject)
	entry += string(buildRawMessage(s.from, msg, now))
	entry += "\n--- End Logged Email ---\n\n"

	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}

	logging.Logger.Debugf("Email to %v (Subject: %s) logged to %s", msg.To, msg.Subject, s.filePath)
	return nil
}
