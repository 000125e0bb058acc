// Package gateway holds the outbound SMS adapters. A sender delivers one
// text to one phone number and reports success or failure; it never
// retries.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"beacon/internal/directory/models"
	"beacon/pkg/requestcontext"
)

// SendError is a rejection reported by the provider.
type SendError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gateway rejected message: %s (status %d, code %d)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("gateway rejected message: %s (status %d)", e.Message, e.StatusCode)
}

// LogSender writes messages to the log instead of delivering them.
// Used for local runs and the "log" gateway driver.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the outbound message and always succeeds.
func (s *LogSender) Send(ctx context.Context, to, body string) error {
	s.logger.InfoContext(ctx, "sms send (log driver)",
		"request_id", requestcontext.RequestID(ctx),
		"to", models.MaskPhone(to),
		"body_length", len(body),
	)
	return nil
}
