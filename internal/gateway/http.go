package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"beacon/internal/directory/models"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

const messagesPath = "/Accounts/{account}/Messages.json"

// HTTPConfig configures the HTTP SMS provider.
type HTTPConfig struct {
	BaseURL   string
	AccountID string
	AuthToken string
	From      string
	Timeout   time.Duration
}

// HTTPSender posts messages to a Twilio-compatible REST endpoint.
type HTTPSender struct {
	client *resty.Client
	cfg    HTTPConfig
	logger *slog.Logger
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewHTTPSender builds a sender. Retries are disabled: every recipient is
// attempted exactly once and failures surface to the dispatcher.
func NewHTTPSender(cfg HTTPConfig, logger *slog.Logger) (*HTTPSender, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	if cfg.From == "" {
		return nil, errors.New("gateway sender number is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetBasicAuth(cfg.AccountID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	return &HTTPSender{client: client, cfg: cfg, logger: logger}, nil
}

// Send delivers body to one phone number.
func (s *HTTPSender) Send(ctx context.Context, to, body string) error {
	var (
		ok     messageResponse
		failed errorResponse
	)
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("account", s.cfg.AccountID).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.cfg.From,
			"Body": body,
		}).
		SetResult(&ok).
		SetError(&failed).
		Post(messagesPath)
	if err != nil {
		s.logger.WarnContext(ctx, "sms gateway request failed",
			"request_id", requestcontext.RequestID(ctx),
			"to", models.MaskPhone(to),
			"error", err,
		)
		return fmt.Errorf("send to %s: %w: %w", models.MaskPhone(to), sentinel.ErrUnavailable, err)
	}
	if resp.IsError() {
		sendErr := &SendError{StatusCode: resp.StatusCode(), Code: failed.Code, Message: failed.Message}
		if sendErr.Message == "" {
			sendErr.Message = resp.Status()
		}
		s.logger.WarnContext(ctx, "sms gateway rejected message",
			"request_id", requestcontext.RequestID(ctx),
			"to", models.MaskPhone(to),
			"status", resp.StatusCode(),
			"code", failed.Code,
		)
		return sendErr
	}

	s.logger.InfoContext(ctx, "sms accepted",
		"request_id", requestcontext.RequestID(ctx),
		"to", models.MaskPhone(to),
		"sid", ok.SID,
		"status", ok.Status,
	)
	return nil
}
