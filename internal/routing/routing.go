// Package routing classifies inbound messages by the sender's roles and
// either escalates them to reviewers or broadcasts them to subscribers.
//
// Classes, in precedence order:
//
//	UNTRUSTED           sender not in the directory: escalate, no confirmation
//	TRUSTED_ORIGINATOR  sender holds STAFF or ADMIN: broadcast, confirm
//	SUBSCRIBER_ONLY     any other known sender: escalate, confirm
//
// The engine keeps no state between calls.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"beacon/internal/directory/models"
	"beacon/internal/dispatch"
	"beacon/internal/routing/metrics"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

// MaxBodyLength bounds an inbound message body, in characters.
const MaxBodyLength = 1600

// Class is the trust level of an inbound sender.
type Class string

const (
	ClassUntrusted         Class = "UNTRUSTED"
	ClassSubscriberOnly    Class = "SUBSCRIBER_ONLY"
	ClassTrustedOriginator Class = "TRUSTED_ORIGINATOR"
)

// Action is what the engine did with the message.
type Action string

const (
	ActionEscalate  Action = "escalate"
	ActionBroadcast Action = "broadcast"
)

// Directory is the contact lookup the engine needs.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (*models.Contact, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.Contact, error)
}

// Dispatcher fans a message out to many recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []string, body string) (*dispatch.Result, error)
}

// Templates holds the texts the engine sends.
type Templates struct {
	EscalationPrefix      string
	ForwardedConfirmation string
	BroadcastConfirmation string
}

// DefaultTemplates are used when no templates are configured.
var DefaultTemplates = Templates{
	EscalationPrefix:      "[ESCALATION]",
	ForwardedConfirmation: "Your message was forwarded to the administrators.",
	BroadcastConfirmation: "Your message was broadcast to all subscribers.",
}

// Outcome describes how one inbound message was handled.
type Outcome struct {
	Sender     string
	Class      Class
	Action     Action
	Recipients []string
	Deliveries []dispatch.Delivery
	Confirmed  bool
}

// Engine routes inbound messages.
type Engine struct {
	directory  Directory
	dispatcher Dispatcher
	templates  Templates
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTemplates overrides the non-empty fields of DefaultTemplates.
func WithTemplates(t Templates) Option {
	return func(e *Engine) {
		if t.EscalationPrefix != "" {
			e.templates.EscalationPrefix = t.EscalationPrefix
		}
		if t.ForwardedConfirmation != "" {
			e.templates.ForwardedConfirmation = t.ForwardedConfirmation
		}
		if t.BroadcastConfirmation != "" {
			e.templates.BroadcastConfirmation = t.BroadcastConfirmation
		}
	}
}

// New constructs an Engine.
func New(directory Directory, dispatcher Dispatcher, opts ...Option) (*Engine, error) {
	if directory == nil {
		return nil, errors.New("directory is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	e := &Engine{
		directory:  directory,
		dispatcher: dispatcher,
		templates:  DefaultTemplates,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Classify maps a sender record (nil when unknown) to its class.
func Classify(sender *models.Contact) Class {
	switch {
	case sender == nil:
		return ClassUntrusted
	case sender.Roles.CanOriginate():
		return ClassTrustedOriginator
	default:
		return ClassSubscriberOnly
	}
}

// HandleInbound validates an inbound message and routes it.
func (e *Engine) HandleInbound(ctx context.Context, from, body string) (*Outcome, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "message body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, dErrors.New(dErrors.CodeValidation, "message body is too long")
	}
	return e.Route(ctx, from, body)
}

// Route classifies the sender and performs the escalation or broadcast,
// then confirms to known senders. When a fan-out fails the outcome is
// still returned together with a CodeGatewayFailure error, and no
// confirmation is sent.
func (e *Engine) Route(ctx context.Context, senderPhone, body string) (*Outcome, error) {
	ctx, span := otel.Tracer("beacon/routing").Start(ctx, "routing.Route")
	defer span.End()
	start := time.Now()

	phone, err := models.NormalizePhone(senderPhone)
	if err != nil {
		return nil, err
	}
	sender, err := e.directory.FindByPhone(ctx, phone)
	if err != nil {
		span.SetStatus(codes.Error, "sender lookup failed")
		return nil, err
	}

	out := &Outcome{Sender: phone, Class: Classify(sender)}
	span.SetAttributes(attribute.String("routing.class", string(out.Class)))

	var text, confirmation string
	switch out.Class {
	case ClassTrustedOriginator:
		out.Action = ActionBroadcast
		out.Recipients, err = e.recipients(ctx, models.RoleSubscriber, phone)
		text = body
		confirmation = e.templates.BroadcastConfirmation
	case ClassSubscriberOnly:
		out.Action = ActionEscalate
		out.Recipients, err = e.recipients(ctx, models.RoleAdmin, "")
		text = e.escalationText(sender, phone, body)
		confirmation = e.templates.ForwardedConfirmation
	default:
		out.Action = ActionEscalate
		out.Recipients, err = e.recipients(ctx, models.RoleAdmin, "")
		text = e.escalationText(nil, phone, body)
	}
	if err != nil {
		span.SetStatus(codes.Error, "recipient lookup failed")
		return nil, err
	}

	if out.Action == ActionEscalate && len(out.Recipients) == 0 {
		e.metrics.IncrementEscalationsNoReviewers()
		e.logger.WarnContext(ctx, "escalation has no reviewers",
			"request_id", requestcontext.RequestID(ctx),
			"sender", models.MaskPhone(phone),
			"class", out.Class,
		)
	}

	if len(out.Recipients) > 0 {
		result, err := e.dispatcher.Dispatch(ctx, out.Recipients, text)
		if result != nil {
			out.Deliveries = result.Deliveries
		}
		if err != nil {
			return e.fail(ctx, span, out, start, err)
		}
	}

	if confirmation != "" {
		if _, err := e.dispatcher.Dispatch(ctx, []string{phone}, confirmation); err != nil {
			return e.fail(ctx, span, out, start, err)
		}
		out.Confirmed = true
		e.metrics.IncrementConfirmationsSent()
	}

	e.metrics.ObserveInbound(string(out.Class), "ok", start)
	e.logger.InfoContext(ctx, "inbound message routed",
		"request_id", requestcontext.RequestID(ctx),
		"sender", models.MaskPhone(phone),
		"class", out.Class,
		"action", out.Action,
		"recipients", len(out.Recipients),
		"confirmed", out.Confirmed,
	)
	return out, nil
}

// recipients lists the phones holding role, deduplicated in directory
// order, without exclude.
func (e *Engine) recipients(ctx context.Context, role models.Role, exclude string) ([]string, error) {
	contacts, err := e.directory.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(contacts))
	phones := make([]string, 0, len(contacts))
	for _, c := range contacts {
		if c.PhoneNumber == exclude {
			continue
		}
		if _, dup := seen[c.PhoneNumber]; dup {
			continue
		}
		seen[c.PhoneNumber] = struct{}{}
		phones = append(phones, c.PhoneNumber)
	}
	return phones, nil
}

func (e *Engine) escalationText(sender *models.Contact, phone, body string) string {
	label := phone
	if sender != nil {
		label = sender.Label()
	}
	return e.templates.EscalationPrefix + " " + label + ": " + body
}

func (e *Engine) fail(ctx context.Context, span trace.Span, out *Outcome, start time.Time, err error) (*Outcome, error) {
	span.SetStatus(codes.Error, "fan-out failed")
	span.RecordError(err)
	e.metrics.ObserveInbound(string(out.Class), "failed", start)
	e.logger.ErrorContext(ctx, "inbound message routing failed",
		"request_id", requestcontext.RequestID(ctx),
		"sender", models.MaskPhone(out.Sender),
		"class", out.Class,
		"action", out.Action,
		"error", err,
	)
	return out, err
}
