// Package dispatch sends one message to many recipients concurrently.
//
// Every recipient is attempted exactly once. The dispatcher waits for all
// sends to settle and fails the whole fan-out if any send failed, without
// undoing the sends that succeeded. The per-recipient outcome is always
// returned alongside the aggregate error.
//
// WithBreaker is the one exception: while its breaker is open, recipients
// are skipped instead of attempted and reported with ErrSkipped. The
// breaker is shared across calls, so it is off unless configured.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"beacon/internal/directory/models"
	"beacon/internal/dispatch/metrics"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/circuit"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

// ErrSkipped marks a recipient that was not attempted because the
// breaker was open.
var ErrSkipped = fmt.Errorf("send skipped: %w", sentinel.ErrUnavailable)

// Sender delivers one message to one phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	Phone string
	Err   error
}

// Result lists deliveries in input order.
type Result struct {
	Deliveries []Delivery
}

// Failed returns the deliveries that did not succeed.
func (r *Result) Failed() []Delivery {
	if r == nil {
		return nil
	}
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Sent counts successful deliveries.
func (r *Result) Sent() int {
	if r == nil {
		return 0
	}
	return len(r.Deliveries) - len(r.Failed())
}

// Dispatcher fans a message out through a Sender.
type Dispatcher struct {
	sender  Sender
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithBreaker skips sends while b is open. Only transport failures
// (sentinel.ErrUnavailable) count against it.
func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

// New constructs a Dispatcher.
func New(sender Sender, opts ...Option) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	d := &Dispatcher{sender: sender, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch sends body to every recipient concurrently and blocks until all
// sends settle. The returned error carries CodeGatewayFailure when at least
// one send failed; the Result is returned in both cases.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, body string) (*Result, error) {
	ctx, span := otel.Tracer("beacon/dispatch").Start(ctx, "dispatch.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.Int("dispatch.recipients", len(recipients)))

	start := time.Now()
	result := &Result{Deliveries: make([]Delivery, len(recipients))}

	// A plain Group: a failed send must not cancel the others.
	var g errgroup.Group
	for i, phone := range recipients {
		result.Deliveries[i].Phone = phone
		g.Go(func() error {
			err := d.send(ctx, phone, body)
			d.metrics.ObserveSend(outcome(err))
			result.Deliveries[i].Err = err
			return err
		})
	}
	_ = g.Wait()
	d.metrics.ObserveDispatch(len(recipients), start)

	failed := result.Failed()
	if len(failed) == 0 {
		return result, nil
	}

	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, f.Err)
		d.logger.WarnContext(ctx, "sms send failed",
			"request_id", requestcontext.RequestID(ctx),
			"to", models.MaskPhone(f.Phone),
			"error", f.Err,
		)
	}
	msg := fmt.Sprintf("%d of %d sends failed", len(failed), len(recipients))
	span.SetStatus(codes.Error, msg)
	span.RecordError(errors.Join(errs...))
	return result, dErrors.Wrap(errors.Join(errs...), dErrors.CodeGatewayFailure, msg)
}

func (d *Dispatcher) send(ctx context.Context, phone, body string) error {
	if d.breaker == nil {
		return d.sender.Send(ctx, phone, body)
	}
	if !d.breaker.Allow() {
		return ErrSkipped
	}
	err := d.sender.Send(ctx, phone, body)
	if errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := d.breaker.RecordFailure(); change.Opened {
			d.logger.WarnContext(ctx, "gateway circuit opened",
				"request_id", requestcontext.RequestID(ctx),
				"circuit", d.breaker.Name(),
			)
		}
		return err
	}
	if _, change := d.breaker.RecordSuccess(); change.Closed {
		d.logger.InfoContext(ctx, "gateway circuit closed",
			"request_id", requestcontext.RequestID(ctx),
			"circuit", d.breaker.Name(),
		)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrSkipped):
		return metrics.OutcomeSkipped
	default:
		return metrics.OutcomeFailed
	}
}
