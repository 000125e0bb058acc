package dispatch

//go:generate mockgen -source=dispatch.go -destination=mocks/mocks.go -package=mocks Sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"beacon/internal/dispatch/metrics"
	"beacon/internal/dispatch/mocks"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/circuit"
	"beacon/pkg/platform/sentinel"
)

type DispatcherSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	sender     *mocks.MockSender
	metrics    *metrics.Metrics
	dispatcher *Dispatcher
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sender = mocks.NewMockSender(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()
	var err error
	s.dispatcher, err = New(s.sender,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *DispatcherSuite) TestNewRequiresSender() {
	_, err := New(nil)
	s.Error(err)
}

func (s *DispatcherSuite) TestAllSucceed() {
	for _, phone := range []string{"+1A", "+1B", "+1C"} {
		s.sender.EXPECT().Send(gomock.Any(), phone, "hello").Return(nil)
	}

	result, err := s.dispatcher.Dispatch(s.ctx, []string{"+1A", "+1B", "+1C"}, "hello")
	s.Require().NoError(err)
	s.Equal(3, result.Sent())
	s.Empty(result.Failed())
	s.Equal("+1B", result.Deliveries[1].Phone)
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.Sends.WithLabelValues("ok")))
}

func (s *DispatcherSuite) TestNoRecipients() {
	result, err := s.dispatcher.Dispatch(s.ctx, nil, "hello")
	s.Require().NoError(err)
	s.Empty(result.Deliveries)
}

func (s *DispatcherSuite) TestOneFailureFailsTheWholeFanout() {
	sendErr := errors.New("carrier rejected")
	s.sender.EXPECT().Send(gomock.Any(), "+1A", "hello").Return(nil).Times(1)
	s.sender.EXPECT().Send(gomock.Any(), "+1B", "hello").Return(sendErr).Times(1)
	s.sender.EXPECT().Send(gomock.Any(), "+1C", "hello").Return(nil).Times(1)
	s.sender.EXPECT().Send(gomock.Any(), "+1D", "hello").Return(nil).Times(1)

	result, err := s.dispatcher.Dispatch(s.ctx, []string{"+1A", "+1B", "+1C", "+1D"}, "hello")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeGatewayFailure))
	s.ErrorIs(err, sendErr)
	s.Contains(err.Error(), "1 of 4 sends failed")

	s.Require().Len(result.Deliveries, 4)
	s.Equal(3, result.Sent())
	failed := result.Failed()
	s.Require().Len(failed, 1)
	s.Equal("+1B", failed[0].Phone)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Sends.WithLabelValues("failed")))
}

// A failing send must not cancel sends still in flight.
func (s *DispatcherSuite) TestFailureDoesNotCancelSlowSends() {
	var (
		mu       sync.Mutex
		canceled bool
	)
	s.sender.EXPECT().Send(gomock.Any(), "+1FAIL", "hi").Return(errors.New("down"))
	s.sender.EXPECT().Send(gomock.Any(), "+1SLOW", "hi").DoAndReturn(
		func(ctx context.Context, _, _ string) error {
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			canceled = ctx.Err() != nil
			mu.Unlock()
			return nil
		})

	result, err := s.dispatcher.Dispatch(s.ctx, []string{"+1FAIL", "+1SLOW"}, "hi")
	s.Require().Error(err)
	s.Equal(1, result.Sent())
	mu.Lock()
	defer mu.Unlock()
	s.False(canceled)
}

// =============================================================================
// Transport failures across fan-outs
// =============================================================================

func (s *DispatcherSuite) TestTransportFailuresDoNotAffectLaterFanouts() {
	down := errors.Join(sentinel.ErrUnavailable, errors.New("dial tcp: connection refused"))
	first := []string{"+1A", "+1B", "+1C", "+1D", "+1E"}
	for _, phone := range first {
		s.sender.EXPECT().Send(gomock.Any(), phone, "drill").Return(down)
	}
	_, err := s.dispatcher.Dispatch(s.ctx, first, "drill")
	s.Require().Error(err)

	second := []string{"+2A", "+2B", "+2C", "+2D", "+2E", "+2F", "+2G", "+2H", "+2I", "+2J"}
	for _, phone := range second {
		s.sender.EXPECT().Send(gomock.Any(), phone, "drill").Return(nil).Times(1)
	}
	result, err := s.dispatcher.Dispatch(s.ctx, second, "drill")
	s.Require().NoError(err)
	s.Equal(10, result.Sent())
}

func (s *DispatcherSuite) TestBreakerSkipsRecipientsWhileOpen() {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("sms",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	dispatcher, err := New(s.sender,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithBreaker(breaker),
	)
	s.Require().NoError(err)

	down := errors.Join(sentinel.ErrUnavailable, errors.New("dial tcp: connection refused"))
	s.sender.EXPECT().Send(gomock.Any(), "+1A", "drill").Return(down).Times(2)
	for range 2 {
		_, err := dispatcher.Dispatch(s.ctx, []string{"+1A"}, "drill")
		s.Require().Error(err)
	}
	s.Require().True(breaker.IsOpen())

	s.Run("open breaker reports every recipient as skipped", func() {
		result, err := dispatcher.Dispatch(s.ctx, []string{"+1B", "+1C", "+1D"}, "drill")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeGatewayFailure))
		s.Require().Len(result.Deliveries, 3)
		for _, d := range result.Deliveries {
			s.ErrorIs(d.Err, ErrSkipped)
			s.ErrorIs(d.Err, sentinel.ErrUnavailable)
		}
		s.Equal(float64(3), testutil.ToFloat64(s.metrics.Sends.WithLabelValues(metrics.OutcomeSkipped)))
	})

	s.Run("probe after cooldown closes the breaker", func() {
		now = now.Add(time.Minute)
		s.sender.EXPECT().Send(gomock.Any(), "+1B", "drill").Return(nil)
		result, err := dispatcher.Dispatch(s.ctx, []string{"+1B"}, "drill")
		s.Require().NoError(err)
		s.Equal(1, result.Sent())
		s.False(breaker.IsOpen())
	})
}

func (s *DispatcherSuite) TestBreakerIgnoresProviderRejections() {
	breaker := circuit.New("sms", circuit.WithFailureThreshold(1))
	dispatcher, err := New(s.sender, WithBreaker(breaker))
	s.Require().NoError(err)

	s.sender.EXPECT().Send(gomock.Any(), "+1bad", "drill").Return(errors.New("invalid To number")).Times(3)
	for range 3 {
		_, err := dispatcher.Dispatch(s.ctx, []string{"+1bad"}, "drill")
		s.Require().Error(err)
	}
	s.False(breaker.IsOpen())
}
