package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"beacon/internal/directory/models"
	"beacon/internal/directory/service"
	"beacon/internal/directory/store"
	"beacon/internal/dispatch"
	"beacon/internal/routing"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/testutil"
)

type stubSender struct {
	mu       sync.Mutex
	count    map[string]int
	failFor  map[string]bool
	canceled int
}

func (s *stubSender) Send(ctx context.Context, to, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count[to]++
	if ctx.Err() != nil {
		s.canceled++
	}
	if s.failFor[to] {
		return errors.New("carrier rejected")
	}
	return nil
}

type InboundHandlerSuite struct {
	suite.Suite
	sender *stubSender
	router http.Handler
}

func TestInboundHandlerSuite(t *testing.T) {
	suite.Run(t, new(InboundHandlerSuite))
}

func (s *InboundHandlerSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	directory, err := service.New(store.NewInMemory(), service.WithLogger(logger))
	s.Require().NoError(err)
	for _, c := range []struct {
		name, phone string
		role        models.Role
	}{
		{"Alice", "+1A", models.RoleAdmin},
		{"Bob", "+1B", models.RoleSubscriber},
		{"Carol", "+1C", models.RoleStaff},
	} {
		_, err := directory.Add(ctx, c.name, c.phone, models.Roles{c.role})
		s.Require().NoError(err)
	}

	s.sender = &stubSender{count: map[string]int{}, failFor: map[string]bool{}}
	dispatcher, err := dispatch.New(s.sender, dispatch.WithLogger(logger))
	s.Require().NoError(err)
	engine, err := routing.New(directory, dispatcher, routing.WithLogger(logger))
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(engine, logger).Register(r)
	s.router = r
}

func (s *InboundHandlerSuite) TestFormWebhook() {
	rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), http.MethodPost, "/messages/inbound",
		url.Values{"From": {"+1C"}, "Body": {"fire drill"}}))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[OutcomeResponse](s.T(), rr)
	s.Equal("TRUSTED_ORIGINATOR", resp.Class)
	s.Equal("broadcast", resp.Action)
	s.Equal([]string{"+1B"}, resp.Recipients)
	s.True(resp.Confirmed)
	s.Require().Len(resp.Deliveries, 1)
	s.Equal("sent", resp.Deliveries[0].Status)
}

func (s *InboundHandlerSuite) TestMultipartWebhook() {
	rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/messages/inbound",
		url.Values{"From": {"+1C"}, "Body": {"fire drill"}}))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[OutcomeResponse](s.T(), rr)
	s.Equal("TRUSTED_ORIGINATOR", resp.Class)
	s.Equal([]string{"+1B"}, resp.Recipients)
	s.True(resp.Confirmed)
	s.Equal(1, s.sender.count["+1B"])
}

func (s *InboundHandlerSuite) TestRequestCancellationDoesNotReachSends() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	req := testutil.NewFormRequest(s.T(), http.MethodPost, "/messages/inbound",
		url.Values{"From": {"+1C"}, "Body": {"fire drill"}}).WithContext(ctx)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	s.Equal(1, s.sender.count["+1B"])
	s.Zero(s.sender.canceled, "sends saw the request deadline")
}

func (s *InboundHandlerSuite) TestJSONWebhook() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/messages/inbound",
		map[string]string{"from": "+1X", "body": "spam"}))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[OutcomeResponse](s.T(), rr)
	s.Equal("UNTRUSTED", resp.Class)
	s.False(resp.Confirmed)
	s.Equal(0, s.sender.count["+1X"])
}

func (s *InboundHandlerSuite) TestFanoutFailureIsBadGateway() {
	s.sender.failFor["+1B"] = true

	rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), http.MethodPost, "/messages/inbound",
		url.Values{"From": {"+1C"}, "Body": {"evacuate"}}))

	s.Equal(http.StatusBadGateway, rr.Code)
	resp := testutil.UnmarshalResponse[InboundFailureResponse](s.T(), rr)
	s.Equal(string(dErrors.CodeGatewayFailure), resp.Error)
	s.False(resp.Outcome.Confirmed)
	s.Require().Len(resp.Outcome.Deliveries, 1)
	s.Equal("failed", resp.Outcome.Deliveries[0].Status)
	s.Equal(0, s.sender.count["+1C"], "no confirmation after a failed fan-out")
}

func (s *InboundHandlerSuite) TestRejectedRequests() {
	s.Run("missing sender", func() {
		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), http.MethodPost, "/messages/inbound",
			url.Values{"Body": {"hi"}}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})

	s.Run("unsupported content type", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/messages/inbound", "From=+1C")
		req.Header.Set("Content-Type", "text/plain")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("malformed json", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/messages/inbound", "{"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}
