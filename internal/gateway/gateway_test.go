package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/pkg/platform/sentinel"
)

type HTTPSenderSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestHTTPSenderSuite(t *testing.T) {
	suite.Run(t, new(HTTPSenderSuite))
}

func (s *HTTPSenderSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *HTTPSenderSuite) newSender(url string) *HTTPSender {
	sender, err := NewHTTPSender(HTTPConfig{
		BaseURL:   url,
		AccountID: "AC123",
		AuthToken: "secret",
		From:      "+15550000000",
		Timeout:   2 * time.Second,
	}, s.logger)
	s.Require().NoError(err)
	return sender
}

func (s *HTTPSenderSuite) TestNewHTTPSender() {
	s.Run("base url required", func() {
		_, err := NewHTTPSender(HTTPConfig{From: "+1"}, s.logger)
		s.Error(err)
	})
	s.Run("from required", func() {
		_, err := NewHTTPSender(HTTPConfig{BaseURL: "http://localhost"}, s.logger)
		s.Error(err)
	})
}

func (s *HTTPSenderSuite) TestSendPostsForm() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		s.True(ok)
		s.Equal("AC123", user)
		s.Equal("secret", pass)
		s.NoError(r.ParseForm())
		s.Equal("+1B", r.PostForm.Get("To"))
		s.Equal("+15550000000", r.PostForm.Get("From"))
		s.Equal("fire drill", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SM1", "status": "queued"})
	}))
	defer srv.Close()

	s.NoError(s.newSender(srv.URL).Send(context.Background(), "+1B", "fire drill"))
}

func (s *HTTPSenderSuite) TestSendRejected() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 21211, "message": "invalid To number"})
	}))
	defer srv.Close()

	err := s.newSender(srv.URL).Send(context.Background(), "+1bad", "hi")
	var sendErr *SendError
	s.Require().True(errors.As(err, &sendErr))
	s.Equal(http.StatusBadRequest, sendErr.StatusCode)
	s.Equal(21211, sendErr.Code)
	s.Equal("invalid To number", sendErr.Message)
	s.Equal(int32(1), calls.Load(), "provider errors are never retried")
}

func (s *HTTPSenderSuite) TestSendTransportFailure() {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := s.newSender(url).Send(context.Background(), "+1B", "hi")
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	sender := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := sender.Send(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
