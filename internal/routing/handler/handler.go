package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beacon/internal/directory/models"
	"beacon/internal/routing"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/requestcontext"
)

const maxFormBytes = 64 << 10

// Router is the routing engine entry point.
type Router interface {
	HandleInbound(ctx context.Context, from, body string) (*routing.Outcome, error)
}

// Handler receives inbound SMS webhooks.
type Handler struct {
	router Router
	logger *slog.Logger
}

// New constructs an inbound message handler.
func New(router Router, logger *slog.Logger) *Handler {
	return &Handler{router: router, logger: logger}
}

// Register mounts the inbound webhook.
func (h *Handler) Register(r chi.Router) {
	r.Post("/messages/inbound", h.HandleInbound)
}

// HandleInbound handles POST /messages/inbound. Form bodies use the
// provider field names From and Body; JSON bodies use from and body.
func (h *Handler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := decodeInbound(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid inbound message",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// Sends already started must settle; the request deadline and client
	// disconnects do not cancel them. Each send is bounded by the gateway timeout.
	outcome, err := h.router.HandleInbound(context.WithoutCancel(ctx), req.From, req.Body)
	if err != nil {
		if outcome != nil && dErrors.HasCode(err, dErrors.CodeGatewayFailure) {
			httputil.WriteJSON(w, http.StatusBadGateway, InboundFailureResponse{
				Error:            string(dErrors.CodeGatewayFailure),
				ErrorDescription: dErrors.MessageOf(err),
				Outcome:          toOutcomeResponse(outcome),
			})
			return
		}
		h.logger.WarnContext(ctx, "inbound message rejected",
			"request_id", requestID,
			"sender", models.MaskPhone(req.From),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

func decodeInbound(w http.ResponseWriter, r *http.Request) (*InboundRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var req InboundRequest
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
		}
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid form body")
		}
		req.From = r.PostForm.Get("From")
		req.Body = r.PostForm.Get("Body")
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid form body")
		}
		req.From = r.PostForm.Get("From")
		req.Body = r.PostForm.Get("Body")
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported content type")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
