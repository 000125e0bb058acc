package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"beacon/internal/directory/models"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/requestcontext"
)

// Service is the directory surface the HTTP layer needs.
type Service interface {
	ListContacts(ctx context.Context) ([]*models.Contact, error)
	GetContact(ctx context.Context, phone string) (*models.Contact, error)
	CreateContact(ctx context.Context, name, phone string, roles []string) (*models.Contact, error)
	ReplaceRoles(ctx context.Context, phone string, roles []string) (*models.Contact, error)
	DeleteContact(ctx context.Context, phone string) error
}

// Handler exposes the contact directory over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a directory handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the directory routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{phone}", h.HandleGet)
		r.Put("/{phone}/roles", h.HandleReplaceRoles)
		r.Delete("/{phone}", h.HandleDelete)
	})
}

// HandleList handles GET /contacts.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contacts, err := h.service.ListContacts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list contacts",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toContactListResponse(contacts))
}

// HandleGet handles GET /contacts/{phone}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	contact, err := h.service.GetContact(ctx, phone)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to get contact", phone, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toContactResponse(contact))
}

// HandleCreate handles POST /contacts.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateContactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	contact, err := h.service.CreateContact(ctx, req.Name, req.PhoneNumber, req.Roles)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create contact", req.PhoneNumber, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toContactResponse(contact))
}

// HandleReplaceRoles handles PUT /contacts/{phone}/roles.
func (h *Handler) HandleReplaceRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ReplaceRolesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	contact, err := h.service.ReplaceRoles(ctx, phone, req.Roles)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to replace roles", phone, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toContactResponse(contact))
}

// HandleDelete handles DELETE /contacts/{phone}. Deleting an unknown phone
// still answers 204.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteContact(ctx, phone); err != nil {
		h.writeServiceError(ctx, w, "failed to delete contact", phone, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// phoneParam reads {phone}, undoing percent-encoding of a leading "+".
func (h *Handler) phoneParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	phone, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil || phone == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid phone number in path"))
		return "", false
	}
	return phone, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg, phone string, err error) {
	log := h.logger.WarnContext
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable:
		log = h.logger.ErrorContext
	}
	log(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"phone", models.MaskPhone(phone),
		"error", err,
	)
	httputil.WriteError(w, err)
}
