package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"beacon/internal/directory/metrics"
	"beacon/internal/directory/models"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

// Store is the document store port. Lookups are filtered queries, so a
// phone number may match zero, one or many records.
type Store interface {
	Insert(ctx context.Context, contact *models.Contact) error
	FindByPhone(ctx context.Context, phone string) ([]*models.Contact, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.Contact, error)
	ListAll(ctx context.Context) ([]*models.Contact, error)
	Commit(ctx context.Context, batch []models.Mutation) error
	Ping(ctx context.Context) error
}

// Service is the domain view over the contact store: lifecycle, role-set
// semantics and the duplicate-phone policy.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("contact store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FindByPhone returns the first record matching phone in store order, or
// nil when the phone is unknown. Uniqueness is not enforced; duplicates are
// logged and counted.
func (s *Service) FindByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	matches, err := s.findAll(ctx, phone)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		s.metrics.IncrementDuplicatePhones()
		s.logger.WarnContext(ctx, "duplicate contacts for phone",
			"request_id", requestcontext.RequestID(ctx),
			"phone", models.MaskPhone(matches[0].PhoneNumber),
			"matches", len(matches),
		)
	}
	return matches[0], nil
}

// ListByRole returns every contact whose role set contains role.
func (s *Service) ListByRole(ctx context.Context, role models.Role) ([]*models.Contact, error) {
	start := time.Now()
	contacts, err := s.store.ListByRole(ctx, role)
	s.metrics.ObserveStoreCall("list_by_role", start)
	if err != nil {
		return nil, translateStoreError(err, "failed to list contacts by role")
	}
	return contacts, nil
}

// List returns a snapshot of the whole directory.
func (s *Service) List(ctx context.Context) ([]*models.Contact, error) {
	start := time.Now()
	contacts, err := s.store.ListAll(ctx)
	s.metrics.ObserveStoreCall("list_all", start)
	if err != nil {
		return nil, translateStoreError(err, "failed to list contacts")
	}
	return contacts, nil
}

// Add inserts a new record unconditionally. Callers that need phone
// uniqueness must check with FindByPhone first; the check is not atomic
// with the insert.
func (s *Service) Add(ctx context.Context, name, phone string, roles models.Roles) (*models.Contact, error) {
	normalized, err := models.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	contact, err := models.NewContact(name, normalized, roles, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.store.Insert(ctx, contact)
	s.metrics.ObserveStoreCall("insert", start)
	if err != nil {
		return nil, translateStoreError(err, "failed to add contact")
	}

	s.metrics.IncrementContactsCreated()
	s.logger.InfoContext(ctx, "contact added",
		"request_id", requestcontext.RequestID(ctx),
		"contact_id", contact.ID.String(),
		"phone", models.MaskPhone(contact.PhoneNumber),
		"roles", contact.Roles.Strings(),
	)
	return contact, nil
}

// UpdateRoles replaces the role set of every record matching phone in one
// atomic commit. Duplicates are all updated identically. The lookup and the
// commit are separate steps: records inserted in between are not touched.
func (s *Service) UpdateRoles(ctx context.Context, phone string, roles models.Roles) ([]*models.Contact, error) {
	matches, err := s.findAll(ctx, phone)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
	}

	now := requestcontext.Now(ctx)
	batch := make([]models.Mutation, 0, len(matches))
	for _, c := range matches {
		batch = append(batch, models.UpdateRoles(c.ID, roles, now))
	}
	if err := s.commit(ctx, batch); err != nil {
		return nil, err
	}

	updated := make([]*models.Contact, 0, len(matches))
	for _, c := range matches {
		c.Roles = append(models.Roles(nil), roles...)
		c.UpdatedAt = now
		updated = append(updated, c)
	}
	s.metrics.AddMutated(string(models.MutationUpdateRoles), len(updated))
	s.logger.InfoContext(ctx, "contact roles replaced",
		"request_id", requestcontext.RequestID(ctx),
		"phone", models.MaskPhone(matches[0].PhoneNumber),
		"records", len(updated),
		"roles", roles.Strings(),
	)
	return updated, nil
}

// Remove deletes every record matching phone in one atomic commit and
// reports how many were removed. An unknown phone is a no-op.
func (s *Service) Remove(ctx context.Context, phone string) (int, error) {
	matches, err := s.findAll(ctx, phone)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	batch := make([]models.Mutation, 0, len(matches))
	for _, c := range matches {
		batch = append(batch, models.Delete(c.ID))
	}
	if err := s.commit(ctx, batch); err != nil {
		return 0, err
	}

	s.metrics.AddMutated(string(models.MutationDelete), len(batch))
	s.logger.InfoContext(ctx, "contact removed",
		"request_id", requestcontext.RequestID(ctx),
		"phone", models.MaskPhone(matches[0].PhoneNumber),
		"records", len(batch),
	)
	return len(batch), nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "contact store unavailable")
	}
	return nil
}

func (s *Service) findAll(ctx context.Context, phone string) ([]*models.Contact, error) {
	normalized, err := models.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	matches, err := s.store.FindByPhone(ctx, normalized)
	s.metrics.ObserveStoreCall("find_by_phone", start)
	if err != nil {
		return nil, translateStoreError(err, "failed to look up contact")
	}
	return matches, nil
}

func (s *Service) commit(ctx context.Context, batch []models.Mutation) error {
	start := time.Now()
	err := s.store.Commit(ctx, batch)
	s.metrics.ObserveStoreCall("commit", start)
	if err == nil {
		return nil
	}
	s.logger.WarnContext(ctx, "contact batch rejected",
		"request_id", requestcontext.RequestID(ctx),
		"mutations", len(batch),
		"error", err,
	)
	return translateStoreError(err, "failed to commit contact changes")
}

// translateStoreError maps store sentinels to domain codes. Anything the
// store does not classify is a transport failure.
func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "contact not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "contact changed concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}
