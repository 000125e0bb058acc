package service

import (
	"context"

	"beacon/internal/directory/models"
	dErrors "beacon/pkg/domain-errors"
)

// The methods below back the directory API. Role tokens are parsed before
// any store call so an invalid role never reaches the store.

// ListContacts returns the full directory.
func (s *Service) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	return s.List(ctx)
}

// GetContact returns the contact for phone or a NotFound error.
func (s *Service) GetContact(ctx context.Context, phone string) (*models.Contact, error) {
	contact, err := s.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
	}
	return contact, nil
}

// CreateContact adds a contact after checking the phone is not taken.
// The check and the insert are not atomic.
func (s *Service) CreateContact(ctx context.Context, name, phone string, roleTokens []string) (*models.Contact, error) {
	roles, err := models.ParseRoles(roleTokens)
	if err != nil {
		return nil, err
	}
	existing, err := s.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "a contact with this phone number already exists")
	}
	return s.Add(ctx, name, phone, roles)
}

// ReplaceRoles swaps the role set of the contact at phone and returns the
// updated record.
func (s *Service) ReplaceRoles(ctx context.Context, phone string, roleTokens []string) (*models.Contact, error) {
	roles, err := models.ParseRoles(roleTokens)
	if err != nil {
		return nil, err
	}
	updated, err := s.UpdateRoles(ctx, phone, roles)
	if err != nil {
		return nil, err
	}
	return updated[0], nil
}

// DeleteContact removes the contact at phone. Absence is not an error.
func (s *Service) DeleteContact(ctx context.Context, phone string) error {
	_, err := s.Remove(ctx, phone)
	return err
}
