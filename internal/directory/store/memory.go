package store

import (
	"context"
	"fmt"
	"sync"

	"beacon/internal/directory/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// InMemory keeps records in an append-only arena with secondary indexes.
// Phone lookups go through an index of arena slots, never a map keyed
// uniquely by phone, so duplicate phone records behave as they do in the
// database-backed stores.
type InMemory struct {
	mu      sync.RWMutex
	arena   []*models.Contact // nil marks a deleted slot
	byID    map[id.ContactID]int
	byPhone map[string][]int
}

// NewInMemory constructs an empty in-memory directory store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.ContactID]int),
		byPhone: make(map[string][]int),
	}
}

// Insert appends a record. Phone uniqueness is not checked.
func (s *InMemory) Insert(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[contact.ID]; exists {
		return fmt.Errorf("insert contact %s: %w", contact.ID, sentinel.ErrConflict)
	}
	slot := len(s.arena)
	s.arena = append(s.arena, contact.Clone())
	s.byID[contact.ID] = slot
	s.byPhone[contact.PhoneNumber] = append(s.byPhone[contact.PhoneNumber], slot)
	return nil
}

// FindByPhone returns every live record for phone in insertion order.
func (s *InMemory) FindByPhone(_ context.Context, phone string) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Contact
	for _, slot := range s.byPhone[phone] {
		if c := s.arena[slot]; c != nil {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// ListByRole returns every live record whose role set contains role.
func (s *InMemory) ListByRole(_ context.Context, role models.Role) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Contact
	for _, c := range s.arena {
		if c != nil && c.Roles.Has(role) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// ListAll returns a snapshot of the directory.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Contact, 0, len(s.byID))
	for _, c := range s.arena {
		if c != nil {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// Commit applies the batch all-or-nothing. Every update target is checked
// before anything is written; deletes of missing records are no-ops.
func (s *InMemory) Commit(_ context.Context, batch []models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range batch {
		switch m.Kind {
		case models.MutationUpdateRoles:
			if _, ok := s.byID[m.ContactID]; !ok {
				return fmt.Errorf("update contact %s: %w", m.ContactID, sentinel.ErrNotFound)
			}
		case models.MutationDelete:
		default:
			return fmt.Errorf("unknown mutation kind %q", m.Kind)
		}
	}

	for _, m := range batch {
		slot, ok := s.byID[m.ContactID]
		if !ok {
			continue
		}
		switch m.Kind {
		case models.MutationUpdateRoles:
			updated := s.arena[slot].Clone()
			updated.Roles = append(models.Roles(nil), m.Roles...)
			updated.UpdatedAt = m.At
			s.arena[slot] = updated
		case models.MutationDelete:
			s.removeSlot(slot)
		}
	}
	return nil
}

func (s *InMemory) removeSlot(slot int) {
	c := s.arena[slot]
	s.arena[slot] = nil
	delete(s.byID, c.ID)
	slots := s.byPhone[c.PhoneNumber]
	for i, v := range slots {
		if v == slot {
			slots = append(slots[:i], slots[i+1:]...)
			break
		}
	}
	if len(slots) == 0 {
		delete(s.byPhone, c.PhoneNumber)
		return
	}
	s.byPhone[c.PhoneNumber] = slots
}

// Ping always succeeds.
func (s *InMemory) Ping(_ context.Context) error {
	return nil
}
