package models

import (
	"bytes"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

// MaxNameLength bounds a contact display name, in characters.
const MaxNameLength = 128

// Contact is one directory record.
//
// Invariants:
//   - PhoneNumber is normalized (see NormalizePhone)
//   - Roles is deduplicated and sorted
//
// At most one record per PhoneNumber is intended but not enforced; stores
// are queried by phone and may return several records.
type Contact struct {
	ID          id.ContactID `json:"id"`
	Name        string       `json:"name"`
	PhoneNumber string       `json:"phone_number"`
	Roles       Roles        `json:"roles"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewContact builds a record with a fresh ID. Inputs are expected to be
// normalized already; the name is trimmed and bounded.
func NewContact(name, phone string, roles Roles, now time.Time) (*Contact, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "name must be at most 128 characters")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone number is required")
	}
	return &Contact{
		ID:          id.NewContactID(),
		Name:        name,
		PhoneNumber: phone,
		Roles:       roles,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Label is how the contact is presented to reviewers.
func (c *Contact) Label() string {
	if c.Name == "" {
		return c.PhoneNumber
	}
	return c.Name + " (" + c.PhoneNumber + ")"
}

// Clone returns a deep copy so stores never hand out shared role slices.
func (c *Contact) Clone() *Contact {
	cp := *c
	cp.Roles = append(Roles(nil), c.Roles...)
	return &cp
}

// SortByCreation orders records the way stores report duplicates: oldest
// first, ties broken by ID.
func SortByCreation(contacts []*Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
