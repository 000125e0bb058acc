package domain

import (
	"github.com/google/uuid"

	dErrors "beacon/pkg/domain-errors"
)

// ContactID identifies one directory record. Records, not phone numbers, are
// the unit of storage: several records may share a phone number.
type ContactID uuid.UUID

// NewContactID returns a fresh random ID.
func NewContactID() ContactID {
	return ContactID(uuid.New())
}

// ParseContactID validates external input. Nil UUIDs are rejected.
func ParseContactID(s string) (ContactID, error) {
	if s == "" {
		return ContactID{}, dErrors.New(dErrors.CodeValidation, "contact id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ContactID{}, dErrors.New(dErrors.CodeValidation, "invalid contact id")
	}
	if u == uuid.Nil {
		return ContactID{}, dErrors.New(dErrors.CodeValidation, "invalid contact id")
	}
	return ContactID(u), nil
}

func (id ContactID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero value.
func (id ContactID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText lets ContactID render as a plain UUID string in JSON.
func (id ContactID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText parses a UUID string.
func (id *ContactID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = ContactID(u)
	return nil
}
