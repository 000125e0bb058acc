package models

import (
	"time"

	id "beacon/pkg/domain"
)

// MutationKind selects the batch operation applied to a record.
type MutationKind string

const (
	MutationUpdateRoles MutationKind = "update_roles"
	MutationDelete      MutationKind = "delete"
)

// Mutation is one operation in an atomic batch commit. Batches are keyed by
// record ID, never by phone, so a batch built from a read applies exactly to
// the records that read returned.
type Mutation struct {
	Kind      MutationKind
	ContactID id.ContactID
	Roles     Roles
	At        time.Time
}

// UpdateRoles replaces a record's role set wholesale.
func UpdateRoles(contactID id.ContactID, roles Roles, at time.Time) Mutation {
	return Mutation{Kind: MutationUpdateRoles, ContactID: contactID, Roles: roles, At: at}
}

// Delete removes a record.
func Delete(contactID id.ContactID) Mutation {
	return Mutation{Kind: MutationDelete, ContactID: contactID}
}
