package handler

import (
	"strings"
	"time"
	"unicode/utf8"

	"beacon/internal/directory/models"
	dErrors "beacon/pkg/domain-errors"
)

// maxRoleTokens bounds the role list of a single request.
const maxRoleTokens = 8

// CreateContactRequest is the body of POST /contacts.
type CreateContactRequest struct {
	Name        string   `json:"name"`
	PhoneNumber string   `json:"phone_number"`
	Roles       []string `json:"roles"`
}

// Validate implements httputil.Validatable. Role tokens are checked by the
// service so unknown roles report invalid_role.
func (r *CreateContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if utf8.RuneCountInString(r.Name) > models.MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 128 characters")
	}
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	if r.PhoneNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "phone_number is required")
	}
	return validateRoleTokens(r.Roles)
}

// ReplaceRolesRequest is the body of PUT /contacts/{phone}/roles.
type ReplaceRolesRequest struct {
	Roles []string `json:"roles"`
}

func (r *ReplaceRolesRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return validateRoleTokens(r.Roles)
}

func validateRoleTokens(roles []string) error {
	if len(roles) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one role is required")
	}
	if len(roles) > maxRoleTokens {
		return dErrors.New(dErrors.CodeValidation, "too many roles")
	}
	return nil
}

// ContactResponse is the wire form of a contact.
type ContactResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContactListResponse is the body of GET /contacts.
type ContactListResponse struct {
	Contacts []ContactResponse `json:"contacts"`
	Total    int               `json:"total"`
}

func toContactResponse(c *models.Contact) ContactResponse {
	return ContactResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Roles:       c.Roles.Strings(),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toContactListResponse(contacts []*models.Contact) ContactListResponse {
	out := ContactListResponse{Contacts: make([]ContactResponse, 0, len(contacts)), Total: len(contacts)}
	for _, c := range contacts {
		out.Contacts = append(out.Contacts, toContactResponse(c))
	}
	return out
}
