package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"beacon/internal/directory/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// Schema creates the contacts table. phone_number is indexed but not unique.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL,
	roles        TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS contacts_phone_number_idx ON contacts (phone_number);
CREATE INDEX IF NOT EXISTS contacts_roles_idx ON contacts USING GIN (roles);
`

const contactColumns = `id, name, phone_number, roles, created_at, updated_at`

// PostgresStore persists contacts in PostgreSQL.
// This store is pure I/O; duplicate-phone policy belongs to the directory service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed directory store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema idempotently.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply contacts schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	query := `INSERT INTO contacts (` + contactColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		contact.ID.String(),
		contact.Name,
		contact.PhoneNumber,
		pq.Array(contact.Roles.Strings()),
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// FindByPhone returns every record for phone, oldest first.
func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone_number = $1 ORDER BY created_at, id`
	return s.query(ctx, "find contacts by phone", query, phone)
}

// ListByRole returns every record whose roles array contains role.
func (s *PostgresStore) ListByRole(ctx context.Context, role models.Role) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE $1 = ANY(roles) ORDER BY created_at, id`
	return s.query(ctx, "list contacts by role", query, string(role))
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at, id`
	return s.query(ctx, "list contacts", query)
}

// Commit applies the batch inside one transaction. An update that matches no
// row rolls the whole batch back with sentinel.ErrNotFound.
func (s *PostgresStore) Commit(ctx context.Context, batch []models.Mutation) (err error) {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contacts batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, m := range batch {
		switch m.Kind {
		case models.MutationUpdateRoles:
			res, execErr := tx.ExecContext(ctx,
				`UPDATE contacts SET roles = $2, updated_at = $3 WHERE id = $1`,
				m.ContactID.String(), pq.Array(m.Roles.Strings()), m.At,
			)
			if execErr != nil {
				return fmt.Errorf("update contact roles: %w", execErr)
			}
			rows, rowsErr := res.RowsAffected()
			if rowsErr != nil {
				return fmt.Errorf("update contact rows affected: %w", rowsErr)
			}
			if rows == 0 {
				return fmt.Errorf("update contact %s: %w", m.ContactID, sentinel.ErrNotFound)
			}
		case models.MutationDelete:
			if _, execErr := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, m.ContactID.String()); execErr != nil {
				return fmt.Errorf("delete contact: %w", execErr)
			}
		default:
			return fmt.Errorf("unknown mutation kind %q", m.Kind)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit contacts batch: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		rawID string
		roles pq.StringArray
		c     models.Contact
	)
	if err := row.Scan(&rawID, &c.Name, &c.PhoneNumber, &roles, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	u, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse contact id %q: %w", rawID, err)
	}
	c.ID = id.ContactID(u)
	c.Roles = models.RolesFromStrings(roles)
	return &c, nil
}
