package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"weld/internal/contact/models"
)

// Schema is the contacts table DDL. The BIGSERIAL primary key satisfies the
// unique, creation-ordered identifier contract; seniority comparisons still
// go through created_at.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id              BIGSERIAL PRIMARY KEY,
    email           TEXT,
    phone_number    TEXT,
    linked_id       BIGINT REFERENCES contacts(id),
    link_precedence TEXT NOT NULL CHECK (link_precedence IN ('primary', 'secondary')),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts (email) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_contacts_phone_number ON contacts (phone_number) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_contacts_linked_id ON contacts (linked_id) WHERE deleted_at IS NULL;
`

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at`

// Postgres persists contacts in PostgreSQL via a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the contacts table and indexes if missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure contacts schema: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]models.Contact, error) {
	// Soft-deleted rows are invisible to reconciliation; every query
	// filters them here rather than in the service.
	query := `SELECT ` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL
		  AND ((email = $1 AND $1 IS NOT NULL) OR (phone_number = $2 AND $2 IS NOT NULL))
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, email, phone)
	if err != nil {
		return nil, fmt.Errorf("find contacts by email or phone: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *Postgres) FindByIDsOrLinkedIDs(ctx context.Context, ids []int64) ([]models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (id = ANY($1) OR linked_id = ANY($1))
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("find contacts by ids: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *Postgres) Insert(ctx context.Context, contact models.NewContact) (models.Contact, error) {
	query := `INSERT INTO contacts (email, phone_number, linked_id, link_precedence)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + contactColumns
	row := s.pool.QueryRow(ctx, query,
		contact.Email, contact.PhoneNumber, contact.LinkedID, string(contact.LinkPrecedence))
	created, err := scanContact(row)
	if err != nil {
		return models.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return created, nil
}

func (s *Postgres) UpdateLinkage(ctx context.Context, id int64, precedence models.LinkPrecedence, linkedID *int64, updatedAt time.Time) error {
	query := `UPDATE contacts
		SET link_precedence = $2, linked_id = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, query, id, string(precedence), linkedID, updatedAt)
	if err != nil {
		return fmt.Errorf("update contact linkage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) BulkRelink(ctx context.Context, oldLinkedID, newLinkedID int64) error {
	query := `UPDATE contacts
		SET linked_id = $2, updated_at = now()
		WHERE linked_id = $1 AND deleted_at IS NULL`
	if _, err := s.pool.Exec(ctx, query, oldLinkedID, newLinkedID); err != nil {
		return fmt.Errorf("bulk relink contacts: %w", err)
	}
	return nil
}

func scanContacts(rows pgx.Rows) ([]models.Contact, error) {
	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan contacts: %w", err)
	}
	return contacts, nil
}

func scanContact(row pgx.Row) (models.Contact, error) {
	var c models.Contact
	var precedence string
	err := row.Scan(&c.ID, &c.Email, &c.PhoneNumber, &c.LinkedID, &precedence,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return models.Contact{}, err
	}
	c.LinkPrecedence = models.LinkPrecedence(precedence)
	return c, nil
}
