package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"customer-identity-plane/internal/contact/domain"
)

const contactColumns = `id, phone_number, email, linked_id, link_precedence, created_at, updated_at, deleted_at`

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresRepository persists contacts in Postgres via database/sql (pgx
// stdlib driver).
type PostgresRepository struct {
	db *sql.DB
	queries
}

// NewPostgresRepository returns a contact repository that uses the given db
// for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, queries: queries{q: db}}
}

// InTx runs fn inside a single transaction. Advisory locks taken through the
// TxStore are released with the transaction.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&txStore{queries: queries{q: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// txStore runs queries on one open transaction.
type txStore struct {
	queries
}

// LockKeys takes a transaction-scoped advisory lock per key. Locks are held
// until the surrounding transaction commits or rolls back, serializing
// concurrent reconciliation of overlapping identity keys.
func (s *txStore) LockKeys(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
			return fmt.Errorf("advisory lock %q: %w", k, err)
		}
	}
	return nil
}

// queries implements Store against any dbtx.
type queries struct {
	q dbtx
}

func (s queries) FindByEmailOrPhone(ctx context.Context, email, phone string) ([]*domain.Contact, error) {
	switch {
	case email != "" && phone != "":
		return s.selectContacts(ctx, `SELECT `+contactColumns+` FROM contacts
			WHERE (email = $1 OR phone_number = $2) AND deleted_at IS NULL
			ORDER BY created_at, id`, email, phone)
	case email != "":
		return s.selectContacts(ctx, `SELECT `+contactColumns+` FROM contacts
			WHERE email = $1 AND deleted_at IS NULL
			ORDER BY created_at, id`, email)
	case phone != "":
		return s.selectContacts(ctx, `SELECT `+contactColumns+` FROM contacts
			WHERE phone_number = $1 AND deleted_at IS NULL
			ORDER BY created_at, id`, phone)
	default:
		return nil, nil
	}
}

func (s queries) FindClosure(ctx context.Context, anchorIDs []int64) ([]*domain.Contact, error) {
	if len(anchorIDs) == 0 {
		return nil, nil
	}
	return s.selectContacts(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE (id = ANY($1) OR linked_id = ANY($1)) AND deleted_at IS NULL
		ORDER BY created_at, id`, anchorIDs)
}

// GetByID returns the contact for id, or nil if not found or soft-deleted.
// It returns an error only for database failures, not for missing rows.
func (s queries) GetByID(ctx context.Context, id int64) (*domain.Contact, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE id = $1 AND deleted_at IS NULL`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (s queries) Create(ctx context.Context, c *domain.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	email := sql.NullString{String: c.Email, Valid: c.Email != ""}
	phone := sql.NullString{String: c.PhoneNumber, Valid: c.PhoneNumber != ""}
	linked := sql.NullInt64{}
	if c.LinkedID != nil {
		linked = sql.NullInt64{Int64: *c.LinkedID, Valid: true}
	}
	err := s.q.QueryRowContext(ctx, `INSERT INTO contacts
		(phone_number, email, linked_id, link_precedence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		phone, email, linked, string(c.LinkPrecedence), now).Scan(&c.ID)
	if err != nil {
		return err
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s queries) UpdateLink(ctx context.Context, id int64, precedence domain.LinkPrecedence, linkedID *int64) error {
	linked := sql.NullInt64{}
	if linkedID != nil {
		linked = sql.NullInt64{Int64: *linkedID, Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `UPDATE contacts
		SET link_precedence = $1, linked_id = $2, updated_at = $3
		WHERE id = $4`, string(precedence), linked, time.Now().UTC(), id)
	return err
}

func (s queries) RelinkSecondaries(ctx context.Context, oldLinkedID, newLinkedID int64) error {
	_, err := s.q.ExecContext(ctx, `UPDATE contacts
		SET linked_id = $2, updated_at = $3
		WHERE linked_id = $1 AND deleted_at IS NULL`,
		oldLinkedID, newLinkedID, time.Now().UTC())
	return err
}

func (s queries) CountSecondaries(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts
		WHERE linked_id = $1 AND deleted_at IS NULL`, id).Scan(&n)
	return n, err
}

func (s queries) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `UPDATE contacts
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, at.UTC())
	return err
}

func (s queries) selectContacts(ctx context.Context, query string, args ...any) ([]*domain.Contact, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	c := &domain.Contact{}
	var phone, email sql.NullString
	var linkedID sql.NullInt64
	var precedence string
	var deletedAt sql.NullTime

	if err := row.Scan(&c.ID, &phone, &email, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	c.PhoneNumber = phone.String
	c.Email = email.String
	c.LinkPrecedence = domain.LinkPrecedence(precedence)
	if linkedID.Valid {
		v := linkedID.Int64
		c.LinkedID = &v
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	return c, nil
}
