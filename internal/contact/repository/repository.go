package repository

import (
	"context"
	"time"

	"customer-identity-plane/internal/contact/domain"
)

// Store defines persistence for contacts. Soft-deleted rows are invisible to
// every query.
type Store interface {
	// FindByEmailOrPhone returns contacts whose email or phone number exactly
	// matches one of the supplied values. Empty values are not matched.
	FindByEmailOrPhone(ctx context.Context, email, phone string) ([]*domain.Contact, error)
	// FindClosure returns every contact whose id or linked id is in
	// anchorIDs, ordered by created_at ascending (id as tie-break).
	FindClosure(ctx context.Context, anchorIDs []int64) ([]*domain.Contact, error)
	// GetByID returns the contact for id, or nil if not found.
	GetByID(ctx context.Context, id int64) (*domain.Contact, error)
	// Create persists the contact and fills in ID, CreatedAt, and UpdatedAt.
	Create(ctx context.Context, c *domain.Contact) error
	// UpdateLink sets the contact's precedence and linked id and bumps
	// updated_at.
	UpdateLink(ctx context.Context, id int64, precedence domain.LinkPrecedence, linkedID *int64) error
	// RelinkSecondaries re-points every contact linked to oldLinkedID at
	// newLinkedID.
	RelinkSecondaries(ctx context.Context, oldLinkedID, newLinkedID int64) error
	// CountSecondaries returns the number of live contacts linked to id.
	CountSecondaries(ctx context.Context, id int64) (int64, error)
	// SoftDelete marks the contact deleted at the given time.
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

// TxStore is a Store scoped to one transaction, with access to
// transaction-lifetime advisory locks.
type TxStore interface {
	Store
	// LockKeys serializes callers on the given keys for the remainder of the
	// transaction. Keys should be locked in a stable order.
	LockKeys(ctx context.Context, keys ...string) error
}

// Repository is the full contact persistence contract consumed by the
// reconciliation service.
type Repository interface {
	Store
	// InTx runs fn inside a single transaction; the transaction commits when
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}
