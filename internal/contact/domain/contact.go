package domain

import (
	"errors"
	"time"
)

// Contact is the core customer contact entity. A contact is either the
// canonical (primary) record for a customer or a secondary record subsumed
// into a primary's identity via LinkedID.
type Contact struct {
	ID          int64
	Email       string // optional; empty means not recorded
	PhoneNumber string // optional; empty means not recorded
	// LinkedID points at the owning primary contact; nil for primaries.
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// DeletedAt is the soft-delete tombstone; deleted contacts are invisible
	// to reconciliation.
	DeletedAt *time.Time
}

type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// IsPrimary reports whether the contact is the canonical record of its group.
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// Validate validates the contact for persistence. Returns an error describing
// the first validation failure.
func (c *Contact) Validate() error {
	if c.Email == "" && c.PhoneNumber == "" {
		return errors.New("at least one of email or phone number is required")
	}
	switch c.LinkPrecedence {
	case LinkPrecedencePrimary:
		if c.LinkedID != nil {
			return errors.New("primary contact must not have a linked id")
		}
	case LinkPrecedenceSecondary:
		if c.LinkedID == nil {
			return errors.New("secondary contact must have a linked id")
		}
	default:
		return errors.New("link precedence must be primary or secondary")
	}
	return nil
}

// ConsolidatedContact is the projection of one customer's full identity
// group: the primary's values first, then every distinct value contributed
// by secondaries, in order of first appearance.
type ConsolidatedContact struct {
	PrimaryContactID    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []int64
}
