// Package service implements contact identity reconciliation: deciding
// whether an incoming email/phone pair belongs to a known customer, is a new
// customer, or bridges two previously separate identity groups.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"customer-identity-plane/internal/contact/domain"
	"customer-identity-plane/internal/contact/repository"
)

// Sentinel errors for the contact service; the handler maps them to HTTP
// statuses.
var (
	ErrValidation = errors.New("either email or phoneNumber must be provided")
	// ErrNoPrimary signals corrupted link state: an identity group with no
	// primary contact. Never recovered silently.
	ErrNoPrimary      = errors.New("identity group has no primary contact")
	ErrNotFound       = errors.New("contact not found")
	ErrHasSecondaries = errors.New("contact still has linked secondary contacts")
)

// Service reconciles contact identities against the contact repository. It is
// stateless; all state lives in the store.
type Service struct {
	repo repository.Repository
}

// NewService returns a Service backed by the given repository.
func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// Identify reconciles the given email/phone pair and returns the consolidated
// view of the matching customer's identity group. At least one of the two
// keys must be non-empty.
//
// The whole read-decide-write sequence runs in one transaction under advisory
// locks on the supplied keys, so concurrent calls for the same customer
// cannot both create a primary.
func (s *Service) Identify(ctx context.Context, email, phone string) (*domain.ConsolidatedContact, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, ErrValidation
	}

	var result *domain.ConsolidatedContact
	err := s.repo.InTx(ctx, func(tx repository.TxStore) error {
		if err := tx.LockKeys(ctx, identityLockKeys(email, phone)...); err != nil {
			return err
		}
		r, err := s.reconcile(ctx, tx, email, phone)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reconcile runs the resolver steps against one transaction-scoped store.
func (s *Service) reconcile(ctx context.Context, tx repository.TxStore, email, phone string) (*domain.ConsolidatedContact, error) {
	matches, err := tx.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}

	// No match at all: the pair is a brand-new customer.
	if len(matches) == 0 {
		created := &domain.Contact{
			Email:          email,
			PhoneNumber:    phone,
			LinkPrecedence: domain.LinkPrecedencePrimary,
		}
		if err := tx.Create(ctx, created); err != nil {
			return nil, fmt.Errorf("create primary contact: %w", err)
		}
		return consolidate(created, []*domain.Contact{created}), nil
	}

	anchors := anchorIDs(matches)
	closure, err := tx.FindClosure(ctx, anchors)
	if err != nil {
		return nil, fmt.Errorf("find identity group: %w", err)
	}

	primary := oldestPrimary(closure)
	if primary == nil {
		return nil, fmt.Errorf("%w (anchors %v)", ErrNoPrimary, anchors)
	}

	// A full pair that matched something but is not itself a known
	// combination carries new information: record it as a secondary of the
	// oldest primary, determined before any merge.
	if email != "" && phone != "" && !hasExactPair(closure, email, phone) {
		linkedID := primary.ID
		created := &domain.Contact{
			Email:          email,
			PhoneNumber:    phone,
			LinkedID:       &linkedID,
			LinkPrecedence: domain.LinkPrecedenceSecondary,
		}
		if err := tx.Create(ctx, created); err != nil {
			return nil, fmt.Errorf("create secondary contact: %w", err)
		}
	}

	// The request may have straddled two groups; demote every primary but
	// the oldest and flatten their secondaries onto it.
	if err := mergePrimaries(ctx, tx, closure); err != nil {
		return nil, err
	}

	final, err := tx.FindClosure(ctx, anchors)
	if err != nil {
		return nil, fmt.Errorf("refetch identity group: %w", err)
	}
	surviving := oldestPrimary(final)
	if surviving == nil {
		return nil, fmt.Errorf("%w after merge (anchors %v)", ErrNoPrimary, anchors)
	}
	return consolidate(surviving, final), nil
}

// Delete soft-deletes the contact with the given id. A primary that still
// owns live secondaries cannot be deleted, so links never point at a
// tombstone.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.InTx(ctx, func(tx repository.TxStore) error {
		c, err := tx.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get contact: %w", err)
		}
		if c == nil {
			return ErrNotFound
		}
		if c.IsPrimary() {
			n, err := tx.CountSecondaries(ctx, id)
			if err != nil {
				return fmt.Errorf("count secondaries: %w", err)
			}
			if n > 0 {
				return ErrHasSecondaries
			}
		}
		if err := tx.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
			return fmt.Errorf("delete contact: %w", err)
		}
		return nil
	})
}

// identityLockKeys derives the advisory lock keys for a request, sorted so
// concurrent callers always lock in the same order.
func identityLockKeys(email, phone string) []string {
	var keys []string
	if email != "" {
		keys = append(keys, "contact:email:"+email)
	}
	if phone != "" {
		keys = append(keys, "contact:phone:"+phone)
	}
	sort.Strings(keys)
	return keys
}

// anchorIDs collects the primary id each matched contact belongs to: the
// contact's own id for primaries, the linked id for secondaries.
func anchorIDs(matches []*domain.Contact) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, c := range matches {
		id := c.ID
		if !c.IsPrimary() && c.LinkedID != nil {
			id = *c.LinkedID
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// oldestPrimary returns the first primary in the closure. The closure is
// ordered by creation time (id as tie-break), so the first primary is the
// oldest.
func oldestPrimary(closure []*domain.Contact) *domain.Contact {
	for _, c := range closure {
		if c.IsPrimary() {
			return c
		}
	}
	return nil
}

func hasExactPair(closure []*domain.Contact, email, phone string) bool {
	for _, c := range closure {
		if c.Email == email && c.PhoneNumber == phone {
			return true
		}
	}
	return false
}

// mergePrimaries keeps the oldest primary in the closure and demotes every
// other primary to a secondary of it, re-pointing the demoted primary's own
// secondaries so chains stay one level deep.
func mergePrimaries(ctx context.Context, tx repository.TxStore, closure []*domain.Contact) error {
	var primaries []*domain.Contact
	for _, c := range closure {
		if c.IsPrimary() {
			primaries = append(primaries, c)
		}
	}
	if len(primaries) < 2 {
		return nil
	}
	survivor := primaries[0]
	for _, p := range primaries[1:] {
		if err := tx.UpdateLink(ctx, p.ID, domain.LinkPrecedenceSecondary, &survivor.ID); err != nil {
			return fmt.Errorf("demote contact %d: %w", p.ID, err)
		}
		if err := tx.RelinkSecondaries(ctx, p.ID, survivor.ID); err != nil {
			return fmt.Errorf("relink secondaries of contact %d: %w", p.ID, err)
		}
	}
	return nil
}

// consolidate projects an identity group onto the response shape: the
// primary's values first, then each distinct value from the rest of the
// closure in order of first appearance.
func consolidate(primary *domain.Contact, closure []*domain.Contact) *domain.ConsolidatedContact {
	out := &domain.ConsolidatedContact{
		PrimaryContactID:    primary.ID,
		Emails:              []string{},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}
	seenEmail := make(map[string]bool)
	seenPhone := make(map[string]bool)

	addEmail := func(v string) {
		if v != "" && !seenEmail[v] {
			seenEmail[v] = true
			out.Emails = append(out.Emails, v)
		}
	}
	addPhone := func(v string) {
		if v != "" && !seenPhone[v] {
			seenPhone[v] = true
			out.PhoneNumbers = append(out.PhoneNumbers, v)
		}
	}

	addEmail(primary.Email)
	addPhone(primary.PhoneNumber)
	for _, c := range closure {
		if c.ID != primary.ID {
			out.SecondaryContactIDs = append(out.SecondaryContactIDs, c.ID)
		}
		addEmail(c.Email)
		addPhone(c.PhoneNumber)
	}
	return out
}
