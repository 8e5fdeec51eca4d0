// Package store persists contact records. It offers the query and mutation
// primitives reconciliation needs and nothing more; cluster logic lives in
// the service.
package store

import (
	"context"
	"time"

	"weld/internal/contact/models"

	pkgerrors "weld/pkg/domain-errors"
)

var (
	// ErrNotFound keeps store-specific 404s consistent across in-memory and
	// postgres implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
)

// Store is interface-driven to keep the reconciliation logic testable and to
// allow swapping in-memory and postgres persistence without rewiring
// business code.
type Store interface {
	// FindByEmailOrPhone returns contacts whose email equals email or whose
	// phone number equals phone. A nil side is skipped from the predicate.
	FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]models.Contact, error)

	// FindByIDsOrLinkedIDs returns contacts whose id is in ids, or whose
	// linked id is in ids. This is full cluster membership for root ids.
	FindByIDsOrLinkedIDs(ctx context.Context, ids []int64) ([]models.Contact, error)

	// Insert persists a new contact, assigning its id and timestamps.
	Insert(ctx context.Context, contact models.NewContact) (models.Contact, error)

	// UpdateLinkage rewrites a contact's precedence and linked id.
	UpdateLinkage(ctx context.Context, id int64, precedence models.LinkPrecedence, linkedID *int64, updatedAt time.Time) error

	// BulkRelink re-points every contact linked to oldLinkedID at
	// newLinkedID.
	BulkRelink(ctx context.Context, oldLinkedID, newLinkedID int64) error
}
