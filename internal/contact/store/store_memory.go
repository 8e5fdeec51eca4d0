package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"weld/internal/contact/models"
)

// Memory is an in-memory Store. It keeps the initial implementation
// lightweight and testable and intentionally favors clarity over
// performance. Ids are assigned from a monotonic counter, matching the
// sequence semantics of the postgres implementation.
type Memory struct {
	mu       sync.RWMutex
	contacts map[int64]models.Contact
	nextID   int64
	now      func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[int64]models.Contact),
		nextID:   1,
		now:      time.Now,
	}
}

// WithClock overrides the store clock. Tests use it to control createdAt
// ordering.
func (s *Memory) WithClock(now func() time.Time) *Memory {
	s.now = now
	return s
}

func (s *Memory) FindByEmailOrPhone(_ context.Context, email, phone *string) ([]models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Contact
	for _, c := range s.contacts {
		if c.DeletedAt != nil {
			continue
		}
		if email != nil && c.Email != nil && *c.Email == *email {
			matched = append(matched, c)
			continue
		}
		if phone != nil && c.PhoneNumber != nil && *c.PhoneNumber == *phone {
			matched = append(matched, c)
		}
	}
	sortByID(matched)
	return matched, nil
}

func (s *Memory) FindByIDsOrLinkedIDs(_ context.Context, ids []int64) ([]models.Contact, error) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Contact
	for _, c := range s.contacts {
		if c.DeletedAt != nil {
			continue
		}
		if _, ok := wanted[c.ID]; ok {
			matched = append(matched, c)
			continue
		}
		if c.LinkedID != nil {
			if _, ok := wanted[*c.LinkedID]; ok {
				matched = append(matched, c)
			}
		}
	}
	sortByID(matched)
	return matched, nil
}

func (s *Memory) Insert(_ context.Context, contact models.NewContact) (models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	created := models.Contact{
		ID:             s.nextID,
		Email:          contact.Email,
		PhoneNumber:    contact.PhoneNumber,
		LinkedID:       contact.LinkedID,
		LinkPrecedence: contact.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.nextID++
	s.contacts[created.ID] = created
	return created, nil
}

func (s *Memory) UpdateLinkage(_ context.Context, id int64, precedence models.LinkPrecedence, linkedID *int64, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	c.LinkPrecedence = precedence
	c.LinkedID = linkedID
	c.UpdatedAt = updatedAt
	s.contacts[id] = c
	return nil
}

func (s *Memory) BulkRelink(_ context.Context, oldLinkedID, newLinkedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.contacts {
		if c.DeletedAt != nil || c.LinkedID == nil || *c.LinkedID != oldLinkedID {
			continue
		}
		relinked := newLinkedID
		c.LinkedID = &relinked
		s.contacts[id] = c
	}
	return nil
}

// Len reports the number of stored contacts. Tests use it to assert that a
// resolve performed no inserts.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

// sortByID keeps memory results in insertion order, matching the ordering
// the postgres queries return.
func sortByID(contacts []models.Contact) {
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].ID < contacts[j].ID })
}
