// Package models defines the contact entity and the cluster view returned
// by reconciliation.
package models

import "time"

// LinkPrecedence marks a contact as the canonical root of its cluster or as
// a record linked under one.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is a single observed identity record. A primary contact has a nil
// LinkedID; a secondary's LinkedID references its cluster's primary, never
// another secondary.
type Contact struct {
	ID             int64
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsPrimary reports whether the contact is its cluster's root.
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// RootID returns the id of the contact's cluster root: itself when primary,
// its LinkedID otherwise.
func (c Contact) RootID() int64 {
	if c.LinkedID != nil {
		return *c.LinkedID
	}
	return c.ID
}

// NewContact is the write model for inserts. The store assigns ID,
// CreatedAt and UpdatedAt.
type NewContact struct {
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
}

// ClusterView is the externally visible shape of a cluster after a resolve:
// the primary's id, the deduplicated email and phone lists with the
// primary's values first, and the ids of all secondaries.
type ClusterView struct {
	PrimaryID    int64
	Emails       []string
	PhoneNumbers []string
	SecondaryIDs []int64
}
