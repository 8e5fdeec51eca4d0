// Package audit records reconciliation outcomes as append-only events so
// cluster history stays reconstructable after merges rewrite linkage.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened to a contact.
type Action string

const (
	// ActionContactCreated fires for every inserted contact, primary or
	// secondary.
	ActionContactCreated Action = "contact.created"
	// ActionPrimaryDemoted fires when a merge flips a primary to secondary.
	ActionPrimaryDemoted Action = "contact.primary_demoted"
)

// Event is a single audit record. PrimaryID is the cluster root after the
// action took effect.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Action     Action    `json:"action"`
	ContactID  int64     `json:"contactId"`
	PrimaryID  int64     `json:"primaryId"`
	Precedence string    `json:"precedence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
