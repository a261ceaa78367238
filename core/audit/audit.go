// Package audit provides audit logging for Kayan Link.
//
// Every successful mutation of the identity graph and every detected conflict
// is recorded as a structured event, so operators can reconstruct how a
// primary-user cluster came to be.
package audit

import (
	"context"
	"time"

	"github.com/getkayan/kayan-link/core/identity"
)

// AuditEvent represents a structured record of one linking decision.
type AuditEvent struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"` // e.g., "accountlinking.linked"
	AppID     string        `json:"app_id"`
	SubjectID string        `json:"subject_id"` // the login method acted upon
	PrimaryID string        `json:"primary_id"` // the cluster involved, if any
	Status    string        `json:"status"`     // "success", "conflict", "rejected"
	Message   string        `json:"message"`
	Metadata  identity.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AuditStore defines the interface for persisting and querying audit events.
type AuditStore interface {
	// SaveEvent persists an audit event.
	SaveEvent(ctx context.Context, event *AuditEvent) error

	// QueryEvents returns events matching the filter, newest first.
	QueryEvents(ctx context.Context, filter Filter) ([]AuditEvent, error)

	// PurgeEvents deletes events older than the specified time and returns
	// the number deleted.
	PurgeEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Filter for querying audit events.
type Filter struct {
	AppID     string
	SubjectID string
	PrimaryID string
	Types     []string
	Statuses  []string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// ---- Event Types ----

const (
	EventPrimaryUserCreated = "accountlinking.primary.created"
	EventAccountsLinked     = "accountlinking.linked"
	EventAccountUnlinked    = "accountlinking.unlinked"
	EventLinkConflict       = "accountlinking.conflict"
	EventLinkRejected       = "accountlinking.rejected"
)

const (
	StatusSuccess  = "success"
	StatusConflict = "conflict"
	StatusRejected = "rejected"
)
