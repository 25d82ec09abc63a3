package reconcile

import (
	"time"

	"github.com/linnemanlabs/beacon/internal/incident"
)

// Action records which tracker mutation a reconciliation performed.
type Action string

const (
	// ActionCreated means a new ticket was opened.
	ActionCreated Action = "created"

	// ActionCommented means evidence was appended to an existing ticket.
	ActionCommented Action = "commented"
)

// Outcome is the audit record of one reconciled incident.
type Outcome struct {
	ID          string            `json:"id"`
	Fingerprint string            `json:"fingerprint"`
	Source      incident.Source   `json:"source"`
	Summary     string            `json:"summary"`
	TicketKey   string            `json:"ticket_key"`
	Action      Action            `json:"action"`
	Priority    incident.Priority `json:"priority"`
	State       string            `json:"state"`
	ProcessedAt time.Time         `json:"processed_at"`
}
