package events

import (
	"time"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketReclassified  EventType = "ticket_reclassified"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.ActorType `json:"type"`
	ActorID string           `json:"actor_id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject       string              `json:"subject"`
	InitialStatus domain.TicketStatus `json:"initial_status"`
	CategoryID    *string             `json:"category_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	TimeInStatus *int64              `json:"time_in_status,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssignee string `json:"old_assignee"`
	NewAssignee string `json:"new_assignee"`
}

// TicketReclassifiedPayload payload.
type TicketReclassifiedPayload struct {
	Change domain.CategoryChange `json:"change"`
}
