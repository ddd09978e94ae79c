package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusWaiting    TicketStatus = "waiting"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusReopened   TicketStatus = "reopened"
	TicketStatusDeleted    TicketStatus = "deleted"
)

var knownStatuses = map[TicketStatus]struct{}{
	TicketStatusNew:        {},
	TicketStatusOpen:       {},
	TicketStatusInProgress: {},
	TicketStatusWaiting:    {},
	TicketStatusPending:    {},
	TicketStatusResolved:   {},
	TicketStatusClosed:     {},
	TicketStatusReopened:   {},
	TicketStatusDeleted:    {},
}

// IsKnownStatus reports membership in the lifecycle status set.
func IsKnownStatus(status TicketStatus) bool {
	_, ok := knownStatuses[status]
	return ok
}

// NormalizeStatus coerces arbitrary input to a member of the status set.
// Unknown values become "open" so a bad status never blocks a ticket write.
func NormalizeStatus(raw string) TicketStatus {
	status := TicketStatus(raw)
	if IsKnownStatus(status) {
		return status
	}
	return TicketStatusOpen
}

// Ticket is the aggregate for support requests. Its Status column must always
// mirror the newest status transition in the ledger; both are written in the
// same transaction.
type Ticket struct {
	ID              string
	ExternalKey     string
	Subject         string
	Description     string
	RequesterName   string
	Assignee        string
	CategoryID      *string
	CategoryName    string
	SubcategoryID   *string
	SubcategoryName string
	GroupID         *string
	GroupName       string
	Status          TicketStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}
