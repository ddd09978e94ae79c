package domain

import "time"

// TransitionKind discriminates the three variants sharing the ledger table.
type TransitionKind string

const (
	TransitionKindStatus     TransitionKind = "status"
	TransitionKindAssignment TransitionKind = "assignment"
	TransitionKindCategory   TransitionKind = "category"
)

// StatusChange records a lifecycle move. Previous is nil only on the record
// written at ticket creation. TimeInStatus is whole seconds spent in Previous
// before this transition; nil when no prior record existed to diff against.
type StatusChange struct {
	Previous     *TicketStatus `json:"previous"`
	New          TicketStatus  `json:"new"`
	TimeInStatus *int64        `json:"time_in_status"`
}

// AssignmentChange records a reassignment by assignee display name. An empty
// Previous means the ticket was unassigned.
type AssignmentChange struct {
	Previous string `json:"previous"`
	New      string `json:"new"`
}

// CategoryAxis holds the before/after of one classification axis.
type CategoryAxis struct {
	PreviousID   *string `json:"previous_id"`
	NewID        *string `json:"new_id"`
	PreviousName string  `json:"previous_name"`
	NewName      string  `json:"new_name"`
}

// Changed reports whether the axis actually moved.
func (a CategoryAxis) Changed() bool {
	switch {
	case a.PreviousID == nil && a.NewID == nil:
		return false
	case a.PreviousID == nil || a.NewID == nil:
		return true
	default:
		return *a.PreviousID != *a.NewID
	}
}

// CategoryChange records a reclassification across up to three axes.
type CategoryChange struct {
	Category    CategoryAxis `json:"category"`
	Subcategory CategoryAxis `json:"subcategory"`
	Group       CategoryAxis `json:"group"`
}

// Transition is one immutable row in the append-only audit ledger: a common
// envelope plus exactly one populated variant payload. Rows are created once
// per transition and never updated or deleted.
type Transition struct {
	ID         string            `json:"id"`
	TicketID   string            `json:"ticket_id"`
	Kind       TransitionKind    `json:"kind"`
	ChangedBy  string            `json:"changed_by"`
	ChangedAt  time.Time         `json:"changed_at"`
	Status     *StatusChange     `json:"status,omitempty"`
	Assignment *AssignmentChange `json:"assignment,omitempty"`
	Category   *CategoryChange   `json:"category,omitempty"`
}

// Classify resolves the variant of a transition. For well-formed rows this is
// structural; when multiple payloads are populated (rows imported from the
// legacy flag-based table) the priority is category, then assignment, then
// status.
func (t *Transition) Classify() TransitionKind {
	switch {
	case t.Category != nil:
		return TransitionKindCategory
	case t.Assignment != nil:
		return TransitionKindAssignment
	case t.Status != nil:
		return TransitionKindStatus
	}
	return t.Kind
}

// ClassifyFlags maps the legacy is_category/is_assignment flag pair to a kind,
// applying the same priority order as Classify.
func ClassifyFlags(isCategoryChange, isAssignmentChange bool) TransitionKind {
	switch {
	case isCategoryChange:
		return TransitionKindCategory
	case isAssignmentChange:
		return TransitionKindAssignment
	}
	return TransitionKindStatus
}
