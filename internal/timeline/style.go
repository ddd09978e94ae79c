package timeline

import (
	"strings"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// Style carries the visual metadata the history panel needs per entry.
type Style struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var statusStyles = map[string]Style{
	"new":         {Key: "new", Label: "New", Color: "blue", Icon: "sparkles"},
	"open":        {Key: "open", Label: "Open", Color: "green", Icon: "inbox"},
	"in_progress": {Key: "in_progress", Label: "In Progress", Color: "orange", Icon: "wrench"},
	"waiting":     {Key: "waiting", Label: "Waiting", Color: "yellow", Icon: "hourglass"},
	"pending":     {Key: "pending", Label: "Pending", Color: "yellow", Icon: "clock"},
	"resolved":    {Key: "resolved", Label: "Resolved", Color: "teal", Icon: "check"},
	"closed":      {Key: "closed", Label: "Closed", Color: "gray", Icon: "lock"},
	"reopened":    {Key: "reopened", Label: "Reopened", Color: "purple", Icon: "rotate"},
	"deleted":     {Key: "deleted", Label: "Deleted", Color: "red", Icon: "trash"},
}

var (
	categoryStyle   = Style{Key: "category_change", Label: "Reclassified", Color: "indigo", Icon: "tag"}
	assignmentStyle = Style{Key: "assignment_change", Label: "Reassigned", Color: "cyan", Icon: "user"}
	deletedStyle    = statusStyles["deleted"]
	unknownStyle    = Style{Key: "unknown", Label: "Unknown", Color: "gray", Icon: "question"}
)

// StatusLabel maps a status to its display label, falling back to the raw
// string for values outside the known set.
func StatusLabel(status domain.TicketStatus) string {
	if style, ok := statusStyles[strings.ToLower(string(status))]; ok {
		return style.Label
	}
	return string(status)
}

// StyleFor picks the visual style for a transition. Category and assignment
// changes carry their own styling; a move into "deleted" always renders with
// the terminal styling; anything else resolves by lowercase status key with a
// neutral fallback for unknown statuses.
func StyleFor(transition *domain.Transition) Style {
	switch transition.Classify() {
	case domain.TransitionKindCategory:
		return categoryStyle
	case domain.TransitionKindAssignment:
		return assignmentStyle
	}
	if transition.Status == nil {
		return unknownStyle
	}
	if transition.Status.New == domain.TicketStatusDeleted {
		return deletedStyle
	}
	if style, ok := statusStyles[strings.ToLower(string(transition.Status.New))]; ok {
		return style
	}
	return unknownStyle
}
