// Package timeline reconstructs a human-readable narrative from the
// append-only transition ledger of a ticket.
package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// Options carries the deployment constants that shape rendering.
type Options struct {
	// SkewCompensationSeconds and SkewWindowSeconds collapse stored durations
	// within the window around the compensation value to "less than 1 minute".
	// Durations that close to the legacy timezone offset are artifacts, not
	// real dwell times. A compensation of 0 disables the collapse.
	SkewCompensationSeconds int64
	SkewWindowSeconds       int64
	// UnassignedLabel substitutes for an empty assignee in narratives.
	UnassignedLabel string
}

// Entry is one annotated record of the reconstructed timeline.
type Entry struct {
	Transition       domain.Transition     `json:"transition"`
	Kind             domain.TransitionKind `json:"kind"`
	Style            Style                 `json:"style"`
	Lines            []string              `json:"lines"`
	TimeInStatusText string                `json:"time_in_status_text,omitempty"`
}

// Reconstruct orders transitions chronologically ascending and annotates each
// with its kind, style, narrative lines, and rendered dwell time.
func Reconstruct(transitions []domain.Transition, opts Options) []Entry {
	ordered := make([]domain.Transition, len(transitions))
	copy(ordered, transitions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChangedAt.Before(ordered[j].ChangedAt)
	})

	entries := make([]Entry, 0, len(ordered))
	for i := range ordered {
		transition := ordered[i]
		entry := Entry{
			Transition: transition,
			Kind:       transition.Classify(),
			Style:      StyleFor(&transition),
			Lines:      Narrative(&transition, opts),
		}
		if transition.Status != nil && transition.Status.TimeInStatus != nil {
			entry.TimeInStatusText = FormatTimeInStatus(*transition.Status.TimeInStatus, opts)
		}
		entries = append(entries, entry)
	}
	return entries
}

// Narrative emits the display lines for a single transition.
func Narrative(transition *domain.Transition, opts Options) []string {
	switch transition.Classify() {
	case domain.TransitionKindCategory:
		return categoryNarrative(transition.Category)
	case domain.TransitionKindAssignment:
		return assignmentNarrative(transition.Assignment, opts)
	}
	return statusNarrative(transition.Status)
}

func statusNarrative(change *domain.StatusChange) []string {
	if change == nil {
		return nil
	}
	if change.Previous == nil {
		return []string{fmt.Sprintf("created as %s", StatusLabel(change.New))}
	}
	return []string{fmt.Sprintf("from %s to %s", StatusLabel(*change.Previous), StatusLabel(change.New))}
}

func assignmentNarrative(change *domain.AssignmentChange, opts Options) []string {
	if change == nil {
		return nil
	}
	previous := change.Previous
	if strings.TrimSpace(previous) == "" {
		previous = opts.UnassignedLabel
	}
	next := change.New
	if strings.TrimSpace(next) == "" {
		next = opts.UnassignedLabel
	}
	return []string{fmt.Sprintf("from %s to %s", previous, next)}
}

// categoryNarrative emits one line per axis that actually moved; unchanged
// axes are omitted.
func categoryNarrative(change *domain.CategoryChange) []string {
	if change == nil {
		return nil
	}
	var lines []string
	if change.Category.Changed() {
		lines = append(lines, axisLine("category", change.Category))
	}
	if change.Subcategory.Changed() {
		lines = append(lines, axisLine("subcategory", change.Subcategory))
	}
	if change.Group.Changed() {
		lines = append(lines, axisLine("group", change.Group))
	}
	return lines
}

func axisLine(axis string, change domain.CategoryAxis) string {
	return fmt.Sprintf("%s changed from %s to %s", axis,
		axisName(change.PreviousName, change.PreviousID),
		axisName(change.NewName, change.NewID))
}

func axisName(name string, id *string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if id != nil {
		return *id
	}
	return "none"
}

// FormatTimeInStatus renders a dwell time in seconds. Values under a minute,
// and values inside the skew-compensation window, read "less than 1 minute";
// everything else composes days, hours, and minutes, omitting zero components.
func FormatTimeInStatus(seconds int64, opts Options) string {
	if seconds < 60 {
		return "less than 1 minute"
	}
	if opts.SkewCompensationSeconds > 0 {
		delta := seconds - opts.SkewCompensationSeconds
		if delta < 0 {
			delta = -delta
		}
		if delta <= opts.SkewWindowSeconds {
			return "less than 1 minute"
		}
	}

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", days, plural(days, "day")))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", hours, plural(hours, "hour")))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", minutes, plural(minutes, "minute")))
	}
	if len(parts) == 0 {
		return "less than 1 minute"
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
