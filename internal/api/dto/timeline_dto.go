package dto

import (
	"time"

	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/timeline"
)

// TimelineEntryResponse is one annotated timeline record.
type TimelineEntryResponse struct {
	ID               string                `json:"id"`
	Kind             domain.TransitionKind `json:"kind"`
	ChangedBy        string                `json:"changed_by"`
	ChangedAt        time.Time             `json:"changed_at"`
	Style            timeline.Style        `json:"style"`
	Lines            []string              `json:"lines"`
	TimeInStatusText string                `json:"time_in_status_text,omitempty"`
}

// AuthLoginRequest payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginResponse payload.
type AuthLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
}
