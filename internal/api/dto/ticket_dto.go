package dto

import (
	"time"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject       string  `json:"subject"`
	Description   string  `json:"description"`
	RequesterName string  `json:"requester_name"`
	Status        string  `json:"status"`
	CategoryID    *string `json:"category_id"`
	SubcategoryID *string `json:"subcategory_id"`
	GroupID       *string `json:"group_id"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	Assignee string `json:"assignee"`
}

// ReclassifyRequest payload; omitted axes are left unchanged.
type ReclassifyRequest struct {
	CategoryID    *string `json:"category_id"`
	SubcategoryID *string `json:"subcategory_id"`
	GroupID       *string `json:"group_id"`
}

// TicketResponse mirrors the ticket aggregate.
type TicketResponse struct {
	ID              string              `json:"id"`
	ExternalKey     string              `json:"external_key"`
	Subject         string              `json:"subject"`
	Description     string              `json:"description"`
	RequesterName   string              `json:"requester_name"`
	Assignee        string              `json:"assignee"`
	CategoryID      *string             `json:"category_id"`
	CategoryName    string              `json:"category_name,omitempty"`
	SubcategoryID   *string             `json:"subcategory_id"`
	SubcategoryName string              `json:"subcategory_name,omitempty"`
	GroupID         *string             `json:"group_id"`
	GroupName       string              `json:"group_name,omitempty"`
	Status          domain.TicketStatus `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	DeletedAt       *time.Time          `json:"deleted_at,omitempty"`
}

// TransitionResponse is one raw ledger row.
type TransitionResponse struct {
	ID         string                   `json:"id"`
	Kind       domain.TransitionKind    `json:"kind"`
	ChangedBy  string                   `json:"changed_by"`
	ChangedAt  time.Time                `json:"changed_at"`
	Status     *domain.StatusChange     `json:"status,omitempty"`
	Assignment *domain.AssignmentChange `json:"assignment,omitempty"`
	Category   *domain.CategoryChange   `json:"category,omitempty"`
}

// CategoryResponse is one catalog entry.
type CategoryResponse struct {
	ID   string              `json:"id"`
	Kind domain.CategoryKind `json:"kind"`
	Name string              `json:"name"`
}
