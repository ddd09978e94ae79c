package domain

import "time"

// ActorType indicates who caused a transition.
type ActorType string

const (
	ActorTypeAgent  ActorType = "AGENT"
	ActorTypeSystem ActorType = "SYSTEM"
)

// AgentRole enumerates operator roles.
type AgentRole string

const (
	AgentRoleAgent AgentRole = "AGENT"
	AgentRoleAdmin AgentRole = "ADMIN"
)

// Agent models a support operator whose id lands in transition records.
type Agent struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         AgentRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
