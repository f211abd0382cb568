package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is a sub-unit of an organization used to scope private events.
type Group struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	MemberCount    int       `json:"member_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// GroupMembership is a binary (user, group) relation, independent of organization role.
type GroupMembership struct {
	ID       uuid.UUID `json:"id"`
	GroupID  uuid.UUID `json:"group_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Tag belongs to an organization. IsAutoApproved is controlled by superadmins only.
type Tag struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	IsAutoApproved bool      `json:"is_auto_approved"`
	CreatedAt      time.Time `json:"created_at"`
}
