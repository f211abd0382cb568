package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a club, association or administrative unit. Organizations form an optional tree.
type Organization struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Role is a user's role inside one organization.
type Role string

const (
	RoleOrgAdmin  Role = "org_admin"
	RoleOrgMember Role = "org_member"
	RoleOrgViewer Role = "org_viewer"
)

// Rank orders roles: viewer < member < admin. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleOrgViewer:
		return 1
	case RoleOrgMember:
		return 2
	case RoleOrgAdmin:
		return 3
	}
	return 0
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// Membership links a user to an organization with a role. Unique per (user, organization).
type Membership struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
