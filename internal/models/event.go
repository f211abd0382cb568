package models

import (
	"time"

	"github.com/google/uuid"
)

// Visibility is the event's lifecycle/moderation state.
type Visibility string

const (
	VisibilityDraft    Visibility = "draft"
	VisibilityPrivate  Visibility = "private"
	VisibilityPending  Visibility = "public_pending"
	VisibilityRejected Visibility = "public_rejected"
	VisibilityApproved Visibility = "public_approved"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityDraft, VisibilityPrivate, VisibilityPending, VisibilityRejected, VisibilityApproved:
		return true
	}
	return false
}

// IsPublic reports whether v is one of the moderated public states.
func (v Visibility) IsPublic() bool {
	return v == VisibilityPending || v == VisibilityRejected || v == VisibilityApproved
}

// Event is a calendar entry owned by an organization.
type Event struct {
	ID                   uuid.UUID   `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description,omitempty"`
	StartTime            time.Time   `json:"start_time"`
	EndTime              time.Time   `json:"end_time"`
	Location             string      `json:"location,omitempty"`
	LocationURL          string      `json:"location_url,omitempty"`
	PosterURL            string      `json:"poster_url,omitempty"`
	Visibility           Visibility  `json:"visibility"`
	GroupID              *uuid.UUID  `json:"group_id,omitempty"`
	OrganizationID       uuid.UUID   `json:"organization_id"`
	CreatedByID          uuid.UUID   `json:"created_by_id"`
	RejectionMessage     *string     `json:"rejection_message,omitempty"`
	ApprovedAt           *time.Time  `json:"approved_at,omitempty"`
	HideDetails          bool        `json:"hide_details"`
	Featured             int         `json:"featured"`
	TagIDs               []uuid.UUID `json:"tag_ids"`
	GuestOrganizationIDs []uuid.UUID `json:"guest_organization_ids"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Field returns the value of a column by name for in-memory predicate evaluation.
// Nullable columns return nil when unset.
func (e *Event) Field(name string) any {
	switch name {
	case "id":
		return e.ID
	case "title":
		return e.Title
	case "description":
		return e.Description
	case "location":
		return e.Location
	case "visibility":
		return string(e.Visibility)
	case "organization_id":
		return e.OrganizationID
	case "created_by_id":
		return e.CreatedByID
	case "group_id":
		if e.GroupID == nil {
			return nil
		}
		return *e.GroupID
	case "start_time":
		return e.StartTime
	case "end_time":
		return e.EndTime
	case "featured":
		return e.Featured
	case "event_tags":
		return e.TagIDs
	}
	return nil
}

// HasTag reports whether the event carries the tag.
func (e *Event) HasTag(id uuid.UUID) bool {
	for _, t := range e.TagIDs {
		if t == id {
			return true
		}
	}
	return false
}

// Reaction is a single emoji reaction of a user on an event (one per user and event).
type Reaction struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionSummary aggregates reactions per emoji for display.
type ReactionSummary struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	UserReacted bool   `json:"user_reacted"`
}

// ReactionDetail is a reaction with its author, for organizers.
type ReactionDetail struct {
	User      UserPublic `json:"user"`
	Emoji     string     `json:"emoji"`
	CreatedAt time.Time  `json:"created_at"`
}
