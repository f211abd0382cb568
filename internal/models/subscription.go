package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription records a user's interest in an organization, a tag or every event.
// Exactly one of OrganizationID, TagID and All is set.
type Subscription struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	TagID          *uuid.UUID `json:"tag_id,omitempty"`
	All            bool       `json:"subscribe_all"`
	CreatedAt      time.Time  `json:"created_at"`
}
