package models

import "github.com/google/uuid"

// MaxEventLinks is the number of links an event may carry.
const MaxEventLinks = 3

// EventLink is a named URL shown on an event, ordered by Order (1-based).
type EventLink struct {
	ID      uuid.UUID `json:"id"`
	EventID uuid.UUID `json:"event_id"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Order   int       `json:"order"`
}

// OrganizationLink is a named URL shown on an organization page.
type OrganizationLink struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Order          int       `json:"order"`
}
