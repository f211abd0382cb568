package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/query"
)

const (
	defaultLimit   = 50
	maxLimit       = 200
	processedLimit = 50
)

// TagsLink joins events to their tags.
var TagsLink = query.Link{Table: "event_tags", FK: "event_id", Ref: "events.id", Col: "tag_id"}

// Order selects the sort order of a listing.
type Order int

const (
	OrderStartAsc Order = iota
	OrderStartDesc
)

// SQL returns the ORDER BY clause.
func (o Order) SQL() string {
	if o == OrderStartDesc {
		return "start_time DESC, id"
	}
	return "start_time ASC, id"
}

// ListOptions are the caller-controlled filters of an event listing.
type ListOptions struct {
	From           *time.Time
	To             *time.Time
	Search         string
	OrganizationID *uuid.UUID
	TagID          *uuid.UUID
	Visibility     *models.Visibility
	FeaturedOnly   bool
	CreatedBy      *uuid.UUID
	Limit          int
	Offset         int
}

// Normalize clamps the pagination parameters.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Predicate returns the filter expressed by the options.
func (o ListOptions) Predicate() query.Predicate {
	var parts []query.Predicate
	if o.From != nil {
		parts = append(parts, query.Gt("end_time", *o.From))
	}
	if o.To != nil {
		parts = append(parts, query.Lt("start_time", *o.To))
	}
	if o.Search != "" {
		parts = append(parts, query.Contains(o.Search, "title", "description", "location"))
	}
	if o.OrganizationID != nil {
		parts = append(parts, query.Eq(access.ColOrganizationID, *o.OrganizationID))
	}
	if o.TagID != nil {
		parts = append(parts, query.Exists(TagsLink, *o.TagID))
	}
	if o.Visibility != nil {
		parts = append(parts, query.Eq(access.ColVisibility, string(*o.Visibility)))
	}
	if o.FeaturedOnly {
		parts = append(parts, query.Gt("featured", 0))
	}
	if o.CreatedBy != nil {
		parts = append(parts, query.Eq(access.ColCreatedBy, *o.CreatedBy))
	}
	return query.And(parts...)
}

// Page is one page of a listing with the total match count.
type Page struct {
	Items  []*models.Event `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
