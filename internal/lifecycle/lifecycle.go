// Package lifecycle applies visibility transitions to events. Functions here do not
// check permissions; callers decide with package access first.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/models"
)

var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrFeaturedRestricted = errors.New("only superadmins may change featured")
	ErrRejectionMessage   = errors.New("rejection message is required")
	ErrInvalidVisibility  = errors.New("invalid visibility")
	ErrInvalidTimeRange   = errors.New("start_time must be before end_time")
)

// AutoTags is the set of tag ids flagged is_auto_approved.
type AutoTags map[uuid.UUID]bool

// Any reports whether one of ids is auto-approved.
func (t AutoTags) Any(ids []uuid.UUID) bool {
	for _, id := range ids {
		if t[id] {
			return true
		}
	}
	return false
}

func invalid(ev *models.Event, op string) error {
	return fmt.Errorf("%w: cannot %s event in state %s", ErrInvalidTransition, op, ev.Visibility)
}

func clearModeration(ev *models.Event) {
	ev.ApprovedAt = nil
	ev.RejectionMessage = nil
}

func markApproved(ev *models.Event, now time.Time) {
	t := now
	ev.Visibility = models.VisibilityApproved
	ev.ApprovedAt = &t
	ev.RejectionMessage = nil
}

func markPending(ev *models.Event) {
	ev.Visibility = models.VisibilityPending
	clearModeration(ev)
}

// Submit sends a draft or rejected event to moderation. An event carrying an
// auto-approved tag skips the queue. It reports whether the event was auto-approved.
func Submit(ev *models.Event, auto AutoTags, now time.Time) (bool, error) {
	if ev.Visibility != models.VisibilityDraft && ev.Visibility != models.VisibilityRejected {
		return false, invalid(ev, "submit")
	}
	markPending(ev)
	if auto.Any(ev.TagIDs) {
		markApproved(ev, now)
		return true, nil
	}
	return false, nil
}

// Approve moves a public event to approved and stamps approved_at.
// Already processed events may be approved again.
func Approve(ev *models.Event, now time.Time) error {
	if !ev.Visibility.IsPublic() {
		return invalid(ev, "approve")
	}
	markApproved(ev, now)
	return nil
}

// Reject moves a public event to rejected with the given message.
func Reject(ev *models.Event, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrRejectionMessage
	}
	if !ev.Visibility.IsPublic() {
		return invalid(ev, "reject")
	}
	ev.Visibility = models.VisibilityRejected
	ev.RejectionMessage = &message
	ev.ApprovedAt = nil
	return nil
}

// ResetStatus returns a processed event to pending.
func ResetStatus(ev *models.Event) error {
	if ev.Visibility != models.VisibilityApproved && ev.Visibility != models.VisibilityRejected {
		return fmt.Errorf("%w: event is not processed", ErrInvalidTransition)
	}
	markPending(ev)
	return nil
}

// NormalizeCreate fixes the initial state of a new event. Only superadmins may
// create approved events; rejected is never a valid starting state.
// It reports whether the event was auto-approved by a tag.
func NormalizeCreate(ev *models.Event, superadmin bool, auto AutoTags, now time.Time) (bool, error) {
	if ev.Visibility == "" {
		ev.Visibility = models.VisibilityDraft
	}
	if !ev.Visibility.Valid() {
		return false, ErrInvalidVisibility
	}
	if !ev.StartTime.Before(ev.EndTime) {
		return false, ErrInvalidTimeRange
	}
	clearModeration(ev)
	if ev.Featured != 0 && !superadmin {
		return false, ErrFeaturedRestricted
	}

	switch {
	case ev.Visibility == models.VisibilityApproved && superadmin:
		markApproved(ev, now)
		return false, nil
	case ev.Visibility.IsPublic():
		ev.Visibility = models.VisibilityPending
	}
	if ev.Visibility == models.VisibilityPending && auto.Any(ev.TagIDs) {
		markApproved(ev, now)
		return true, nil
	}
	return false, nil
}

// Patch carries the optional fields of an event update. Nil means unchanged.
type Patch struct {
	Title                *string
	Description          *string
	StartTime            *time.Time
	EndTime              *time.Time
	Location             *string
	LocationURL          *string
	PosterURL            *string
	Visibility           *models.Visibility
	RejectionMessage     *string
	GroupID              *uuid.UUID
	ClearGroup           bool
	HideDetails          *bool
	Featured             *int
	TagIDs               []uuid.UUID
	SetTags              bool
	GuestOrganizationIDs []uuid.UUID
	SetGuests            bool
}

// Changes summarizes the state effects of an update.
type Changes struct {
	From         models.Visibility
	To           models.Visibility
	Demoted      bool
	AutoApproved bool
	AutoDemoted  bool
	// Moderated is "approve" or "reject" when a superadmin moderated through the edit.
	Moderated string
}

// VisibilityChanged reports whether the update moved the event to another state.
func (c Changes) VisibilityChanged() bool { return c.From != c.To }

// ApplyUpdate applies p to ev with the moderation side effects of an edit.
// A superadmin moving the event to approved or rejected goes through Approve or
// Reject and must satisfy their preconditions. auto must cover the event's previous and requested tags. On error ev is unchanged.
func ApplyUpdate(ev *models.Event, p Patch, superadmin bool, auto AutoTags, now time.Time) (Changes, error) {
	ch := Changes{From: ev.Visibility}

	if p.Visibility != nil && !p.Visibility.Valid() {
		return ch, ErrInvalidVisibility
	}
	if p.Featured != nil && *p.Featured != ev.Featured && !superadmin {
		return ch, ErrFeaturedRestricted
	}
	start, end := ev.StartTime, ev.EndTime
	if p.StartTime != nil {
		start = *p.StartTime
	}
	if p.EndTime != nil {
		end = *p.EndTime
	}
	if !start.Before(end) {
		return ch, ErrInvalidTimeRange
	}
	moderate := ""
	if superadmin && p.Visibility != nil && *p.Visibility != ch.From {
		switch *p.Visibility {
		case models.VisibilityApproved:
			moderate = "approve"
		case models.VisibilityRejected:
			moderate = "reject"
		}
	}
	var message string
	if moderate != "" {
		if !ev.Visibility.IsPublic() {
			return ch, invalid(ev, moderate)
		}
		if p.RejectionMessage != nil {
			message = strings.TrimSpace(*p.RejectionMessage)
		}
		if moderate == "reject" && message == "" {
			return ch, ErrRejectionMessage
		}
	}

	datesChanged := !start.Equal(ev.StartTime) || !end.Equal(ev.EndTime)
	prevTags := ev.TagIDs

	applyFields(ev, p)
	ev.StartTime, ev.EndTime = start, end

	if datesChanged && !superadmin && ev.Visibility == models.VisibilityApproved {
		markPending(ev)
		ch.Demoted = true
	}

	if p.Visibility != nil && *p.Visibility != ch.From {
		target := *p.Visibility
		switch {
		case moderate == "approve":
			_ = Approve(ev, now)
			ch.Moderated = moderate
		case moderate == "reject":
			_ = Reject(ev, message)
			ch.Moderated = moderate
		case target == models.VisibilityApproved, target == models.VisibilityRejected, target == models.VisibilityPending:
			markPending(ev)
		default:
			ev.Visibility = target
			clearModeration(ev)
		}
	}

	if p.SetTags {
		switch {
		case ev.Visibility == models.VisibilityPending && auto.Any(ev.TagIDs):
			markApproved(ev, now)
			ch.AutoApproved = true
		case ev.Visibility == models.VisibilityApproved && auto.Any(prevTags) && !auto.Any(ev.TagIDs):
			markPending(ev)
			ch.AutoDemoted = true
		}
	}

	ch.To = ev.Visibility
	return ch, nil
}

func applyFields(ev *models.Event, p Patch) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.LocationURL != nil {
		ev.LocationURL = *p.LocationURL
	}
	if p.PosterURL != nil {
		ev.PosterURL = *p.PosterURL
	}
	if p.HideDetails != nil {
		ev.HideDetails = *p.HideDetails
	}
	if p.Featured != nil {
		ev.Featured = *p.Featured
	}
	if p.ClearGroup {
		ev.GroupID = nil
	} else if p.GroupID != nil {
		g := *p.GroupID
		ev.GroupID = &g
	}
	if p.SetTags {
		ev.TagIDs = append([]uuid.UUID(nil), p.TagIDs...)
	}
	if p.SetGuests {
		ev.GuestOrganizationIDs = append([]uuid.UUID(nil), p.GuestOrganizationIDs...)
	}
}

// Overlaps reports whether two time spans intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
