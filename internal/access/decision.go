package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/models"
)

// DenialReason is the user-facing explanation of a negative decision.
// It is empty when access is granted.
type DenialReason string

const (
	ReasonNone             DenialReason = ""
	ReasonNotLoggedIn      DenialReason = "not logged in"
	ReasonNotInOrg         DenialReason = "not part of the organization"
	ReasonNotInGroup       DenialReason = "not part of the right group"
	ReasonDenied           DenialReason = "access denied"
	ReasonPastEvent        DenialReason = "event is in the past"
	ReasonPrivateNotAuthor DenialReason = "only author/admins may edit this private event"
	ReasonInsufficientRole DenialReason = "insufficient role"
	ReasonSuperadminOnly   DenialReason = "superadmin access required"
)

func allow() (bool, DenialReason) { return true, ReasonNone }

func deny(r DenialReason) (bool, DenialReason) { return false, r }

// CanView decides whether the actor may see the event. First matching rule wins.
func CanView(ev *models.Event, a *Actor) (bool, DenialReason) {
	if ev.Visibility == models.VisibilityApproved {
		return allow()
	}
	a = effective(a)
	if a == nil {
		return deny(ReasonNotLoggedIn)
	}
	role, member := a.Role(ev.OrganizationID)
	if a.Superadmin || role == models.RoleOrgAdmin {
		return allow()
	}

	switch ev.Visibility {
	case models.VisibilityPending, models.VisibilityRejected, models.VisibilityDraft:
		if member {
			return allow()
		}
		return deny(ReasonNotInOrg)
	case models.VisibilityPrivate:
		if ev.CreatedByID == a.UserID {
			return allow()
		}
		if ev.GroupID != nil {
			if a.InGroup(*ev.GroupID) {
				return allow()
			}
			return deny(ReasonNotInGroup)
		}
		if member {
			return allow()
		}
		return deny(ReasonNotInOrg)
	}
	return deny(ReasonDenied)
}

// CanEdit decides whether the actor may modify, delete or submit the event.
// Events that ended before now are locked for everyone but superadmins.
func CanEdit(ev *models.Event, a *Actor, now time.Time) (bool, DenialReason) {
	a = effective(a)
	if a == nil {
		return deny(ReasonNotLoggedIn)
	}
	if a.Superadmin {
		return allow()
	}
	if ev.EndTime.Before(now) {
		return deny(ReasonPastEvent)
	}
	role, member := a.Role(ev.OrganizationID)
	if !member {
		return deny(ReasonNotInOrg)
	}
	switch role {
	case models.RoleOrgAdmin:
		return allow()
	case models.RoleOrgMember:
		if ev.CreatedByID == a.UserID || ev.Visibility != models.VisibilityPrivate {
			return allow()
		}
		return deny(ReasonPrivateNotAuthor)
	}
	return deny(ReasonInsufficientRole)
}

// CanCreate decides whether the actor may create events in the organization.
func CanCreate(orgID uuid.UUID, a *Actor) (bool, DenialReason) {
	return requireRole(orgID, a, models.RoleOrgMember)
}

// CanManageOrganization decides whether the actor may manage members, groups and
// tags of the organization.
func CanManageOrganization(orgID uuid.UUID, a *Actor) (bool, DenialReason) {
	return requireRole(orgID, a, models.RoleOrgAdmin)
}

// CanReadOrganization decides whether the actor may see the organization's
// members and groups.
func CanReadOrganization(orgID uuid.UUID, a *Actor) (bool, DenialReason) {
	return requireRole(orgID, a, models.RoleOrgViewer)
}

func requireRole(orgID uuid.UUID, a *Actor, min models.Role) (bool, DenialReason) {
	a = effective(a)
	if a == nil {
		return deny(ReasonNotLoggedIn)
	}
	if a.Superadmin {
		return allow()
	}
	role, ok := a.Role(orgID)
	if !ok {
		return deny(ReasonNotInOrg)
	}
	if !role.AtLeast(min) {
		return deny(ReasonInsufficientRole)
	}
	return allow()
}

// CanModerate decides whether the actor may approve, reject or reset events.
func CanModerate(a *Actor) (bool, DenialReason) {
	a = effective(a)
	if a == nil {
		return deny(ReasonNotLoggedIn)
	}
	if !a.Superadmin {
		return deny(ReasonSuperadminOnly)
	}
	return allow()
}

// HideDetails reports whether the event's details must be redacted for the actor.
// Only approved events flagged hide_details are affected; organization members and
// superadmins always see everything.
func HideDetails(ev *models.Event, a *Actor) bool {
	if !ev.HideDetails || ev.Visibility != models.VisibilityApproved {
		return false
	}
	if a.IsSuperadmin() {
		return false
	}
	_, member := a.Role(ev.OrganizationID)
	return !member
}

// Redact returns a copy of ev with description, location and poster removed.
func Redact(ev *models.Event) *models.Event {
	out := *ev
	out.Description = ""
	out.Location = ""
	out.LocationURL = ""
	out.PosterURL = ""
	return &out
}

// Present returns ev as the actor may see it, redacted when required.
func Present(ev *models.Event, a *Actor) *models.Event {
	if HideDetails(ev, a) {
		return Redact(ev)
	}
	return ev
}
