// Package access holds the calendar's authorization rules: single-event view and
// edit decisions and the listing predicate that selects the same events in SQL.
// Every function here is pure and safe for concurrent use.
package access

import (
	"bytes"
	"slices"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/models"
)

// Actor is a snapshot of the acting user's global flags, organization roles and
// group memberships, loaded once per request. A nil *Actor is anonymous.
type Actor struct {
	UserID      uuid.UUID
	Superadmin  bool
	Active      bool
	Memberships map[uuid.UUID]models.Role
	Groups      map[uuid.UUID]struct{}
}

// NewActor builds an actor snapshot from a user and its membership rows.
func NewActor(u *models.User, memberships []models.Membership, groupIDs []uuid.UUID) *Actor {
	a := &Actor{
		UserID:      u.ID,
		Superadmin:  u.IsSuperadmin,
		Active:      u.IsActive,
		Memberships: make(map[uuid.UUID]models.Role, len(memberships)),
		Groups:      make(map[uuid.UUID]struct{}, len(groupIDs)),
	}
	for _, m := range memberships {
		a.Memberships[m.OrganizationID] = m.Role
	}
	for _, g := range groupIDs {
		a.Groups[g] = struct{}{}
	}
	return a
}

// effective returns nil for anonymous and inactive actors.
func effective(a *Actor) *Actor {
	if a == nil || !a.Active {
		return nil
	}
	return a
}

// Authenticated reports whether a is a logged-in, active user.
func (a *Actor) Authenticated() bool { return effective(a) != nil }

// IsSuperadmin reports whether a is an active superadmin.
func (a *Actor) IsSuperadmin() bool { return effective(a) != nil && a.Superadmin }

// Role returns the actor's role in an organization.
func (a *Actor) Role(orgID uuid.UUID) (models.Role, bool) {
	if effective(a) == nil {
		return "", false
	}
	r, ok := a.Memberships[orgID]
	return r, ok
}

// InGroup reports whether the actor is a member of the group.
func (a *Actor) InGroup(groupID uuid.UUID) bool {
	if effective(a) == nil {
		return false
	}
	_, ok := a.Groups[groupID]
	return ok
}

// orgIDs returns, in a stable order, the organizations where keep(role) holds.
func (a *Actor) orgIDs(keep func(models.Role) bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a.Memberships))
	for id, r := range a.Memberships {
		if keep(r) {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

func (a *Actor) groupIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a.Groups))
	for id := range a.Groups {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(x, y uuid.UUID) int { return bytes.Compare(x[:], y[:]) })
}
