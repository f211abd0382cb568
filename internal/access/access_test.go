package access

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calendint/backend/internal/models"
)

var (
	orgID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	otherID = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	groupID = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	ownerID = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	userID  = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
	now     = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

var visibilities = []models.Visibility{
	models.VisibilityDraft,
	models.VisibilityPrivate,
	models.VisibilityPending,
	models.VisibilityRejected,
	models.VisibilityApproved,
}

func event(v models.Visibility, group *uuid.UUID, creator uuid.UUID) *models.Event {
	return &models.Event{
		ID:             uuid.New(),
		Title:          "Board games night",
		Visibility:     v,
		GroupID:        group,
		OrganizationID: orgID,
		CreatedByID:    creator,
		StartTime:      now.Add(24 * time.Hour),
		EndTime:        now.Add(26 * time.Hour),
	}
}

// actor returns a user with the given role in orgID ("" for none).
func actor(role models.Role, inGroup bool) *Actor {
	a := &Actor{
		UserID:      userID,
		Active:      true,
		Memberships: map[uuid.UUID]models.Role{},
		Groups:      map[uuid.UUID]struct{}{},
	}
	if role != "" {
		a.Memberships[orgID] = role
	}
	if inGroup {
		a.Groups[groupID] = struct{}{}
	}
	return a
}

type actorCase struct {
	name  string
	actor *Actor
}

func actorCrossProduct() []actorCase {
	var out []actorCase
	out = append(out, actorCase{"anonymous", nil})
	roles := []models.Role{"", models.RoleOrgViewer, models.RoleOrgMember, models.RoleOrgAdmin}
	for _, role := range roles {
		for _, inGroup := range []bool{false, true} {
			name := fmt.Sprintf("role=%q group=%v", role, inGroup)
			out = append(out, actorCase{name, actor(role, inGroup)})
		}
	}
	super := actor("", false)
	super.Superadmin = true
	out = append(out, actorCase{"superadmin", super})

	inactive := actor(models.RoleOrgAdmin, true)
	inactive.Active = false
	out = append(out, actorCase{"inactive admin", inactive})

	elsewhere := actor("", true)
	elsewhere.Memberships[otherID] = models.RoleOrgAdmin
	out = append(out, actorCase{"admin of another org", elsewhere})
	return out
}

func TestPredicateEquivalentToCanView(t *testing.T) {
	groups := map[string]*uuid.UUID{"no group": nil, "group": &groupID}
	creators := map[string]uuid.UUID{"creator": userID, "non-creator": ownerID}

	for _, ac := range actorCrossProduct() {
		p := BuildVisibilityPredicate(ac.actor)
		for _, v := range visibilities {
			for gName, g := range groups {
				for cName, c := range creators {
					ev := event(v, g, c)
					allowed, _ := CanView(ev, ac.actor)
					assert.Equal(t, allowed, p.Match(ev), "%s / %s / %s / %s", ac.name, v, gName, cName)
				}
			}
		}
	}
}

func TestListingPredicateSuperadmin(t *testing.T) {
	super := actor("", false)
	super.Superadmin = true
	p := ListingPredicate(super)

	for _, v := range visibilities {
		want := v == models.VisibilityApproved || v == models.VisibilityPending
		assert.Equal(t, want, p.Match(event(v, nil, ownerID)), v)
	}

	member := actor(models.RoleOrgMember, false)
	ev := event(models.VisibilityDraft, nil, ownerID)
	assert.Equal(t, BuildVisibilityPredicate(member).Match(ev), ListingPredicate(member).Match(ev))
}

func TestMonotonicPrivilege(t *testing.T) {
	ladder := []models.Role{models.RoleOrgViewer, models.RoleOrgMember, models.RoleOrgAdmin}
	for _, v := range visibilities {
		for _, g := range []*uuid.UUID{nil, &groupID} {
			for _, creator := range []uuid.UUID{userID, ownerID} {
				for _, inGroup := range []bool{false, true} {
					ev := event(v, g, creator)
					granted := false
					for _, role := range ladder {
						ok, _ := CanView(ev, actor(role, inGroup))
						if granted {
							assert.True(t, ok, "%s lost access at %s", v, role)
						}
						granted = granted || ok
					}
				}
			}
		}
	}
}

func TestDecisionsIdempotent(t *testing.T) {
	for _, ac := range actorCrossProduct() {
		for _, v := range visibilities {
			ev := event(v, &groupID, ownerID)
			before := *ev

			v1, r1 := CanView(ev, ac.actor)
			v2, r2 := CanView(ev, ac.actor)
			assert.Equal(t, v1, v2)
			assert.Equal(t, r1, r2)

			e1, er1 := CanEdit(ev, ac.actor, now)
			e2, er2 := CanEdit(ev, ac.actor, now)
			assert.Equal(t, e1, e2)
			assert.Equal(t, er1, er2)

			assert.Equal(t, before, *ev)
		}
	}
}

func TestPastEventLock(t *testing.T) {
	for _, role := range []models.Role{"", models.RoleOrgViewer, models.RoleOrgMember, models.RoleOrgAdmin} {
		for _, creator := range []uuid.UUID{userID, ownerID} {
			for _, v := range visibilities {
				ev := event(v, nil, creator)
				ev.StartTime = now.Add(-3 * time.Hour)
				ev.EndTime = now.Add(-time.Hour)

				ok, reason := CanEdit(ev, actor(role, true), now)
				assert.False(t, ok)
				assert.Equal(t, ReasonPastEvent, reason)
			}
		}
	}

	super := actor("", false)
	super.Superadmin = true
	ev := event(models.VisibilityApproved, nil, ownerID)
	ev.EndTime = now.Add(-time.Hour)
	ok, _ := CanEdit(ev, super, now)
	assert.True(t, ok)
}

func TestCanViewScenarios(t *testing.T) {
	member := actor(models.RoleOrgMember, false)

	ok, reason := CanView(event(models.VisibilityPrivate, nil, ownerID), member)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)

	ok, reason = CanView(event(models.VisibilityPrivate, &groupID, ownerID), member)
	assert.False(t, ok)
	assert.Equal(t, ReasonNotInGroup, reason)

	ev := event(models.VisibilityApproved, nil, ownerID)
	ok, reason = CanView(ev, nil)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)

	ev.Visibility = models.VisibilityPending
	ok, reason = CanView(ev, nil)
	assert.False(t, ok)
	assert.Equal(t, ReasonNotLoggedIn, reason)
}

func TestCanViewReasons(t *testing.T) {
	tests := []struct {
		name   string
		ev     *models.Event
		actor  *Actor
		ok     bool
		reason DenialReason
	}{
		{"outsider pending", event(models.VisibilityPending, nil, ownerID), actor("", false), false, ReasonNotInOrg},
		{"viewer draft", event(models.VisibilityDraft, nil, ownerID), actor(models.RoleOrgViewer, false), true, ReasonNone},
		{"outsider private no group", event(models.VisibilityPrivate, nil, ownerID), actor("", false), false, ReasonNotInOrg},
		{"group member outside org", event(models.VisibilityPrivate, &groupID, ownerID), actor("", true), true, ReasonNone},
		{"creator private group", event(models.VisibilityPrivate, &groupID, userID), actor(models.RoleOrgViewer, false), true, ReasonNone},
		{"admin private group", event(models.VisibilityPrivate, &groupID, ownerID), actor(models.RoleOrgAdmin, false), true, ReasonNone},
		{"inactive treated as anonymous", event(models.VisibilityDraft, nil, ownerID), func() *Actor {
			a := actor(models.RoleOrgAdmin, false)
			a.Active = false
			return a
		}(), false, ReasonNotLoggedIn},
		{"unknown visibility", event("archived", nil, ownerID), actor(models.RoleOrgMember, false), false, ReasonDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanView(tt.ev, tt.actor)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCanEdit(t *testing.T) {
	tests := []struct {
		name   string
		ev     *models.Event
		actor  *Actor
		ok     bool
		reason DenialReason
	}{
		{"anonymous", event(models.VisibilityDraft, nil, ownerID), nil, false, ReasonNotLoggedIn},
		{"outsider", event(models.VisibilityDraft, nil, ownerID), actor("", false), false, ReasonNotInOrg},
		{"admin private", event(models.VisibilityPrivate, &groupID, ownerID), actor(models.RoleOrgAdmin, false), true, ReasonNone},
		{"member public", event(models.VisibilityApproved, nil, ownerID), actor(models.RoleOrgMember, false), true, ReasonNone},
		{"member own private", event(models.VisibilityPrivate, nil, userID), actor(models.RoleOrgMember, false), true, ReasonNone},
		{"member foreign private", event(models.VisibilityPrivate, nil, ownerID), actor(models.RoleOrgMember, true), false, ReasonPrivateNotAuthor},
		{"viewer own draft", event(models.VisibilityDraft, nil, userID), actor(models.RoleOrgViewer, false), false, ReasonInsufficientRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanEdit(tt.ev, tt.actor, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestOrganizationChecks(t *testing.T) {
	ok, reason := CanCreate(orgID, actor(models.RoleOrgViewer, false))
	assert.False(t, ok)
	assert.Equal(t, ReasonInsufficientRole, reason)

	ok, _ = CanCreate(orgID, actor(models.RoleOrgMember, false))
	assert.True(t, ok)

	ok, reason = CanManageOrganization(orgID, actor(models.RoleOrgMember, false))
	assert.False(t, ok)
	assert.Equal(t, ReasonInsufficientRole, reason)

	ok, reason = CanReadOrganization(otherID, actor(models.RoleOrgAdmin, false))
	assert.False(t, ok)
	assert.Equal(t, ReasonNotInOrg, reason)

	ok, reason = CanModerate(actor(models.RoleOrgAdmin, false))
	assert.False(t, ok)
	assert.Equal(t, ReasonSuperadminOnly, reason)
}

func TestHideDetails(t *testing.T) {
	ev := event(models.VisibilityApproved, nil, ownerID)
	ev.HideDetails = true
	ev.Description = "secret room"
	ev.Location = "Room 12"
	ev.PosterURL = "https://cdn.example.com/p.png"

	assert.True(t, HideDetails(ev, nil))
	assert.True(t, HideDetails(ev, actor("", true)))
	assert.False(t, HideDetails(ev, actor(models.RoleOrgViewer, false)))

	out := Present(ev, nil)
	require.NotSame(t, ev, out)
	assert.Empty(t, out.Description)
	assert.Empty(t, out.Location)
	assert.Empty(t, out.PosterURL)
	assert.Equal(t, "secret room", ev.Description)

	ev.Visibility = models.VisibilityPending
	assert.False(t, HideDetails(ev, nil))
}

func TestNewActor(t *testing.T) {
	u := &models.User{ID: userID, IsActive: true}
	a := NewActor(u, []models.Membership{{OrganizationID: orgID, UserID: userID, Role: models.RoleOrgMember}}, []uuid.UUID{groupID})

	role, ok := a.Role(orgID)
	assert.True(t, ok)
	assert.Equal(t, models.RoleOrgMember, role)
	assert.True(t, a.InGroup(groupID))
	assert.False(t, a.IsSuperadmin())
	assert.True(t, a.Authenticated())
}
