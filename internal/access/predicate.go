package access

import (
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/query"
)

// Event columns referenced by visibility predicates.
const (
	ColVisibility     = "visibility"
	ColCreatedBy      = "created_by_id"
	ColOrganizationID = "organization_id"
	ColGroupID        = "group_id"
)

func vis(vs ...models.Visibility) query.Predicate {
	if len(vs) == 1 {
		return query.Eq(ColVisibility, string(vs[0]))
	}
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = string(v)
	}
	return query.In(ColVisibility, s...)
}

// BuildVisibilityPredicate selects exactly the events CanView accepts for the actor.
func BuildVisibilityPredicate(a *Actor) query.Predicate {
	a = effective(a)
	if a == nil {
		return vis(models.VisibilityApproved)
	}
	if a.Superadmin {
		return query.True()
	}

	all := a.orgIDs(func(models.Role) bool { return true })
	admin := a.orgIDs(func(r models.Role) bool { return r == models.RoleOrgAdmin })
	nonAdmin := a.orgIDs(func(r models.Role) bool { return r != models.RoleOrgAdmin })

	clauses := []query.Predicate{
		vis(models.VisibilityApproved),
		query.And(query.Eq(ColCreatedBy, a.UserID), vis(models.VisibilityPrivate)),
	}
	if len(all) > 0 {
		clauses = append(clauses, query.And(
			query.In(ColOrganizationID, all...),
			vis(models.VisibilityDraft, models.VisibilityPending, models.VisibilityRejected),
		))
	}
	if len(nonAdmin) > 0 {
		clauses = append(clauses, query.And(
			vis(models.VisibilityPrivate),
			query.IsNull(ColGroupID),
			query.In(ColOrganizationID, nonAdmin...),
		))
	}
	if len(admin) > 0 {
		clauses = append(clauses, query.And(
			vis(models.VisibilityPrivate),
			query.In(ColOrganizationID, admin...),
		))
	}
	if groups := a.groupIDs(); len(groups) > 0 {
		clauses = append(clauses, query.And(
			vis(models.VisibilityPrivate),
			query.In(ColGroupID, groups...),
		))
	}
	return query.Or(clauses...)
}

// ListingPredicate is the filter used by the general event listing. It differs
// from BuildVisibilityPredicate only for superadmins, who browse approved and
// pending events there and reach drafts and rejections through moderation views.
func ListingPredicate(a *Actor) query.Predicate {
	if a.IsSuperadmin() {
		return vis(models.VisibilityApproved, models.VisibilityPending)
	}
	return BuildVisibilityPredicate(a)
}
