package events

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/lifecycle"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/query"
	"github.com/calendint/backend/internal/telemetry"
)

const maxEmojiLen = 16

// Service applies authorization and lifecycle rules around the event store.
type Service struct {
	store     Store
	notifier  Notifier
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the moderation notifier.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithPublisher sets the realtime change publisher.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates an event service.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) check(name string, ok bool, reason access.DenialReason) error {
	telemetry.ObserveDecision(name, ok)
	if ok {
		return nil
	}
	s.logger.Debug("access denied", zap.String("check", name), zap.String("reason", string(reason)))
	return denied(reason)
}

func (s *Service) canView(ev *models.Event, a *access.Actor) error {
	ok, reason := access.CanView(ev, a)
	return s.check("view", ok, reason)
}

func (s *Service) canEdit(ev *models.Event, a *access.Actor) error {
	ok, reason := access.CanEdit(ev, a, s.now())
	return s.check("edit", ok, reason)
}

func (s *Service) canModerate(a *access.Actor) error {
	ok, reason := access.CanModerate(a)
	return s.check("moderate", ok, reason)
}

func (s *Service) requireLogin(a *access.Actor) error {
	if !a.Authenticated() {
		return s.check("login", false, access.ReasonNotLoggedIn)
	}
	return nil
}

// Create stores a new event owned by the actor.
func (s *Service) Create(ctx context.Context, a *access.Actor, ev *models.Event) (*models.Event, error) {
	ok, reason := access.CanCreate(ev.OrganizationID, a)
	if err := s.check("create", ok, reason); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.Title) == "" {
		return nil, invalidf("title is required")
	}
	if err := s.checkRefs(ctx, ev.OrganizationID, ev.GroupID, ev.GuestOrganizationIDs); err != nil {
		return nil, err
	}
	auto, err := s.store.AutoTags(ctx, ev.OrganizationID, ev.TagIDs)
	if err != nil {
		return nil, err
	}

	ev.CreatedByID = a.UserID
	autoApproved, err := lifecycle.NormalizeCreate(ev, a.IsSuperadmin(), auto, s.now())
	if err != nil {
		return nil, translate(err)
	}
	if err := s.store.Create(ctx, ev); err != nil {
		return nil, err
	}
	s.logger.Info("event created",
		zap.String("event_id", ev.ID.String()),
		zap.String("visibility", string(ev.Visibility)),
		zap.String("user_id", a.UserID.String()))
	if autoApproved {
		s.transitioned(ctx, "auto_approve", ev)
	}
	s.publish(ctx, ChangeCreated, ev)
	return ev, nil
}

func (s *Service) checkRefs(ctx context.Context, orgID uuid.UUID, groupID *uuid.UUID, guests []uuid.UUID) error {
	if groupID != nil {
		if err := s.store.CheckGroup(ctx, orgID, *groupID); err != nil {
			return err
		}
	}
	if len(guests) > 0 {
		if err := s.store.CheckOrganizations(ctx, guests); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a single event as the actor may see it.
func (s *Service) Get(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error) {
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ev, a); err != nil {
		return nil, err
	}
	return access.Present(ev, a), nil
}

// Editable returns the event if the actor may edit it.
func (s *Service) Editable(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error) {
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canEdit(ev, a); err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns the events of the general listing visible to the actor.
func (s *Service) List(ctx context.Context, a *access.Actor, opts ListOptions) (*Page, error) {
	return s.page(ctx, a, query.And(access.ListingPredicate(a), opts.Predicate()), OrderStartAsc, opts)
}

// ListMine returns events of organizations where the actor may create events,
// plus events the actor created.
func (s *Service) ListMine(ctx context.Context, a *access.Actor, opts ListOptions) (*Page, error) {
	if err := s.requireLogin(a); err != nil {
		return nil, err
	}
	var orgs []uuid.UUID
	for id, role := range a.Memberships {
		if role.AtLeast(models.RoleOrgMember) {
			orgs = append(orgs, id)
		}
	}
	scope := query.Or(query.Eq(access.ColCreatedBy, a.UserID), query.In(access.ColOrganizationID, orgs...))
	where := query.And(scope, access.BuildVisibilityPredicate(a), opts.Predicate())
	return s.page(ctx, a, where, OrderStartAsc, opts)
}

// ListDrafts returns the actor's drafts and the drafts of organizations the actor administers.
func (s *Service) ListDrafts(ctx context.Context, a *access.Actor, opts ListOptions) (*Page, error) {
	if err := s.requireLogin(a); err != nil {
		return nil, err
	}
	var admin []uuid.UUID
	for id, role := range a.Memberships {
		if role == models.RoleOrgAdmin {
			admin = append(admin, id)
		}
	}
	where := query.And(
		query.Eq(access.ColVisibility, string(models.VisibilityDraft)),
		query.Or(query.Eq(access.ColCreatedBy, a.UserID), query.In(access.ColOrganizationID, admin...)),
		access.BuildVisibilityPredicate(a),
		opts.Predicate(),
	)
	return s.page(ctx, a, where, OrderStartAsc, opts)
}

// ListPending returns events awaiting moderation.
func (s *Service) ListPending(ctx context.Context, a *access.Actor, opts ListOptions) (*Page, error) {
	if err := s.canModerate(a); err != nil {
		return nil, err
	}
	where := query.And(query.Eq(access.ColVisibility, string(models.VisibilityPending)), opts.Predicate())
	return s.page(ctx, a, where, OrderStartAsc, opts)
}

// ListProcessed returns the most recent moderated events.
func (s *Service) ListProcessed(ctx context.Context, a *access.Actor) (*Page, error) {
	if err := s.canModerate(a); err != nil {
		return nil, err
	}
	where := query.In(access.ColVisibility, string(models.VisibilityApproved), string(models.VisibilityRejected))
	return s.page(ctx, a, where, OrderStartDesc, ListOptions{Limit: processedLimit})
}

// FindOverlapping returns pending and approved events overlapping the event's span,
// restricted to what the actor may list.
func (s *Service) FindOverlapping(ctx context.Context, a *access.Actor, id uuid.UUID) ([]*models.Event, error) {
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ev, a); err != nil {
		return nil, err
	}
	where := query.And(
		access.ListingPredicate(a),
		query.In(access.ColVisibility, string(models.VisibilityPending), string(models.VisibilityApproved)),
		query.Lt("start_time", ev.EndTime),
		query.Gt("end_time", ev.StartTime),
		query.Not(query.Eq("id", ev.ID)),
	)
	p, err := s.page(ctx, a, where, OrderStartAsc, ListOptions{Limit: maxLimit})
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

func (s *Service) page(ctx context.Context, a *access.Actor, where query.Predicate, order Order, opts ListOptions) (*Page, error) {
	opts.Normalize()
	items, total, err := s.store.List(ctx, where, order, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	for i, ev := range items {
		items[i] = access.Present(ev, a)
	}
	return &Page{Items: items, Total: total, Limit: opts.Limit, Offset: opts.Offset}, nil
}

// Update applies a patch under the event's row lock.
func (s *Service) Update(ctx context.Context, a *access.Actor, id uuid.UUID, p lifecycle.Patch) (*models.Event, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, invalidf("title must not be empty")
	}
	var ch lifecycle.Changes
	ev, err := s.store.Mutate(ctx, id, func(ev *models.Event) error {
		if err := s.canEdit(ev, a); err != nil {
			return err
		}
		group := p.GroupID
		if p.ClearGroup {
			group = nil
		}
		if err := s.checkRefs(ctx, ev.OrganizationID, group, p.GuestOrganizationIDs); err != nil {
			return err
		}
		auto, err := s.store.AutoTags(ctx, ev.OrganizationID, append(append([]uuid.UUID(nil), ev.TagIDs...), p.TagIDs...))
		if err != nil {
			return err
		}
		ch, err = lifecycle.ApplyUpdate(ev, p, a.IsSuperadmin(), auto, s.now())
		return translate(err)
	})
	if err != nil {
		return nil, err
	}
	switch {
	case ch.Moderated != "":
		s.logger.Info("event moderated",
			zap.String("event_id", id.String()),
			zap.String("transition", ch.Moderated),
			zap.String("visibility", string(ev.Visibility)))
		s.transitioned(ctx, ch.Moderated, ev)
	case ch.AutoApproved:
		s.transitioned(ctx, "auto_approve", ev)
	case ch.AutoDemoted:
		s.transitioned(ctx, "auto_demote", ev)
	case ch.Demoted:
		s.transitioned(ctx, "date_demote", ev)
	}
	s.publish(ctx, ChangeUpdated, ev)
	return ev, nil
}

// Delete removes an event the actor may edit.
func (s *Service) Delete(ctx context.Context, a *access.Actor, id uuid.UUID) error {
	ev, err := s.Editable(ctx, a, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", id.String()), zap.String("user_id", a.UserID.String()))
	s.publish(ctx, ChangeDeleted, ev)
	return nil
}

// Submit sends a draft or rejected event to moderation.
func (s *Service) Submit(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error) {
	var autoApproved bool
	ev, err := s.store.Mutate(ctx, id, func(ev *models.Event) error {
		if err := s.canEdit(ev, a); err != nil {
			return err
		}
		auto, err := s.store.AutoTags(ctx, ev.OrganizationID, ev.TagIDs)
		if err != nil {
			return err
		}
		autoApproved, err = lifecycle.Submit(ev, auto, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if autoApproved {
		s.transitioned(ctx, "auto_approve", ev)
	} else {
		s.transitioned(ctx, "submit", ev)
	}
	s.publish(ctx, ChangeUpdated, ev)
	return ev, nil
}

// Approve approves a public event.
func (s *Service) Approve(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error) {
	return s.moderate(ctx, a, id, "approve", func(ev *models.Event) error {
		return lifecycle.Approve(ev, s.now())
	})
}

// Reject rejects a public event with a message for its author.
func (s *Service) Reject(ctx context.Context, a *access.Actor, id uuid.UUID, message string) (*models.Event, error) {
	return s.moderate(ctx, a, id, "reject", func(ev *models.Event) error {
		return translate(lifecycle.Reject(ev, message))
	})
}

// ResetStatus returns a processed event to pending.
func (s *Service) ResetStatus(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error) {
	return s.moderate(ctx, a, id, "reset", lifecycle.ResetStatus)
}

func (s *Service) moderate(ctx context.Context, a *access.Actor, id uuid.UUID, name string, fn func(*models.Event) error) (*models.Event, error) {
	if err := s.canModerate(a); err != nil {
		return nil, err
	}
	ev, err := s.store.Mutate(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event moderated",
		zap.String("event_id", id.String()),
		zap.String("transition", name),
		zap.String("visibility", string(ev.Visibility)))
	s.transitioned(ctx, name, ev)
	s.publish(ctx, ChangeUpdated, ev)
	return ev, nil
}

// transitioned records a transition and notifies the author of moderation outcomes.
func (s *Service) transitioned(ctx context.Context, name string, ev *models.Event) {
	telemetry.ObserveTransition(name)
	if s.notifier == nil {
		return
	}
	if ev.Visibility != models.VisibilityApproved && ev.Visibility != models.VisibilityRejected {
		return
	}
	if err := s.notifier.EventModerated(ctx, ev); err != nil {
		s.logger.Warn("notify moderation", zap.String("event_id", ev.ID.String()), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, kind string, ev *models.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEventChange(ctx, kind, ev); err != nil {
		s.logger.Warn("publish event change", zap.String("event_id", ev.ID.String()), zap.Error(err))
	}
}

// ToggleReaction sets, changes or removes (same emoji again) the actor's reaction.
func (s *Service) ToggleReaction(ctx context.Context, a *access.Actor, id uuid.UUID, emoji string) ([]models.ReactionSummary, error) {
	if err := s.requireLogin(a); err != nil {
		return nil, err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLen {
		return nil, invalidf("invalid emoji")
	}
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ev, a); err != nil {
		return nil, err
	}
	if err := s.store.ToggleReaction(ctx, id, a.UserID, emoji); err != nil {
		return nil, err
	}
	return s.store.ReactionSummary(ctx, id, &a.UserID)
}

// Reactions returns the per-emoji summary of an event the actor can view.
func (s *Service) Reactions(ctx context.Context, a *access.Actor, id uuid.UUID) ([]models.ReactionSummary, error) {
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ev, a); err != nil {
		return nil, err
	}
	var viewer *uuid.UUID
	if a.Authenticated() {
		viewer = &a.UserID
	}
	return s.store.ReactionSummary(ctx, id, viewer)
}

// ListReactions returns who reacted, for those who may edit the event.
func (s *Service) ListReactions(ctx context.Context, a *access.Actor, id uuid.UUID) ([]models.ReactionDetail, error) {
	if _, err := s.Editable(ctx, a, id); err != nil {
		return nil, err
	}
	return s.store.ListReactions(ctx, id)
}

// DeleteReaction removes another user's reaction.
func (s *Service) DeleteReaction(ctx context.Context, a *access.Actor, id, userID uuid.UUID) error {
	if _, err := s.Editable(ctx, a, id); err != nil {
		return err
	}
	return s.store.DeleteReaction(ctx, id, userID)
}

// translate maps lifecycle input errors to validation errors; other errors pass through.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lifecycle.ErrInvalidTimeRange),
		errors.Is(err, lifecycle.ErrInvalidVisibility),
		errors.Is(err, lifecycle.ErrRejectionMessage):
		return invalidf(err.Error())
	case errors.Is(err, lifecycle.ErrFeaturedRestricted):
		return denied(access.ReasonSuperadminOnly)
	}
	return err
}
