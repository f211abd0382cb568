package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/lifecycle"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/query"
)

// Store persists events. Mutate must hold an exclusive per-event lock while fn runs
// and persist the event only when fn returns nil.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, where query.Predicate, order Order, limit, offset int) ([]*models.Event, int, error)
	Create(ctx context.Context, ev *models.Event) error
	Mutate(ctx context.Context, id uuid.UUID, fn func(ev *models.Event) error) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AutoTags resolves tag ids of an organization, failing with ErrNotFound when one
	// is missing or owned by another organization.
	AutoTags(ctx context.Context, orgID uuid.UUID, tagIDs []uuid.UUID) (lifecycle.AutoTags, error)
	CheckGroup(ctx context.Context, orgID, groupID uuid.UUID) error
	CheckOrganizations(ctx context.Context, ids []uuid.UUID) error

	ToggleReaction(ctx context.Context, eventID, userID uuid.UUID, emoji string) error
	ReactionSummary(ctx context.Context, eventID uuid.UUID, viewer *uuid.UUID) ([]models.ReactionSummary, error)
	ListReactions(ctx context.Context, eventID uuid.UUID) ([]models.ReactionDetail, error)
	DeleteReaction(ctx context.Context, eventID, userID uuid.UUID) error
}

// Notifier is told about moderation outcomes (approve, reject, auto-approval).
type Notifier interface {
	EventModerated(ctx context.Context, ev *models.Event) error
}

// Change kinds published to the realtime feed.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Publisher fans out event changes to live subscribers.
type Publisher interface {
	PublishEventChange(ctx context.Context, kind string, ev *models.Event) error
}
