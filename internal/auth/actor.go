package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/access"
)

// ActorLoader builds the per-request authorization snapshot of a user.
type ActorLoader struct {
	repo *Repository
}

// NewActorLoader creates an actor loader.
func NewActorLoader(repo *Repository) *ActorLoader {
	return &ActorLoader{repo: repo}
}

// Load reads the user, its memberships and group memberships. Any failure is
// returned to the caller, which must deny rather than fall back to anonymous.
func (l *ActorLoader) Load(ctx context.Context, userID uuid.UUID) (*access.Actor, error) {
	u, err := l.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	memberships, err := l.repo.Memberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	groups, err := l.repo.GroupIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load group memberships: %w", err)
	}
	return access.NewActor(u, memberships, groups), nil
}
