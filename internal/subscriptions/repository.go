// Package subscriptions records which organizations and tags a user follows.
// Delivery of pushes for them lives outside this service.
package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/database"
)

var (
	// ErrNotFound is returned for a missing subscription or subscription target.
	ErrNotFound = errors.New("subscription not found")
	// ErrAlreadySubscribed is returned when the subscription already exists.
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// Repository persists subscriptions.
type Repository struct {
	db database.DB
}

// NewRepository creates a subscriptions repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// ListForUser returns the user's subscriptions, oldest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, organization_id, tag_id, subscribe_all, created_at
		FROM subscriptions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.OrganizationID, &s.TagID, &s.All, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *Repository) insert(ctx context.Context, s *models.Subscription) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO subscriptions (user_id, organization_id, tag_id, subscribe_all) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		s.UserID, s.OrganizationID, s.TagID, s.All).Scan(&s.ID, &s.CreatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return ErrAlreadySubscribed
	case database.IsForeignKeyViolation(err):
		return ErrNotFound
	}
	return err
}

// SubscribeOrganization follows an organization.
func (r *Repository) SubscribeOrganization(ctx context.Context, userID, orgID uuid.UUID) (*models.Subscription, error) {
	s := &models.Subscription{UserID: userID, OrganizationID: &orgID}
	return s, r.insert(ctx, s)
}

// SubscribeTag follows a tag.
func (r *Repository) SubscribeTag(ctx context.Context, userID, tagID uuid.UUID) (*models.Subscription, error) {
	s := &models.Subscription{UserID: userID, TagID: &tagID}
	return s, r.insert(ctx, s)
}

// SubscribeAll follows every event. Subscribing twice is not an error.
func (r *Repository) SubscribeAll(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `INSERT INTO subscriptions (user_id, subscribe_all) VALUES ($1, TRUE)
		ON CONFLICT (user_id) WHERE subscribe_all DO NOTHING`, userID)
	return err
}

func (r *Repository) delete(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UnsubscribeOrganization stops following an organization.
func (r *Repository) UnsubscribeOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND organization_id = $2`, userID, orgID)
}

// UnsubscribeTag stops following a tag.
func (r *Repository) UnsubscribeTag(ctx context.Context, userID, tagID uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND tag_id = $2`, userID, tagID)
}

// UnsubscribeAll removes the follow-everything subscription.
func (r *Repository) UnsubscribeAll(ctx context.Context, userID uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND subscribe_all`, userID)
}
