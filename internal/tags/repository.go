package tags

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/database"
)

// ErrNotFound is returned when no tag matches.
var ErrNotFound = errors.New("tag not found")

const tagColumns = `id, organization_id, name, color, is_auto_approved, created_at`

// Repository handles tag persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a tags repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

func scanTag(row pgx.Row) (*models.Tag, error) {
	var t models.Tag
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.IsAutoApproved, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns a tag by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	return scanTag(r.db.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
}

// List returns tags, optionally restricted to one organization.
func (r *Repository) List(ctx context.Context, orgID *uuid.UUID) ([]*models.Tag, error) {
	q := `SELECT ` + tagColumns + ` FROM tags`
	var args []any
	if orgID != nil {
		q += ` WHERE organization_id = $1`
		args = append(args, *orgID)
	}
	rows, err := r.db.Query(ctx, q+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Create inserts a tag. New tags are never auto-approving.
func (r *Repository) Create(ctx context.Context, t *models.Tag) error {
	const q = `INSERT INTO tags (organization_id, name, color) VALUES ($1, $2, $3) RETURNING id, is_auto_approved, created_at`
	return r.db.QueryRow(ctx, q, t.OrganizationID, t.Name, t.Color).Scan(&t.ID, &t.IsAutoApproved, &t.CreatedAt)
}

// Update renames or recolors a tag.
func (r *Repository) Update(ctx context.Context, t *models.Tag) error {
	tag, err := r.db.Exec(ctx, `UPDATE tags SET name = $1, color = $2 WHERE id = $3`, t.Name, t.Color, t.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAutoApproved toggles whether events carrying the tag skip moderation.
func (r *Repository) SetAutoApproved(ctx context.Context, id uuid.UUID, auto bool) (*models.Tag, error) {
	return scanTag(r.db.QueryRow(ctx,
		`UPDATE tags SET is_auto_approved = $1 WHERE id = $2 RETURNING `+tagColumns, auto, id))
}

// Delete removes a tag and its event links.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
