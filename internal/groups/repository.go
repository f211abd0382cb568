package groups

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/database"
)

var (
	// ErrNotFound is returned when the group or membership does not exist.
	ErrNotFound = errors.New("group not found")
	// ErrNotOrgMember is returned when adding a user who is not in the group's organization.
	ErrNotOrgMember = errors.New("user is not a member of the organization")
)

// Repository handles groups and group memberships.
type Repository struct {
	db database.DB
}

// NewRepository creates a groups repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Get returns a group by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	const q = `SELECT g.id, g.organization_id, g.name, g.description, g.created_at,
			(SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = g.id)
		FROM groups g WHERE g.id = $1`
	var g models.Group
	err := r.db.QueryRow(ctx, q, id).Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.CreatedAt, &g.MemberCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListByOrganization returns the groups of an organization with member counts.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Group, error) {
	const q = `SELECT g.id, g.organization_id, g.name, g.description, g.created_at, COUNT(gm.id)
		FROM groups g
		LEFT JOIN group_memberships gm ON gm.group_id = g.id
		WHERE g.organization_id = $1
		GROUP BY g.id
		ORDER BY g.name`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.CreatedAt, &g.MemberCount); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// Create inserts a group.
func (r *Repository) Create(ctx context.Context, g *models.Group) error {
	const q = `INSERT INTO groups (organization_id, name, description) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, g.OrganizationID, g.Name, g.Description).Scan(&g.ID, &g.CreatedAt)
}

// Delete removes a group. Events scoped to it lose their group.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember adds a user to a group. The user must belong to the group's organization.
func (r *Repository) AddMember(ctx context.Context, g *models.Group, userID uuid.UUID) error {
	var member bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE organization_id = $1 AND user_id = $2)`,
		g.OrganizationID, userID).Scan(&member)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotOrgMember
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO group_memberships (group_id, user_id) VALUES ($1, $2) ON CONFLICT (group_id, user_id) DO NOTHING`,
		g.ID, userID)
	return err
}

// RemoveMember removes a user from a group.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Members returns the users in a group.
func (r *Repository) Members(ctx context.Context, groupID uuid.UUID) ([]models.UserPublic, error) {
	const q = `SELECT u.id, u.email, u.full_name, u.is_superadmin, u.created_at
		FROM group_memberships gm
		INNER JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.full_name, u.email`
	rows, err := r.db.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.IsSuperadmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
