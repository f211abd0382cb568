// Package links manages the named URLs attached to events and organizations.
package links

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/database"
)

// ErrNotFound is returned when the link or its owner does not exist.
var ErrNotFound = errors.New("link not found")

// Repository persists event and organization links.
type Repository struct {
	db database.DB
}

// NewRepository creates a links repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// EventLinks returns an event's links in display order.
func (r *Repository) EventLinks(ctx context.Context, eventID uuid.UUID) ([]models.EventLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, name, url, position FROM event_links WHERE event_id = $1 ORDER BY position`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.EventLink{}
	for rows.Next() {
		var l models.EventLink
		if err := rows.Scan(&l.ID, &l.EventID, &l.Name, &l.URL, &l.Order); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// ReplaceEventLinks swaps an event's links for links, numbered in slice order.
func (r *Repository) ReplaceEventLinks(ctx context.Context, eventID uuid.UUID, links []models.EventLink) ([]models.EventLink, error) {
	out := make([]models.EventLink, 0, len(links))
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_links WHERE event_id = $1`, eventID); err != nil {
			return err
		}
		for i, l := range links {
			l.EventID = eventID
			l.Order = i + 1
			err := tx.QueryRow(ctx,
				`INSERT INTO event_links (event_id, name, url, position) VALUES ($1, $2, $3, $4) RETURNING id`,
				eventID, l.Name, l.URL, l.Order).Scan(&l.ID)
			if database.IsForeignKeyViolation(err) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const orgLinkColumns = `id, organization_id, name, url, position`

func scanOrgLink(row pgx.Row) (*models.OrganizationLink, error) {
	var l models.OrganizationLink
	err := row.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.URL, &l.Order)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// OrganizationLinks returns an organization's links in display order.
func (r *Repository) OrganizationLinks(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orgLinkColumns+` FROM organization_links WHERE organization_id = $1 ORDER BY position, name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.OrganizationLink{}
	for rows.Next() {
		l, err := scanOrgLink(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// GetOrganizationLink returns a single organization link.
func (r *Repository) GetOrganizationLink(ctx context.Context, id uuid.UUID) (*models.OrganizationLink, error) {
	return scanOrgLink(r.db.QueryRow(ctx, `SELECT `+orgLinkColumns+` FROM organization_links WHERE id = $1`, id))
}

// CreateOrganizationLink inserts l. A missing organization yields ErrNotFound.
func (r *Repository) CreateOrganizationLink(ctx context.Context, l *models.OrganizationLink) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO organization_links (organization_id, name, url, position) VALUES ($1, $2, $3, $4) RETURNING id`,
		l.OrganizationID, l.Name, l.URL, l.Order).Scan(&l.ID)
	if database.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

// UpdateOrganizationLink writes back name, url and order.
func (r *Repository) UpdateOrganizationLink(ctx context.Context, l *models.OrganizationLink) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organization_links SET name = $1, url = $2, position = $3 WHERE id = $4`,
		l.Name, l.URL, l.Order, l.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOrganizationLink removes a link.
func (r *Repository) DeleteOrganizationLink(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organization_links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
