package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/calendint/backend/internal/lifecycle"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/query"
	"github.com/calendint/backend/pkg/database"
)

const eventColumns = `id, title, description, start_time, end_time, location, location_url, poster_url,
	visibility, group_id, organization_id, created_by_id, rejection_message, approved_at, hide_details, featured,
	ARRAY(SELECT tag_id FROM event_tags WHERE event_tags.event_id = events.id ORDER BY tag_id),
	ARRAY(SELECT organization_id FROM event_guest_organizations g WHERE g.event_id = events.id ORDER BY organization_id),
	created_at, updated_at`

// Repository handles event persistence in PostgreSQL.
type Repository struct {
	db database.DB
}

// NewRepository creates an event repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var ev models.Event
	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.StartTime, &ev.EndTime, &ev.Location, &ev.LocationURL, &ev.PosterURL,
		&ev.Visibility, &ev.GroupID, &ev.OrganizationID, &ev.CreatedByID, &ev.RejectionMessage, &ev.ApprovedAt, &ev.HideDetails, &ev.Featured,
		&ev.TagIDs, &ev.GuestOrganizationIDs, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Get returns an event by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// List returns one page of events matching where, and the total match count.
func (r *Repository) List(ctx context.Context, where query.Predicate, order Order, limit, offset int) ([]*models.Event, int, error) {
	cond, args := query.Compile(where, 1)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		eventColumns, cond, order.SQL(), len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Event, 0, limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, ev)
	}
	return list, total, rows.Err()
}

// Create inserts an event with its tags and guest organizations.
func (r *Repository) Create(ctx context.Context, ev *models.Event) error {
	const q = `INSERT INTO events (title, description, start_time, end_time, location, location_url, poster_url,
		visibility, group_id, organization_id, created_by_id, rejection_message, approved_at, hide_details, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, q, ev.Title, ev.Description, ev.StartTime, ev.EndTime, ev.Location, ev.LocationURL, ev.PosterURL,
			ev.Visibility, ev.GroupID, ev.OrganizationID, ev.CreatedByID, ev.RejectionMessage, ev.ApprovedAt, ev.HideDetails, ev.Featured).
			Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return writeLinks(ctx, tx, ev)
	})
}

func writeLinks(ctx context.Context, tx pgx.Tx, ev *models.Event) error {
	if _, err := tx.Exec(ctx, `DELETE FROM event_tags WHERE event_id = $1`, ev.ID); err != nil {
		return fmt.Errorf("clear event tags: %w", err)
	}
	if len(ev.TagIDs) > 0 {
		const q = `INSERT INTO event_tags (event_id, tag_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, q, ev.ID, ev.TagIDs); err != nil {
			return fmt.Errorf("insert event tags: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM event_guest_organizations WHERE event_id = $1`, ev.ID); err != nil {
		return fmt.Errorf("clear guest organizations: %w", err)
	}
	if len(ev.GuestOrganizationIDs) > 0 {
		const q = `INSERT INTO event_guest_organizations (event_id, organization_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, q, ev.ID, ev.GuestOrganizationIDs); err != nil {
			return fmt.Errorf("insert guest organizations: %w", err)
		}
	}
	return nil
}

// Mutate locks the event row with SELECT ... FOR UPDATE, runs fn on it and writes
// the result back in the same transaction. Concurrent transitions on one event
// therefore serialize.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn func(ev *models.Event) error) (*models.Event, error) {
	const update = `UPDATE events SET title = $1, description = $2, start_time = $3, end_time = $4, location = $5,
		location_url = $6, poster_url = $7, visibility = $8, group_id = $9, rejection_message = $10, approved_at = $11,
		hide_details = $12, featured = $13, updated_at = NOW()
		WHERE id = $14 RETURNING updated_at`
	var out *models.Event
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		ev, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, update, ev.Title, ev.Description, ev.StartTime, ev.EndTime, ev.Location,
			ev.LocationURL, ev.PosterURL, ev.Visibility, ev.GroupID, ev.RejectionMessage, ev.ApprovedAt,
			ev.HideDetails, ev.Featured, ev.ID).Scan(&ev.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if err := writeLinks(ctx, tx, ev); err != nil {
			return err
		}
		out = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an event; links, tags, reactions and guests cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AutoTags resolves the auto-approval flag of the given tags.
func (r *Repository) AutoTags(ctx context.Context, orgID uuid.UUID, tagIDs []uuid.UUID) (lifecycle.AutoTags, error) {
	out := lifecycle.AutoTags{}
	if len(tagIDs) == 0 {
		return out, nil
	}
	const q = `SELECT id, is_auto_approved FROM tags WHERE organization_id = $1 AND id = ANY($2)`
	rows, err := r.db.Query(ctx, q, orgID, tagIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var auto bool
		if err := rows.Scan(&id, &auto); err != nil {
			return nil, err
		}
		out[id] = auto
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range tagIDs {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("tag %s: %w", id, ErrNotFound)
		}
	}
	return out, nil
}

// CheckGroup verifies that the group exists inside the organization.
func (r *Repository) CheckGroup(ctx context.Context, orgID, groupID uuid.UUID) error {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM groups WHERE id = $1 AND organization_id = $2`, groupID, orgID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	return err
}

// CheckOrganizations verifies that every organization exists.
func (r *Repository) CheckOrganizations(ctx context.Context, ids []uuid.UUID) error {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM organizations WHERE id = ANY($1)`, ids).Scan(&n); err != nil {
		return err
	}
	if n != len(uniqueIDs(ids)) {
		return fmt.Errorf("guest organization: %w", ErrNotFound)
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	m := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// ToggleReaction adds the reaction, switches it to another emoji, or removes it when
// the same emoji is sent again.
func (r *Repository) ToggleReaction(ctx context.Context, eventID, userID uuid.UUID, emoji string) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT emoji FROM event_reactions WHERE event_id = $1 AND user_id = $2 FOR UPDATE`, eventID, userID).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx, `INSERT INTO event_reactions (event_id, user_id, emoji) VALUES ($1, $2, $3)
				ON CONFLICT (event_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji`, eventID, userID, emoji)
		case err != nil:
			return err
		case current == emoji:
			_, err = tx.Exec(ctx, `DELETE FROM event_reactions WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		default:
			_, err = tx.Exec(ctx, `UPDATE event_reactions SET emoji = $3, created_at = NOW() WHERE event_id = $1 AND user_id = $2`, eventID, userID, emoji)
		}
		return err
	})
}

// ReactionSummary counts reactions per emoji; UserReacted is set for viewer's emoji.
func (r *Repository) ReactionSummary(ctx context.Context, eventID uuid.UUID, viewer *uuid.UUID) ([]models.ReactionSummary, error) {
	const q = `SELECT emoji, COUNT(*), COALESCE(BOOL_OR(user_id = $2), FALSE)
		FROM event_reactions WHERE event_id = $1 GROUP BY emoji ORDER BY COUNT(*) DESC, emoji`
	rows, err := r.db.Query(ctx, q, eventID, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ReactionSummary{}
	for rows.Next() {
		var s models.ReactionSummary
		if err := rows.Scan(&s.Emoji, &s.Count, &s.UserReacted); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ListReactions returns reactions with their authors, newest first.
func (r *Repository) ListReactions(ctx context.Context, eventID uuid.UUID) ([]models.ReactionDetail, error) {
	const q = `SELECT u.id, u.email, u.full_name, u.is_superadmin, u.created_at, r.emoji, r.created_at
		FROM event_reactions r JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1 ORDER BY r.created_at DESC`
	rows, err := r.db.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ReactionDetail{}
	for rows.Next() {
		var d models.ReactionDetail
		if err := rows.Scan(&d.User.ID, &d.User.Email, &d.User.FullName, &d.User.IsSuperadmin, &d.User.CreatedAt, &d.Emoji, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// DeleteReaction removes a user's reaction from an event.
func (r *Repository) DeleteReaction(ctx context.Context, eventID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM event_reactions WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
