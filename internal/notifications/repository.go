package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/database"
)

// Repository handles notification_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a notification log repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create records a delivery attempt.
func (r *Repository) Create(ctx context.Context, l *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (event_id, user_id, kind, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, l.EventID, l.UserID, l.Kind, l.RecipientEmail, l.Subject, l.Status, l.SentAt, l.ErrorMessage).
		Scan(&l.ID, &l.CreatedAt)
}

// ListByEvent returns notification logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.NotificationLog, error) {
	const q = `SELECT id, event_id, user_id, kind, recipient_email, subject, status, sent_at, error_message, created_at
		FROM notification_logs
		WHERE event_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.NotificationLog{}
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.ID, &l.EventID, &l.UserID, &l.Kind, &l.RecipientEmail, &l.Subject, &l.Status, &l.SentAt, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
