// Package notifications hands moderation outcomes to the background worker and
// exposes the delivery log.
package notifications

import (
	"context"
	"fmt"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/queue"
)

// Enqueuer is the subset of *queue.Queue used by QueueNotifier.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ queue.JobType, payload any) (*queue.Job, error)
}

// QueueNotifier enqueues a job for every approved or rejected event.
type QueueNotifier struct {
	queue Enqueuer
}

// NewQueueNotifier creates a notifier backed by the job queue.
func NewQueueNotifier(q Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

// EventModerated enqueues a moderation notification for the event's author.
func (n *QueueNotifier) EventModerated(ctx context.Context, ev *models.Event) error {
	p := queue.ModerationPayload{
		EventID:    ev.ID,
		AuthorID:   ev.CreatedByID,
		Title:      ev.Title,
		Visibility: string(ev.Visibility),
	}
	if ev.RejectionMessage != nil {
		p.RejectionMessage = *ev.RejectionMessage
	}
	if _, err := n.queue.Enqueue(ctx, queue.JobTypeEventModerated, p); err != nil {
		return fmt.Errorf("enqueue moderation notification: %w", err)
	}
	return nil
}
