// Package worker delivers queued moderation notifications.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/telemetry"
	"github.com/calendint/backend/pkg/queue"
)

const dequeueTimeout = 5 * time.Second

// JobQueue is the subset of *queue.Queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Users resolves notification recipients.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Logs records delivery attempts.
type Logs interface {
	Create(ctx context.Context, l *models.NotificationLog) error
}

// NotificationProcessor renders and sends moderation notifications.
type NotificationProcessor struct {
	queue   JobQueue
	users   Users
	logs    Logs
	sender  Sender
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewNotificationProcessor creates a processor.
func NewNotificationProcessor(q JobQueue, users Users, logs Logs, sender Sender, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{
		queue:   q,
		users:   users,
		logs:    logs,
		sender:  sender,
		logger:  logger,
		backoff: queue.RetryBackoff,
		now:     time.Now,
	}
}

func render(p queue.ModerationPayload) (kind, subject, body string) {
	if p.Visibility == string(models.VisibilityRejected) {
		return models.NotificationEventRejected,
			fmt.Sprintf("Your event %q was rejected", p.Title),
			fmt.Sprintf("A moderator rejected %q.\n\nReason: %s\n", p.Title, p.RejectionMessage)
	}
	return models.NotificationEventApproved,
		fmt.Sprintf("Your event %q is published", p.Title),
		fmt.Sprintf("%q was approved and is now visible in the public calendar.\n", p.Title)
}

// Process executes one job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEventModerated {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ModerationPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	user, err := p.users.GetByID(ctx, payload.AuthorID)
	if err != nil {
		return fmt.Errorf("load author %s: %w", payload.AuthorID, err)
	}
	if !user.IsActive {
		p.logger.Info("skipping notification for inactive user", zap.String("user_id", user.ID.String()))
		return nil
	}

	kind, subject, body := render(payload)
	entry := &models.NotificationLog{
		EventID:        payload.EventID,
		UserID:         user.ID,
		Kind:           kind,
		RecipientEmail: user.Email,
		Subject:        subject,
	}
	sendErr := p.sender.Send(ctx, Message{To: user.Email, Subject: subject, Body: body})
	if sendErr != nil {
		entry.Status = models.NotificationStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		now := p.now().UTC()
		entry.Status = models.NotificationStatusSent
		entry.SentAt = &now
	}
	telemetry.NotificationsTotal.WithLabelValues(entry.Status).Inc()
	if err := p.logs.Create(ctx, entry); err != nil {
		p.logger.Error("record notification log", zap.String("event_id", payload.EventID.String()), zap.Error(err))
	}
	if sendErr != nil {
		return fmt.Errorf("send: %w", sendErr)
	}
	p.logger.Info("notification sent", zap.String("event_id", payload.EventID.String()), zap.String("kind", kind))
	return nil
}

func (p *NotificationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("notification worker stopping")
			return
		}
		job, err := p.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}
