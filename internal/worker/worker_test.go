package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/queue"
)

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

type fakeLogs struct{ entries []*models.NotificationLog }

func (f *fakeLogs) Create(_ context.Context, l *models.NotificationLog) error {
	f.entries = append(f.entries, l)
	return nil
}

type fakeSender struct {
	err  error
	sent []Message
}

func (f *fakeSender) Send(_ context.Context, m Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type fakeQueue struct {
	jobs    []*queue.Job
	retried []*queue.Job
}

func (f *fakeQueue) Dequeue(ctx context.Context, _ time.Duration) (*queue.Job, error) {
	if len(f.jobs) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	j := f.jobs[0]
	f.jobs = f.jobs[1:]
	return j, nil
}

func (f *fakeQueue) Retry(_ context.Context, job *queue.Job) error {
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

func moderationJob(t *testing.T, p queue.ModerationPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeEventModerated, Payload: raw}
}

func newProcessor(q JobQueue, users Users, logs Logs, s Sender) *NotificationProcessor {
	p := NewNotificationProcessor(q, users, logs, s, zap.NewNop())
	p.backoff = time.Millisecond
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestProcessApproved(t *testing.T) {
	author := &models.User{ID: uuid.New(), Email: "author@example.org", IsActive: true}
	logs := &fakeLogs{}
	sender := &fakeSender{}
	p := newProcessor(&fakeQueue{}, fakeUsers{author.ID: author}, logs, sender)

	job := moderationJob(t, queue.ModerationPayload{
		EventID: uuid.New(), AuthorID: author.ID, Title: "Spring fair", Visibility: string(models.VisibilityApproved),
	})
	require.NoError(t, p.Process(context.Background(), job))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "author@example.org", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "published")
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.NotificationEventApproved, logs.entries[0].Kind)
	assert.Equal(t, models.NotificationStatusSent, logs.entries[0].Status)
	require.NotNil(t, logs.entries[0].SentAt)
}

func TestProcessRejectedIncludesReason(t *testing.T) {
	author := &models.User{ID: uuid.New(), Email: "a@example.org", IsActive: true}
	sender := &fakeSender{}
	logs := &fakeLogs{}
	p := newProcessor(&fakeQueue{}, fakeUsers{author.ID: author}, logs, sender)

	job := moderationJob(t, queue.ModerationPayload{
		EventID: uuid.New(), AuthorID: author.ID, Title: "Party",
		Visibility: string(models.VisibilityRejected), RejectionMessage: "missing location",
	})
	require.NoError(t, p.Process(context.Background(), job))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "missing location")
	assert.Equal(t, models.NotificationEventRejected, logs.entries[0].Kind)
}

func TestProcessInactiveAuthorSkipped(t *testing.T) {
	author := &models.User{ID: uuid.New(), Email: "gone@example.org"}
	sender := &fakeSender{}
	logs := &fakeLogs{}
	p := newProcessor(&fakeQueue{}, fakeUsers{author.ID: author}, logs, sender)

	job := moderationJob(t, queue.ModerationPayload{EventID: uuid.New(), AuthorID: author.ID, Visibility: string(models.VisibilityApproved)})
	require.NoError(t, p.Process(context.Background(), job))
	assert.Empty(t, sender.sent)
	assert.Empty(t, logs.entries)
}

func TestProcessUnknownType(t *testing.T) {
	p := newProcessor(&fakeQueue{}, fakeUsers{}, &fakeLogs{}, &fakeSender{})
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "nope"})
	assert.Error(t, err)
}

func TestRunRetriesFailedSend(t *testing.T) {
	author := &models.User{ID: uuid.New(), Email: "a@example.org", IsActive: true}
	job := moderationJob(t, queue.ModerationPayload{EventID: uuid.New(), AuthorID: author.ID, Visibility: string(models.VisibilityApproved)})
	q := &fakeQueue{jobs: []*queue.Job{job}}
	logs := &fakeLogs{}
	p := newProcessor(q, fakeUsers{author.ID: author}, logs, &fakeSender{err: errors.New("smtp down")})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	require.Len(t, q.retried, 1)
	assert.Equal(t, 1, q.retried[0].Attempt)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.NotificationStatusFailed, logs.entries[0].Status)
	assert.Equal(t, "smtp down", logs.entries[0].ErrorMessage)
}
