package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	payload := ModerationPayload{EventID: uuid.New(), AuthorID: uuid.New(), Title: "Gala", Visibility: "public_approved"}
	job, err := q.Enqueue(ctx, JobTypeEventModerated, payload)
	require.NoError(t, err)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeEventModerated, got.Type)
	assert.Equal(t, 0, got.Attempt)

	var decoded ModerationPayload
	require.NoError(t, got.Decode(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestDequeueInvalidEntry(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(QueueNotifications, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryThenDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, JobTypeEventModerated, ModerationPayload{EventID: uuid.New()})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	for attempt := 1; attempt < MaxRetries; attempt++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Equal(t, attempt, job.Attempt)
		got, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, attempt, got.Attempt)
	}

	require.NoError(t, q.Retry(ctx, job))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	dead, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}
