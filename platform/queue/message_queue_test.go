package queue

import (
	"context"
	"testing"
	"time"

	"model_upload_backend/models"
	platformredis "model_upload_backend/platform/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := NewRunQueue(platformredis.NewService(rdb))
	ctx := context.Background()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	created := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	require.NoError(t, q.Enqueue(ctx, &models.RunTask{RunID: "r-1", ModelID: "m-1", FileKey: "uploads/m-1/a.fmu", CreatedAt: created}))

	list, err := mr.List("queue:runs")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r-1", task.RunID)
	assert.Equal(t, "uploads/m-1/a.fmu", task.FileKey)
	assert.True(t, created.Equal(task.CreatedAt))
}
