package queue

import (
	"context"
	"encoding/json"
	"errors"

	"model_upload_backend/models"

	"github.com/redis/go-redis/v9"
)

// RunQueueName is stored in redis as "queue:runs".
const RunQueueName = "runs"

var ErrQueueEmpty = errors.New("queue is empty")

// Backend is the list-style queue the redis service provides.
type Backend interface {
	PushToQueue(ctx context.Context, queueName string, value interface{}) error
	PopFromQueue(ctx context.Context, queueName string) (string, error)
}

// RunQueue hands created runs to the simulation worker.
type RunQueue struct {
	MQ Backend
}

func NewRunQueue(mq Backend) *RunQueue {
	return &RunQueue{MQ: mq}
}

func (q *RunQueue) Enqueue(ctx context.Context, task *models.RunTask) error {
	return q.MQ.PushToQueue(ctx, RunQueueName, task)
}

// Dequeue returns ErrQueueEmpty when nothing is waiting.
func (q *RunQueue) Dequeue(ctx context.Context) (*models.RunTask, error) {
	raw, err := q.MQ.PopFromQueue(ctx, RunQueueName)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, err
	}
	var task models.RunTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, err
	}
	return &task, nil
}
