package events

import (
	"context"
	"encoding/json"
	"time"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"

	"github.com/redis/go-redis/v9"
)

const (
	ModelEventChannel = "model:events"
)

type EventPublisher struct {
	redisClient *redis.Client
	now         func() time.Time
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{redisClient: redisClient, now: time.Now}
}

func (p *EventPublisher) PublishModelEvent(ctx context.Context, event *models.ModelEvent) error {
	event.Timestamp = p.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		logging.Logger.Error("fail PublishModelEvent", "error", err)
		return err
	}
	if err := p.redisClient.Publish(ctx, ModelEventChannel, string(data)).Err(); err != nil {
		logging.Logger.Error("fail PublishModelEvent", "error", err)
		return err
	}
	logging.Logger.Debug("PublishModelEvent", "type", event.Type, "model_id", event.ModelID)
	return nil
}

// SubscribeModelEvents streams events until ctx is cancelled. A non-empty
// modelID filters the stream down to that model.
func (p *EventPublisher) SubscribeModelEvents(ctx context.Context, modelID string) (<-chan *models.ModelEvent, error) {
	pubsub := p.redisClient.Subscribe(ctx, ModelEventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		logging.Logger.Error("fail SubscribeModelEvents", "error", err)
		_ = pubsub.Close()
		return nil, err
	}
	ch := make(chan *models.ModelEvent, 100)

	go func() {
		defer close(ch)
		defer func() {
			if err := pubsub.Close(); err != nil {
				logging.Logger.Error("fail SubscribeModelEvents close", "error", err)
			}
		}()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.ModelEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Logger.Error("Failed to unmarshal event", "error", err)
					continue
				}
				if modelID != "" && event.ModelID != modelID {
					continue
				}
				select {
				case ch <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
