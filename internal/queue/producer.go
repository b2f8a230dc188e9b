package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Producer appends tasks to the shared task stream.
type Producer struct {
	client streamAdder
	stream string
}

func NewProducer(client streamAdder, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Enqueue adds a task and returns its stream id.
func (p *Producer) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	values, err := encodeTask(taskType, payload)
	if err != nil {
		return "", err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
}
