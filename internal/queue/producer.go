package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream, now: time.Now}
}

// Enqueue appends the task to the stream and returns the entry id.
func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = p.now()
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result()
}
