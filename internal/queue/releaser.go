package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) (string, error)
}

type Remover interface {
	Release(ctx context.Context, key string) error
}

// Releaser schedules deletion of blobs that lost their last reference. It
// prefers the worker queue and falls back to deleting inline. When both fail
// the error is returned and the blob is left for the sweep job.
type Releaser struct {
	queue  Enqueuer
	store  Remover
	logger zerolog.Logger
}

func NewReleaser(queue Enqueuer, store Remover, logger zerolog.Logger) *Releaser {
	return &Releaser{queue: queue, store: store, logger: logger}
}

func (r *Releaser) Release(ctx context.Context, key, reason string) error {
	if key == "" {
		return nil
	}

	if r.queue != nil {
		_, err := r.queue.Enqueue(ctx, Task{Type: TaskRelease, Key: key, Reason: reason})
		if err == nil {
			return nil
		}
		r.logger.Debug().Err(err).Str("key", key).Msg("enqueue release failed, releasing inline")
	}

	if err := r.store.Release(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
