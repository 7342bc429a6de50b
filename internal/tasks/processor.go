package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/queue"
	"github.com/Milan-Sharma1/vsp-backend/internal/storage"
)

const sweepBatch = 500

type BlobStore interface {
	Release(ctx context.Context, key string) error
	Walk(ctx context.Context, prefix string, fn func(storage.ObjectInfo) error) error
}

type KeyIndex interface {
	ReferencedKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// Processor executes media tasks taken off the release stream.
type Processor struct {
	store  BlobStore
	index  KeyIndex
	grace  time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func NewProcessor(store BlobStore, index KeyIndex, grace time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		index:  index,
		grace:  grace,
		now:    time.Now,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskRelease:
		return p.handleRelease(ctx, task)
	case queue.TaskSweep:
		_, err := p.Sweep(ctx)
		return err
	default:
		p.logger.Warn().Str("type", string(task.Type)).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleRelease(ctx context.Context, task queue.Task) error {
	if err := p.store.Release(ctx, task.Key); err != nil {
		return fmt.Errorf("release %s: %w", task.Key, err)
	}
	p.logger.Info().Str("key", task.Key).Str("reason", task.Reason).Msg("blob released")
	return nil
}

// Sweep releases media objects older than the grace period that no user
// references. Young objects are skipped because an upload may still be on
// its way to the users table.
func (p *Processor) Sweep(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.grace)
	released := 0

	for _, slot := range []models.MediaSlot{models.SlotAvatar, models.SlotCover} {
		var batch []string
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := p.releaseUnreferenced(ctx, batch)
			released += n
			batch = batch[:0]
			return err
		}

		err := p.store.Walk(ctx, string(slot)+"/", func(obj storage.ObjectInfo) error {
			if obj.LastModified.After(cutoff) {
				return nil
			}
			batch = append(batch, obj.Key)
			if len(batch) >= sweepBatch {
				return flush()
			}
			return nil
		})
		if err != nil {
			return released, fmt.Errorf("sweep %s: %w", slot, err)
		}
		if err := flush(); err != nil {
			return released, fmt.Errorf("sweep %s: %w", slot, err)
		}
	}

	p.logger.Info().Int("released", released).Msg("sweep finished")
	return released, nil
}

func (p *Processor) releaseUnreferenced(ctx context.Context, keys []string) (int, error) {
	refs, err := p.index.ReferencedKeys(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("referenced keys: %w", err)
	}

	released := 0
	for _, key := range keys {
		if _, ok := refs[key]; ok {
			continue
		}
		if err := p.store.Release(ctx, key); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("sweep release failed")
			continue
		}
		released++
	}
	return released, nil
}
