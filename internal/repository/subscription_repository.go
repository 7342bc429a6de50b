package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Subscribe records the edge and reports whether it was new.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, sub models.Subscription) (bool, error) {
	const query = `
		INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING
	`
	cmd, err := r.pool.Exec(ctx, query, sub.ID, sub.SubscriberID, sub.ChannelID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID, channelID string) (bool, error) {
	const query = `DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`
	cmd, err := r.pool.Exec(ctx, query, subscriberID, channelID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *SubscriptionRepository) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, channelID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SubscriptionRepository) CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, subscriberID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SubscriptionRepository) Exists(ctx context.Context, subscriberID, channelID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, subscriberID, channelID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
