package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
)

type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// List returns the user's history in the order it was recorded.
func (r *HistoryRepository) List(ctx context.Context, userID string) ([]models.HistoryItem, error) {
	const query = `
		SELECT position, video_id, watched_at
		FROM watch_history
		WHERE user_id = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.HistoryItem
	for rows.Next() {
		var item models.HistoryItem
		if err := rows.Scan(&item.Position, &item.VideoID, &item.WatchedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *HistoryRepository) Append(ctx context.Context, userID, videoID string) (models.HistoryItem, error) {
	const query = `
		INSERT INTO watch_history (user_id, video_id, watched_at)
		VALUES ($1, $2, NOW())
		RETURNING position, video_id, watched_at
	`
	var item models.HistoryItem
	if err := r.pool.QueryRow(ctx, query, userID, videoID).Scan(&item.Position, &item.VideoID, &item.WatchedAt); err != nil {
		return models.HistoryItem{}, err
	}
	return item, nil
}
