package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
)

var ErrVideoNotFound = errors.New("video not found")

// VideoRepository reads the videos table for history enrichment. Videos are
// written by the upload pipeline; Create exists for seeding.
type VideoRepository struct {
	pool *pgxpool.Pool
}

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

func (r *VideoRepository) Create(ctx context.Context, video models.Video) error {
	const query = `
		INSERT INTO videos (
			id, owner_id, title, description, thumbnail_url, video_url,
			duration_seconds, views, is_published, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		video.ID,
		video.OwnerID,
		video.Title,
		video.Description,
		video.ThumbnailURL,
		video.VideoURL,
		video.DurationSeconds,
		video.Views,
		video.IsPublished,
	)
	return mapWriteError(err)
}

func (r *VideoRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (models.Video, error) {
	videos, err := r.ByIDs(ctx, []string{id})
	if err != nil {
		return models.Video{}, err
	}
	v, ok := videos[id]
	if !ok {
		return models.Video{}, ErrVideoNotFound
	}
	return v, nil
}

// ByIDs returns every existing video in ids keyed by id. Missing ids are
// absent from the map.
func (r *VideoRepository) ByIDs(ctx context.Context, ids []string) (map[string]models.Video, error) {
	videos := make(map[string]models.Video, len(ids))
	if len(ids) == 0 {
		return videos, nil
	}

	const query = `
		SELECT id, owner_id, title, description, thumbnail_url, video_url,
		       duration_seconds, views, is_published, created_at, updated_at
		FROM videos WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}

	collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Video, error) {
		var v models.Video
		err := row.Scan(
			&v.ID,
			&v.OwnerID,
			&v.Title,
			&v.Description,
			&v.ThumbnailURL,
			&v.VideoURL,
			&v.DurationSeconds,
			&v.Views,
			&v.IsPublished,
			&v.CreatedAt,
			&v.UpdatedAt,
		)
		return v, err
	})
	if err != nil {
		return nil, err
	}

	for _, v := range collected {
		videos[v.ID] = v
	}
	return videos, nil
}
