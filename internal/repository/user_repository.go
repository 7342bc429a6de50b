package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, email, full_name, password_hash, avatar_url, avatar_key,
		cover_url, cover_key, refresh_token_hash, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, full_name, password_hash, avatar_url, avatar_key,
			cover_url, cover_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.AvatarKey,
		user.CoverURL,
		user.CoverKey,
	)
	return mapWriteError(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// FindByUsernameOrEmail matches either non-empty argument. Callers pass
// lowercase values.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	if username == "" && email == "" {
		return models.User{}, ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		ORDER BY created_at
		LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, username, email))
}

func (r *UserRepository) ExistsUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	query := `UPDATE users SET full_name = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, fullName, email))
	if err != nil {
		return models.User{}, mapWriteError(err)
	}
	return user, nil
}

// SetRefreshTokenHash overwrites the stored refresh hash. A nil hash revokes.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash []byte) error {
	const query = `UPDATE users SET refresh_token_hash = $2 WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SwapRefreshTokenHash replaces the stored hash only while it still equals
// expected. It reports false when another rotation or a revoke got there first.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id string, expected, next []byte) (bool, error) {
	const query = `
		UPDATE users SET refresh_token_hash = $3
		WHERE id = $1 AND refresh_token_hash IS NOT NULL AND refresh_token_hash = $2
	`
	cmd, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// ReplaceMedia points the slot at a new blob and returns the key it held
// before. The old key is read under the same row lock as the write.
func (r *UserRepository) ReplaceMedia(ctx context.Context, id string, slot models.MediaSlot, url, key string) (models.User, string, error) {
	var query string
	switch slot {
	case models.SlotAvatar:
		query = `
			UPDATE users u SET avatar_url = $2, avatar_key = $3, updated_at = NOW()
			FROM (SELECT id, avatar_key AS old_key FROM users WHERE id = $1 FOR UPDATE) prev
			WHERE u.id = prev.id
			RETURNING prev.old_key, ` + prefixed("u", userColumns)
	case models.SlotCover:
		query = `
			UPDATE users u SET cover_url = $2, cover_key = $3, updated_at = NOW()
			FROM (SELECT id, cover_key AS old_key FROM users WHERE id = $1 FOR UPDATE) prev
			WHERE u.id = prev.id
			RETURNING prev.old_key, ` + prefixed("u", userColumns)
	default:
		return models.User{}, "", fmt.Errorf("unknown media slot %q", slot)
	}

	var (
		oldKey *string
		user   models.User
	)
	err := r.pool.QueryRow(ctx, query, id, url, key).Scan(
		&oldKey,
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.AvatarKey,
		&user.CoverURL,
		&user.CoverKey,
		&user.RefreshTokenHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, "", ErrUserNotFound
		}
		return models.User{}, "", err
	}

	previous := ""
	if oldKey != nil {
		previous = *oldKey
	}
	return user, previous, nil
}

// OwnersByIDs returns the public fields of every existing user in ids.
func (r *UserRepository) OwnersByIDs(ctx context.Context, ids []string) (map[string]models.Owner, error) {
	owners := make(map[string]models.Owner, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}

	const query = `SELECT id, username, full_name, avatar_url FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Owner
		if err := rows.Scan(&o.ID, &o.Username, &o.FullName, &o.Avatar); err != nil {
			return nil, err
		}
		owners[o.ID] = o
	}
	return owners, rows.Err()
}

// ReferencedKeys returns the subset of keys still held by an avatar or cover
// slot.
func (r *UserRepository) ReferencedKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	refs := make(map[string]struct{})
	if len(keys) == 0 {
		return refs, nil
	}

	const query = `
		SELECT avatar_key FROM users WHERE avatar_key = ANY($1)
		UNION
		SELECT cover_key FROM users WHERE cover_key = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		refs[key] = struct{}{}
	}
	return refs, rows.Err()
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.AvatarKey,
		&user.CoverURL,
		&user.CoverKey,
		&user.RefreshTokenHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
