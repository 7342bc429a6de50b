package service

import (
	"context"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
)

// UserStore is the persistence the account, token and media services need.
// *repository.UserRepository implements it.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	ExistsUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error)
	SetRefreshTokenHash(ctx context.Context, id string, hash []byte) error
	SwapRefreshTokenHash(ctx context.Context, id string, expected, next []byte) (bool, error)
	ReplaceMedia(ctx context.Context, id string, slot models.MediaSlot, url, key string) (models.User, string, error)
	OwnersByIDs(ctx context.Context, ids []string) (map[string]models.Owner, error)
}

type SubscriptionStore interface {
	Subscribe(ctx context.Context, sub models.Subscription) (bool, error)
	Unsubscribe(ctx context.Context, subscriberID, channelID string) (bool, error)
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error)
	Exists(ctx context.Context, subscriberID, channelID string) (bool, error)
}

type HistoryStore interface {
	List(ctx context.Context, userID string) ([]models.HistoryItem, error)
	Append(ctx context.Context, userID, videoID string) (models.HistoryItem, error)
}

type VideoStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	ByIDs(ctx context.Context, ids []string) (map[string]models.Video, error)
}
