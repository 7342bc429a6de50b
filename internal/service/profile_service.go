package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/ids"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
)

// ProfileService answers the read-heavy relationship queries: channel
// profiles, subscriptions and watch history.
type ProfileService struct {
	users   UserStore
	subs    SubscriptionStore
	history HistoryStore
	videos  VideoStore
	log     zerolog.Logger
}

func NewProfileService(users UserStore, subs SubscriptionStore, history HistoryStore, videos VideoStore, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		users:   users,
		subs:    subs,
		history: history,
		videos:  videos,
		log:     log,
	}
}

// GetChannelProfile loads the channel by handle with its subscriber counts.
// viewerID may be empty, in which case IsSubscribed is false.
func (s *ProfileService) GetChannelProfile(ctx context.Context, handle, viewerID string) (models.ChannelProfile, error) {
	channel, err := s.channelByHandle(ctx, handle)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	subscribers, err := s.subs.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("count subscribers: %w", err)
	}
	subscribedTo, err := s.subs.CountSubscribedTo(ctx, channel.ID)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("count subscriptions: %w", err)
	}

	isSubscribed := false
	if viewerID != "" {
		isSubscribed, err = s.subs.Exists(ctx, viewerID, channel.ID)
		if err != nil {
			return models.ChannelProfile{}, fmt.Errorf("check subscription: %w", err)
		}
	}

	public := channel.Public()
	return models.ChannelProfile{
		Username:          public.Username,
		FullName:          public.FullName,
		Email:             public.Email,
		Avatar:            public.Avatar,
		CoverImage:        public.CoverImage,
		SubscribersCount:  subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      isSubscribed,
	}, nil
}

// GetWatchHistory returns the user's history in recorded order. Entries whose
// video is gone are skipped; entries whose owner is gone have a nil Owner.
func (s *ProfileService) GetWatchHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	items, err := s.history.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries := make([]models.HistoryEntry, 0, len(items))
	if len(items) == 0 {
		return entries, nil
	}

	videoIDs := uniqueStrings(len(items), func(i int) string { return items[i].VideoID })
	videos, err := s.videos.ByIDs(ctx, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("load videos: %w", err)
	}

	var ownerIDs []string
	seen := make(map[string]struct{})
	for _, v := range videos {
		if v.OwnerID == nil {
			continue
		}
		if _, ok := seen[*v.OwnerID]; ok {
			continue
		}
		seen[*v.OwnerID] = struct{}{}
		ownerIDs = append(ownerIDs, *v.OwnerID)
	}
	owners, err := s.users.OwnersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}

	for _, item := range items {
		video, ok := videos[item.VideoID]
		if !ok {
			continue
		}
		entry := models.HistoryEntry{Video: video, WatchedAt: item.WatchedAt}
		if video.OwnerID != nil {
			if owner, ok := owners[*video.OwnerID]; ok {
				entry.Owner = &owner
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RecordWatch appends a video to the user's history.
func (s *ProfileService) RecordWatch(ctx context.Context, userID, videoID string) (models.HistoryItem, error) {
	if videoID == "" {
		return models.HistoryItem{}, errs.Validation("video id is required")
	}
	exists, err := s.videos.Exists(ctx, videoID)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("check video: %w", err)
	}
	if !exists {
		return models.HistoryItem{}, errs.NotFound("video not found")
	}

	item, err := s.history.Append(ctx, userID, videoID)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("append history: %w", err)
	}
	return item, nil
}

// Subscribe is idempotent. It reports whether a new edge was created.
func (s *ProfileService) Subscribe(ctx context.Context, subscriberID, handle string) (bool, error) {
	channel, err := s.channelByHandle(ctx, handle)
	if err != nil {
		return false, err
	}
	if channel.ID == subscriberID {
		return false, errs.Validation("cannot subscribe to your own channel")
	}

	created, err := s.subs.Subscribe(ctx, models.Subscription{
		ID:           ids.New(),
		SubscriberID: subscriberID,
		ChannelID:    channel.ID,
	})
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	return created, nil
}

// Unsubscribe is idempotent. It reports whether an edge was removed.
func (s *ProfileService) Unsubscribe(ctx context.Context, subscriberID, handle string) (bool, error) {
	channel, err := s.channelByHandle(ctx, handle)
	if err != nil {
		return false, err
	}
	removed, err := s.subs.Unsubscribe(ctx, subscriberID, channel.ID)
	if err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	return removed, nil
}

func (s *ProfileService) channelByHandle(ctx context.Context, handle string) (models.User, error) {
	handle = normalize(handle)
	if handle == "" {
		return models.User{}, errs.Validation("username is missing")
	}
	channel, err := s.users.FindByUsernameOrEmail(ctx, handle, "")
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, errs.NotFound("channel does not exist")
		}
		return models.User{}, fmt.Errorf("find channel: %w", err)
	}
	return channel, nil
}

func uniqueStrings(n int, at func(int) string) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		v := at(i)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
