package models

import "time"

type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

type ChannelProfile struct {
	Username          string `json:"username"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	Avatar            string `json:"avatar"`
	CoverImage        string `json:"coverImage"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

type Video struct {
	ID              string    `json:"id"`
	OwnerID         *string   `json:"-"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ThumbnailURL    string    `json:"thumbnail"`
	VideoURL        string    `json:"videoFile"`
	DurationSeconds float64   `json:"duration"`
	Views           int64     `json:"views"`
	IsPublished     bool      `json:"isPublished"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type HistoryItem struct {
	Position  int64     `json:"position"`
	VideoID   string    `json:"videoId"`
	WatchedAt time.Time `json:"watchedAt"`
}

// HistoryEntry is a watched video joined with its owner. Owner is nil when the
// owning account no longer exists.
type HistoryEntry struct {
	Video
	Owner     *Owner    `json:"owner,omitempty"`
	WatchedAt time.Time `json:"watchedAt"`
}
