package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/storage"
)

type memUsers struct {
	mu        sync.Mutex
	byID      map[string]models.User
	createErr error
	replErr   error
	events    *[]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]models.User{}}
}

func (m *memUsers) record(ev string) {
	if m.events != nil {
		*m.events = append(*m.events, ev)
	}
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("%w: users_username_key", repository.ErrDuplicate)
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) ExistsUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	_, err := m.FindByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memUsers) UpdatePassword(_ context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdateAccount(_ context.Context, id, fullName, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	for otherID, other := range m.byID {
		if otherID != id && other.Email == email {
			return models.User{}, repository.ErrDuplicate
		}
	}
	u.FullName, u.Email = fullName, email
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) SetRefreshTokenHash(_ context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.RefreshTokenHash = hash
	m.byID[id] = u
	return nil
}

func (m *memUsers) SwapRefreshTokenHash(_ context.Context, id string, expected, next []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.RefreshTokenHash == nil || !bytes.Equal(u.RefreshTokenHash, expected) {
		return false, nil
	}
	u.RefreshTokenHash = next
	m.byID[id] = u
	return true, nil
}

func (m *memUsers) ReplaceMedia(_ context.Context, id string, slot models.MediaSlot, url, key string) (models.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replErr != nil {
		return models.User{}, "", m.replErr
	}
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, "", repository.ErrUserNotFound
	}
	var old string
	switch slot {
	case models.SlotAvatar:
		old = u.AvatarKey
		u.AvatarURL, u.AvatarKey = url, key
	case models.SlotCover:
		if u.CoverKey != nil {
			old = *u.CoverKey
		}
		u.CoverURL, u.CoverKey = &url, &key
	}
	m.byID[id] = u
	m.record("persist:" + key)
	return u, old, nil
}

func (m *memUsers) OwnersByIDs(_ context.Context, ids []string) (map[string]models.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Owner{}
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out[id] = models.Owner{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.AvatarURL}
		}
	}
	return out, nil
}

type memSubs struct {
	mu    sync.Mutex
	edges map[[2]string]struct{}
}

func newMemSubs() *memSubs {
	return &memSubs{edges: map[[2]string]struct{}{}}
}

func (m *memSubs) Subscribe(_ context.Context, sub models.Subscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{sub.SubscriberID, sub.ChannelID}
	if _, ok := m.edges[k]; ok {
		return false, nil
	}
	m.edges[k] = struct{}{}
	return true, nil
}

func (m *memSubs) Unsubscribe(_ context.Context, subscriberID, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{subscriberID, channelID}
	_, ok := m.edges[k]
	delete(m.edges, k)
	return ok, nil
}

func (m *memSubs) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.edges {
		if k[1] == channelID {
			n++
		}
	}
	return n, nil
}

func (m *memSubs) CountSubscribedTo(_ context.Context, subscriberID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.edges {
		if k[0] == subscriberID {
			n++
		}
	}
	return n, nil
}

func (m *memSubs) Exists(_ context.Context, subscriberID, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[[2]string{subscriberID, channelID}]
	return ok, nil
}

type memHistory struct {
	items map[string][]models.HistoryItem
	seq   int64
}

func newMemHistory() *memHistory {
	return &memHistory{items: map[string][]models.HistoryItem{}}
}

func (m *memHistory) List(_ context.Context, userID string) ([]models.HistoryItem, error) {
	items := append([]models.HistoryItem(nil), m.items[userID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (m *memHistory) Append(_ context.Context, userID, videoID string) (models.HistoryItem, error) {
	m.seq++
	item := models.HistoryItem{Position: m.seq, VideoID: videoID, WatchedAt: time.Now()}
	m.items[userID] = append(m.items[userID], item)
	return item, nil
}

type memVideos map[string]models.Video

func (m memVideos) Exists(_ context.Context, id string) (bool, error) {
	_, ok := m[id]
	return ok, nil
}

func (m memVideos) ByIDs(_ context.Context, ids []string) (map[string]models.Video, error) {
	out := map[string]models.Video{}
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type memBlobs struct {
	mu     sync.Mutex
	puts   map[string][]byte
	putErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{puts: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (storage.Blob, error) {
	if m.putErr != nil {
		return storage.Blob{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.Blob{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts[key] = data
	return storage.Blob{URL: "https://cdn.test/" + key, Key: key}, nil
}

type memReleaser struct {
	mu       sync.Mutex
	err      error
	released []string
	events   *[]string
}

func (m *memReleaser) Release(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key)
	if m.events != nil {
		*m.events = append(*m.events, "release:"+key)
	}
	return m.err
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

func imageUpload(contentType string, data []byte) *Upload {
	return &Upload{
		Filename:    "pic",
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func pngUpload() *Upload {
	return imageUpload("image/png", pngBytes)
}
