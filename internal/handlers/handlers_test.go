package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Milan-Sharma1/vsp-backend/internal/config"
	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/security"
	"github.com/Milan-Sharma1/vsp-backend/internal/service"
	"github.com/Milan-Sharma1/vsp-backend/internal/session"
	"github.com/Milan-Sharma1/vsp-backend/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type userTable struct {
	mu   sync.Mutex
	byID map[string]models.User
}

func (m *userTable) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.CreatedAt, user.UpdatedAt = time.Now(), time.Now()
	m.byID[user.ID] = user
	return nil
}

func (m *userTable) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *userTable) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *userTable) ExistsUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	_, err := m.FindByUsernameOrEmail(ctx, username, email)
	return err == nil, nil
}

func (m *userTable) UpdatePassword(_ context.Context, id string, hash []byte) error {
	return m.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (m *userTable) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	if err := m.mutate(id, func(u *models.User) { u.FullName, u.Email = fullName, email }); err != nil {
		return models.User{}, err
	}
	return m.GetByID(ctx, id)
}

func (m *userTable) SetRefreshTokenHash(_ context.Context, id string, hash []byte) error {
	return m.mutate(id, func(u *models.User) { u.RefreshTokenHash = hash })
}

func (m *userTable) SwapRefreshTokenHash(_ context.Context, id string, expected, next []byte) (bool, error) {
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

func (m *userTable) ReplaceMedia(_ context.Context, id string, slot models.MediaSlot, url, key string) (models.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	return u, old, nil
}

func (m *userTable) OwnersByIDs(_ context.Context, ids []string) (map[string]models.Owner, error) {
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

func (m *userTable) mutate(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	m.byID[id] = u
	return nil
}

type edges struct {
	mu  sync.Mutex
	set map[[2]string]struct{}
}

func (e *edges) Subscribe(_ context.Context, sub models.Subscription) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := [2]string{sub.SubscriberID, sub.ChannelID}
	if _, ok := e.set[k]; ok {
		return false, nil
	}
	e.set[k] = struct{}{}
	return true, nil
}

func (e *edges) Unsubscribe(_ context.Context, subscriberID, channelID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := [2]string{subscriberID, channelID}
	_, ok := e.set[k]
	delete(e.set, k)
	return ok, nil
}

func (e *edges) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int64
	for k := range e.set {
		if k[1] == channelID {
			n++
		}
	}
	return n, nil
}

func (e *edges) CountSubscribedTo(_ context.Context, subscriberID string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int64
	for k := range e.set {
		if k[0] == subscriberID {
			n++
		}
	}
	return n, nil
}

func (e *edges) Exists(_ context.Context, subscriberID, channelID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.set[[2]string{subscriberID, channelID}]
	return ok, nil
}

type noHistory struct{}

func (noHistory) List(context.Context, string) ([]models.HistoryItem, error) { return nil, nil }

func (noHistory) Append(_ context.Context, _, videoID string) (models.HistoryItem, error) {
	return models.HistoryItem{Position: 1, VideoID: videoID, WatchedAt: time.Now()}, nil
}

type noVideos struct{}

func (noVideos) Exists(context.Context, string) (bool, error) { return false, nil }

func (noVideos) ByIDs(context.Context, []string) (map[string]models.Video, error) {
	return map[string]models.Video{}, nil
}

type blobSink struct {
	mu       sync.Mutex
	released []string
}

func (b *blobSink) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (storage.Blob, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return storage.Blob{}, err
	}
	return storage.Blob{URL: "https://cdn.test/" + key, Key: key}, nil
}

func (b *blobSink) Release(_ context.Context, key, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = append(b.released, key)
	return nil
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

type testServer struct {
	router *gin.Engine
	users  *userTable
	blobs  *blobSink
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret-for-tests",
			JWTRefreshSecret: "refresh-secret-for-tests",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    240 * time.Hour,
			CookieSecure:     true,
		},
	}
	log := zerolog.Nop()
	users := &userTable{byID: map[string]models.User{}}
	blobs := &blobSink{}
	hasher := security.Argon2Hasher{Params: security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}}

	tokens := service.NewTokenService(users, cfg.Security, log)
	media := service.NewMediaService(users, blobs, blobs, 1<<20, log)
	svc := Services{
		Accounts: service.NewAccountService(users, tokens, media, hasher, log),
		Tokens:   tokens,
		Profiles: service.NewProfileService(users, &edges{set: map[[2]string]struct{}{}}, noHistory{}, noVideos{}, log),
		Media:    media,
		Sessions: session.NewAuthenticator(tokens, users, log),
	}

	router := gin.New()
	New(log, cfg, svc, nil, nil).Register(router.Group("/api"))
	return &testServer{router: router, users: users, blobs: blobs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func newRegisterRequest(t *testing.T, username, email string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("username", username))
	require.NoError(t, w.WriteField("email", email))
	require.NoError(t, w.WriteField("fullName", "Alice Liddell"))
	require.NoError(t, w.WriteField("password", "wonderland"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(newRegisterRequest(t, "alice", "alice@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")
	user := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "", user["coverImage"])

	rec = s.do(newRegisterRequest(t, "Alice", "other@example.com"))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode(t, rec)["error"])

	rec = s.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"username":"alice","password":"wrong"}`))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credential", decode(t, rec)["error"])
	assert.Empty(t, rec.Result().Cookies())

	rec = s.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"email":"ALICE@example.com","password":"wonderland"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")

	access := cookieNamed(rec, session.AccessCookie)
	refresh := cookieNamed(rec, session.RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
	}
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, access.Value, data["accessToken"])
	assert.Equal(t, refresh.Value, data["refreshToken"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["data"].(map[string]any)["username"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(refresh)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := cookieNamed(rec, session.RefreshCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	rec = s.do(jsonRequest(http.MethodPost, "/api/v1/users/refresh-token", fmt.Sprintf(`{"refreshToken":%q}`, refresh.Value)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(access)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cookieNamed(rec, session.RefreshCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(rotated)
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestProtectedRoutesRejectUniformly(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing"},
		{name: "malformed", header: "Bearer not-a-jwt"},
		{name: "wrong scheme", header: "Basic abc"},
	}

	var bodies []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := s.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			bodies = append(bodies, rec.Body.String())
		})
	}
	for _, b := range bodies[1:] {
		assert.JSONEq(t, bodies[0], b)
	}
}

func TestSubscriptionFlow(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(newRegisterRequest(t, "alice", "alice@example.com")).Code)
	require.Equal(t, http.StatusCreated, s.do(newRegisterRequest(t, "bob", "bob@example.com")).Code)

	rec := s.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"username":"bob","password":"wonderland"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieNamed(rec, session.AccessCookie)
	require.NotNil(t, access)

	call := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(access)
		return s.do(req)
	}

	assert.Equal(t, http.StatusCreated, call(http.MethodPost, "/api/v1/users/c/alice/subscription").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/api/v1/users/c/alice/subscription").Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/v1/users/c/bob/subscription").Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodPost, "/api/v1/users/c/nobody/subscription").Code)

	rec = call(http.MethodGet, "/api/v1/users/c/ALICE")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), profile["subscribersCount"])
	assert.Equal(t, true, profile["isSubscribed"])

	rec = call(http.MethodDelete, "/api/v1/users/c/alice/subscription")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(http.MethodGet, "/api/v1/users/c/alice")
	profile = decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(0), profile["subscribersCount"])
	assert.Equal(t, false, profile["isSubscribed"])

	rec = call(http.MethodGet, "/api/v1/users/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["data"])

	assert.Equal(t, http.StatusNotFound, call(http.MethodPost, "/api/v1/users/history/missing").Code)
}

func TestUpdateAvatarReleasesPrevious(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(newRegisterRequest(t, "alice", "alice@example.com")).Code)
	original, err := s.users.FindByUsernameOrEmail(context.Background(), "alice", "")
	require.NoError(t, err)

	rec := s.do(jsonRequest(http.MethodPost, "/api/v1/users/login", `{"username":"alice","password":"wonderland"}`))
	access := cookieNamed(rec, session.AccessCookie)
	require.NotNil(t, access)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("avatar", "new.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.AddCookie(access)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated, err := s.users.GetByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.NotEqual(t, original.AvatarKey, updated.AvatarKey)
	assert.Equal(t, []string{original.AvatarKey}, s.blobs.released)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.Validation("bad"), http.StatusBadRequest},
		{errs.Conflict("taken"), http.StatusConflict},
		{errs.InvalidCredential("nope"), http.StatusUnauthorized},
		{errs.Unauthorized("nope", nil), http.StatusUnauthorized},
		{errs.NotFound("gone"), http.StatusNotFound},
		{errs.Upstream("storage down", errors.New("dial")), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", errs.Upstream("storage down", nil)), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestRespondErrorHidesCause(t *testing.T) {
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		respondError(c, fmt.Errorf("query users: %w", errors.New("password=hunter2")))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"upstream","message":"internal error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	cfg := &config.AppConfig{Environment: "test"}
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	cases := []struct {
		name   string
		db     Pinger
		cache  Pinger
		status int
		body   string
	}{
		{"all up", ok, ok, http.StatusOK, `{"status":"ok","database":"ok","cache":"ok","environment":"test"}`},
		{"cache down", ok, down, http.StatusServiceUnavailable, `{"status":"degraded","database":"ok","cache":"error","environment":"test"}`},
		{"no cache", ok, nil, http.StatusOK, `{"status":"ok","database":"ok","cache":"disabled","environment":"test"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/healthz", New(zerolog.Nop(), cfg, Services{}, tc.db, tc.cache).Health)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}
