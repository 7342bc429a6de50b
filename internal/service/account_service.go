package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/ids"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/security"
	"github.com/Milan-Sharma1/vsp-backend/internal/storage"
)

// AccountService owns registration, login and credential changes.
type AccountService struct {
	users  UserStore
	tokens *TokenService
	media  *MediaService
	hasher security.PasswordHasher
	verify func(password string, encodedHash []byte) bool
	// dummyHash is checked against when no user matches a login, so unknown
	// accounts cost the same hashing work as wrong passwords.
	dummyHash []byte
	log       zerolog.Logger
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

func NewAccountService(users UserStore, tokens *TokenService, media *MediaService, hasher security.PasswordHasher, log zerolog.Logger) *AccountService {
	dummy, err := hasher.Hash(ids.New())
	if err != nil {
		log.Warn().Err(err).Msg("build login dummy hash")
	}
	return &AccountService{
		users:     users,
		tokens:    tokens,
		media:     media,
		hasher:    hasher,
		verify:    security.VerifyPassword,
		dummyHash: dummy,
		log:       log,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Avatar   *Upload
	Cover    *Upload
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (models.PublicUser, error) {
	input.Username = normalize(input.Username)
	input.Email = normalize(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	if input.Username == "" || input.Email == "" || input.FullName == "" || strings.TrimSpace(input.Password) == "" {
		return models.PublicUser{}, errs.Validation("all fields are required")
	}
	if !usernamePattern.MatchString(input.Username) {
		return models.PublicUser{}, errs.Validation("username may only contain letters, digits, '.', '_' and '-'")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return models.PublicUser{}, errs.Validation("email is invalid")
	}
	if input.Avatar == nil {
		return models.PublicUser{}, errs.Validation("avatar is required")
	}

	exists, err := s.users.ExistsUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return models.PublicUser{}, errs.Conflict("user with email or username already exists")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	userID := ids.New()
	avatar, err := s.media.Accept(ctx, models.SlotAvatar, input.Avatar)
	if err != nil {
		return models.PublicUser{}, err
	}
	stored := []storage.Blob{avatar}

	var cover *storage.Blob
	if input.Cover != nil {
		blob, err := s.media.Accept(ctx, models.SlotCover, input.Cover)
		if err != nil {
			s.discard(ctx, userID, stored)
			return models.PublicUser{}, err
		}
		cover = &blob
		stored = append(stored, blob)
	}

	user := models.User{
		ID:           userID,
		Username:     input.Username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		AvatarURL:    avatar.URL,
		AvatarKey:    avatar.Key,
	}
	if cover != nil {
		user.CoverURL = &cover.URL
		user.CoverKey = &cover.Key
	}

	if err := s.users.Create(ctx, user); err != nil {
		s.discard(ctx, userID, stored)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return models.PublicUser{}, errs.Conflict("user with email or username already exists")
		case errors.Is(err, repository.ErrConstraint):
			return models.PublicUser{}, errs.Validation("username or email is not allowed")
		}
		return models.PublicUser{}, fmt.Errorf("create user: %w", err)
	}

	created, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("reload user: %w", err)
	}

	s.log.Info().Str("user_id", userID).Str("username", user.Username).Msg("user registered")
	return created.Public(), nil
}

func (s *AccountService) discard(ctx context.Context, userID string, blobs []storage.Blob) {
	for _, b := range blobs {
		slot := models.SlotAvatar
		if strings.HasPrefix(b.Key, string(models.SlotCover)+"/") {
			slot = models.SlotCover
		}
		s.media.Discard(ctx, userID, slot, b.Key, "registration failed")
	}
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Login checks the password and issues a new token pair. Unknown users and
// wrong passwords fail the same way.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (models.PublicUser, TokenPair, error) {
	username := normalize(input.Username)
	email := normalize(input.Email)
	if username == "" && email == "" {
		return models.PublicUser{}, TokenPair{}, errs.Validation("username or email is required")
	}

	user, err := s.FindByHandleOrEmail(ctx, username, email)
	if err != nil {
		return models.PublicUser{}, TokenPair{}, err
	}
	if user == nil {
		s.verify(input.Password, s.dummyHash)
		return models.PublicUser{}, TokenPair{}, errs.InvalidCredential("invalid user credentials")
	}
	if !s.VerifyPassword(*user, input.Password) {
		return models.PublicUser{}, TokenPair{}, errs.InvalidCredential("invalid user credentials")
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return models.PublicUser{}, TokenPair{}, err
	}
	return user.Public(), pair, nil
}

func (s *AccountService) Logout(ctx context.Context, userID string) error {
	return s.tokens.Revoke(ctx, userID)
}

func (s *AccountService) VerifyPassword(user models.User, plaintext string) bool {
	return s.verify(plaintext, user.PasswordHash)
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

func (s *AccountService) ChangePassword(ctx context.Context, userID string, input ChangePasswordInput) error {
	if input.OldPassword == "" || strings.TrimSpace(input.NewPassword) == "" {
		return errs.Validation("old and new password are required")
	}
	if input.NewPassword != input.ConfirmPassword {
		return errs.Validation("new password and confirm password must match")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errs.Unauthorized("unauthorized request", err)
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !s.VerifyPassword(user, input.OldPassword) {
		return errs.InvalidCredential("invalid old password")
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errs.Unauthorized("unauthorized request", err)
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// FindByHandleOrEmail returns nil without error when no user matches.
func (s *AccountService) FindByHandleOrEmail(ctx context.Context, handle, email string) (*models.User, error) {
	handle = normalize(handle)
	email = normalize(email)
	if handle == "" && email == "" {
		return nil, errs.Validation("username or email is required")
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, handle, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *AccountService) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.PublicUser{}, errs.NotFound("user not found")
		}
		return models.PublicUser{}, fmt.Errorf("load user: %w", err)
	}
	return user.Public(), nil
}

type UpdateAccountInput struct {
	FullName string
	Email    string
}

func (s *AccountService) UpdateAccount(ctx context.Context, userID string, input UpdateAccountInput) (models.PublicUser, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := normalize(input.Email)
	if fullName == "" || email == "" {
		return models.PublicUser{}, errs.Validation("all fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.PublicUser{}, errs.Validation("email is invalid")
	}

	user, err := s.users.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return models.PublicUser{}, errs.Conflict("email is already in use")
		case errors.Is(err, repository.ErrConstraint):
			return models.PublicUser{}, errs.Validation("email is not allowed")
		case errors.Is(err, repository.ErrUserNotFound):
			return models.PublicUser{}, errs.NotFound("user not found")
		}
		return models.PublicUser{}, fmt.Errorf("update account: %w", err)
	}
	return user.Public(), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
