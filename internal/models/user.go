package models

import "time"

type User struct {
	ID               string
	Username         string
	Email            string
	FullName         string
	PasswordHash     []byte
	AvatarURL        string
	AvatarKey        string
	CoverURL         *string
	CoverKey         *string
	RefreshTokenHash []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is the only user projection that leaves the service layer. It
// carries no credential material and no storage handles.
type PublicUser struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	cover := ""
	if u.CoverURL != nil {
		cover = *u.CoverURL
	}
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.AvatarURL,
		CoverImage: cover,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Owner is the public face of a user embedded in other resources.
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

type MediaSlot string

const (
	SlotAvatar MediaSlot = "avatar"
	SlotCover  MediaSlot = "cover"
)

func (s MediaSlot) Valid() bool {
	return s == SlotAvatar || s == SlotCover
}
