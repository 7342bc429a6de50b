package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicOmitsSecrets(t *testing.T) {
	cover := "https://cdn.example/cover.png"
	coverKey := "cover/2024/01/01/x.png"
	u := User{
		ID:               "u1",
		Username:         "alice",
		Email:            "a@x.com",
		PasswordHash:     []byte("$argon2id$..."),
		AvatarURL:        "https://cdn.example/a.png",
		AvatarKey:        "avatar/2024/01/01/a.png",
		CoverURL:         &cover,
		CoverKey:         &coverKey,
		RefreshTokenHash: []byte{1, 2, 3},
	}

	body, err := json.Marshal(u.Public())
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, `"coverImage":"https://cdn.example/cover.png"`)
	assert.NotContains(t, s, "argon2id")
	assert.NotContains(t, s, "password")
	assert.NotContains(t, s, "refresh")
	assert.NotContains(t, s, coverKey)
}

func TestMediaSlotValid(t *testing.T) {
	assert.True(t, SlotAvatar.Valid())
	assert.True(t, SlotCover.Valid())
	assert.False(t, MediaSlot("banner").Valid())
}
