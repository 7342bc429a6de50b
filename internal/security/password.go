package security

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces a self-describing hash: the algorithm and its
// salt/cost parameters are encoded in the output, so VerifyPassword needs
// nothing but the stored bytes.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
}

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

const argon2Prefix = "$argon2id$"

var ErrUnknownHasher = errors.New("unknown password hasher")

func NewPasswordHasher(name string, bcryptCost int) (PasswordHasher, error) {
	switch name {
	case "argon2id":
		return Argon2Hasher{Params: DefaultArgon2Params}, nil
	case "bcrypt":
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
		return BcryptHasher{Cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}

type Argon2Hasher struct {
	Params Argon2Params
}

func (h Argon2Hasher) Hash(password string) ([]byte, error) {
	params := h.Params
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	encoded := fmt.Sprintf("%sv=%d$t=%d,m=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		params.Time, params.Memory, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return []byte(encoded), nil
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return hash, nil
}

// VerifyPassword reports whether password matches the stored hash. A hash
// that cannot be parsed never matches.
func VerifyPassword(password string, encodedHash []byte) bool {
	switch {
	case bytes.HasPrefix(encodedHash, []byte(argon2Prefix)):
		return verifyArgon2(password, string(encodedHash))
	case bytes.HasPrefix(encodedHash, []byte("$2")):
		return bcrypt.CompareHashAndPassword(encodedHash, []byte(password)) == nil
	default:
		return false
	}
}

func verifyArgon2(password, encoded string) bool {
	// "", "argon2id", "v=19", "t=3,m=65536,p=2", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	params, ok := parseArgon2Params(parts[3])
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

func parseArgon2Params(s string) (Argon2Params, bool) {
	var params Argon2Params
	for _, kv := range strings.Split(s, ",") {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			return params, false
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return params, false
		}
		switch key {
		case "t":
			params.Time = uint32(n)
		case "m":
			params.Memory = uint32(n)
		case "p":
			if n > 255 {
				return params, false
			}
			params.Threads = uint8(n)
		default:
			return params, false
		}
	}
	return params, params.Time > 0 && params.Memory > 0 && params.Threads > 0
}
