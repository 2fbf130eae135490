package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clahub/clahub/internal/user"
)

// ErrInvalidKey is returned when the provided API key does not match any
// active user.
var ErrInvalidKey = errors.New("invalid or revoked API key")

// Identity is the authenticated caller.
type Identity struct {
	UserID   uuid.UUID
	Username string
	IsAdmin  bool
}

// Service provides API-key authentication for CLA managers and admins.
type Service struct {
	users      user.Repository
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(users user.Repository, bcryptCost int) *Service {
	return &Service{users: users, bcryptCost: bcryptCost}
}

// GenerateKey creates a new API key. Returns the raw key, its prefix (first
// 8 chars), and the bcrypt hash. The raw key is 32 random bytes,
// base64url-encoded, prefixed with "cla_".
func (s *Service) GenerateKey() (rawKey, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = "cla_" + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawKey[:8]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	hash = string(hashBytes)

	return rawKey, prefix, hash, nil
}

// Authenticate resolves a raw API key to an Identity. It extracts the
// prefix, looks up candidates, and bcrypt-compares each one.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*Identity, error) {
	if len(rawKey) < 8 {
		return nil, ErrInvalidKey
	}

	candidates, err := s.users.FindByKeyPrefix(ctx, rawKey[:8])
	if err != nil {
		return nil, fmt.Errorf("finding users by key prefix: %w", err)
	}

	for _, u := range candidates {
		if u.ApiKeyHash == nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(*u.ApiKeyHash), []byte(rawKey)) == nil {
			return &Identity{
				UserID:   u.ID,
				Username: u.Username,
				IsAdmin:  u.IsAdmin,
			}, nil
		}
	}

	return nil, ErrInvalidKey
}
