package services

import (
	"context"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/repo"
)

// AvatarService exposes the static avatar catalogue and the per-user choice.
type AvatarService struct {
	DB      *gorm.DB
	Avatars []string
}

// List returns a copy of the catalogue.
func (s *AvatarService) List() []string {
	return slices.Clone(s.Avatars)
}

// Get returns the avatar stored for identity (may be empty).
func (s *AvatarService) Get(ctx context.Context, identity string) (string, error) {
	u, err := resolveUser(ctx, s.DB, identity, false)
	if err != nil {
		return "", err
	}
	return u.Avatar, nil
}

// Set stores avatar for identity. It must belong to the catalogue.
func (s *AvatarService) Set(ctx context.Context, identity, avatar string) error {
	avatar = strings.TrimSpace(avatar)
	if !slices.Contains(s.Avatars, avatar) {
		return ErrInvalidAvatar
	}
	u, err := resolveUser(ctx, s.DB, identity, false)
	if err != nil {
		return err
	}
	return repo.UpdateAvatar(ctx, s.DB, u.ID, avatar)
}
