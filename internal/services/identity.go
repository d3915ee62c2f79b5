package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/repo"
)

// resolveUser maps an email identity to its account. Unknown identities, and
// unverified ones when requireVerified is set, yield ErrUnauthorized.
func resolveUser(ctx context.Context, db *gorm.DB, identity string, requireVerified bool) (*domain.User, error) {
	email := NormalizeEmail(identity)
	if email == "" {
		return nil, ErrUnauthorized
	}
	u, err := repo.GetUserByEmail(ctx, db, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if requireVerified && !u.EmailVerified {
		return nil, ErrUnauthorized
	}
	return u, nil
}
