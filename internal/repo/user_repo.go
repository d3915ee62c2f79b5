// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the credential store: repository
// functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside a transaction. They follow the "thin repository" approach: no
// business rules, only persistence and query composition. Email arguments are
// expected to be normalized by the caller.
//
// Error semantics:
//   - A missing user yields ErrNotFound.
//   - A unique violation on email yields ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can match either.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts an unverified account carrying the given pending
// verification token. The ID is a random UUID and timestamps are UTC.
func CreateUser(ctx context.Context, db *gorm.DB, email, name, passwordHash, avatar, token string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Avatar:       avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if token != "" {
		u.VerificationToken = &token
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUserByEmail fetches a user by normalized email, or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID fetches a user by primary key, or ErrNotFound.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetVerificationToken replaces the pending token of an unverified user.
// Verified accounts are left untouched and yield ErrNotFound.
func SetVerificationToken(ctx context.Context, db *gorm.DB, userID, token string) error {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND email_verified = ?", userID, false).
		Updates(map[string]any{
			"verification_token": token,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeVerificationToken marks the account holding token as verified and
// clears the token in a single conditional UPDATE, so concurrent consumers
// cannot both succeed. It returns ErrNotFound when no row matched.
func ConsumeVerificationToken(ctx context.Context, db *gorm.DB, token string) error {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("verification_token = ?", token).
		Updates(map[string]any{
			"email_verified":     true,
			"verification_token": gorm.Expr("NULL"),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAvatar stores the avatar reference on the user row.
func UpdateAvatar(ctx context.Context, db *gorm.DB, userID, avatar string) error {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"avatar": avatar, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation matches the translated GORM error as well as the
// plain-text errors some drivers return for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "duplicate entry")
}
