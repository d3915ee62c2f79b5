// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the message store for conversation turns.
package repo

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/domain"
)

var lastSeq atomic.Int64

// nextSeq returns a strictly increasing tiebreaker seeded from the wall clock,
// so it also keeps increasing across restarts.
func nextSeq(now time.Time) int64 {
	for {
		prev := lastSeq.Load()
		next := now.UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// AppendMessage inserts one immutable turn for userID.
func AppendMessage(ctx context.Context, db *gorm.DB, userID, role, content string) (*domain.ChatMessage, error) {
	now := time.Now().UTC()
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
		Seq:       nextSeq(now),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns all turns of userID ordered (CreatedAt ASC, Seq ASC).
func ListMessages(ctx context.Context, db *gorm.DB, userID string) ([]domain.ChatMessage, error) {
	out := []domain.ChatMessage{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, seq ASC").
		Find(&out).Error
	return out, err
}

// ListRecentMessages returns the last n turns of userID, still oldest first.
// n <= 0 yields an empty slice.
func ListRecentMessages(ctx context.Context, db *gorm.DB, userID string, n int) ([]domain.ChatMessage, error) {
	out := []domain.ChatMessage{}
	if n <= 0 {
		return out, nil
	}
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, seq DESC").
		Limit(n).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetMessage fetches a turn by ID, scoped to its owner.
func GetMessage(ctx context.Context, db *gorm.DB, id, userID string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM chat_messages WHERE user_id = ?", userID).Scan(&total).Error
	return total, err
}

// PreviousMessage returns the turn stored immediately before m in the same
// conversation, or ErrNotFound when m is the first one.
func PreviousMessage(ctx context.Context, db *gorm.DB, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	var prev domain.ChatMessage
	err := db.WithContext(ctx).
		Where("user_id = ? AND (created_at < ? OR (created_at = ? AND seq < ?))", m.UserID, m.CreatedAt, m.CreatedAt, m.Seq).
		Order("created_at DESC, seq DESC").
		First(&prev).Error
	if err != nil {
		return nil, err
	}
	return &prev, nil
}
