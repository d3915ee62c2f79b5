package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-persian-chat/internal/domain"
)

func TestHistoryStats_NoTable(t *testing.T) {
	if _, _, err := HistoryStats(context.Background(), newTestDB(t), "u1"); err == nil {
		t.Fatalf("expected error due to missing table")
	}
}

func TestHistoryStats_EmptyThenGrowing(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.ChatMessage{})
	ctx := context.Background()
	u := seedUser(t, db, "s@example.com")

	n, latest, err := HistoryStats(ctx, db, u.ID)
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("empty: n=%d latest=%v err=%v", n, latest, err)
	}

	if _, err := AppendMessage(ctx, db, u.ID, domain.RoleUser, "a"); err != nil {
		t.Fatalf("append: %v", err)
	}
	last, err := AppendMessage(ctx, db, u.ID, domain.RoleAI, "b")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	n, latest, err = HistoryStats(ctx, db, u.ID)
	if err != nil || n != 2 || latest == nil {
		t.Fatalf("after append: n=%d latest=%v err=%v", n, latest, err)
	}
	if d := latest.Sub(last.CreatedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("latest mismatch: %v vs %v", latest, last.CreatedAt)
	}
}
