package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-persian-chat/internal/domain"
)

func TestCreateUser_AndLookup(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "ali@example.com", "علی", "hash", "/avatars/avatar1.png", "tok1")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" || u.EmailVerified || u.VerificationToken == nil || *u.VerificationToken != "tok1" {
		t.Fatalf("unexpected user: %+v", u)
	}

	got, err := GetUserByEmail(ctx, db, "ali@example.com")
	if err != nil || got.ID != u.ID || got.Name != "علی" {
		t.Fatalf("GetUserByEmail: %+v, %v", got, err)
	}
	if _, err := GetUserByID(ctx, db, u.ID); err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if _, err := GetUserByEmail(ctx, db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	if _, err := CreateUser(ctx, db, "a@example.com", "", "h", "", "t1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateUser(ctx, db, "a@example.com", "", "h", "", "t2"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestConsumeVerificationToken_SingleUse(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "v@example.com", "", "h", "", "tok")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := ConsumeVerificationToken(ctx, db, "tok"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	got, _ := GetUserByID(ctx, db, u.ID)
	if !got.EmailVerified || got.VerificationToken != nil {
		t.Fatalf("expected verified with cleared token, got %+v", got)
	}
	if err := ConsumeVerificationToken(ctx, db, "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("replay: want ErrNotFound, got %v", err)
	}
	if err := ConsumeVerificationToken(ctx, db, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown: want ErrNotFound, got %v", err)
	}
}

func TestSetVerificationToken_OnlyUnverified(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "r@example.com", "", "h", "", "old")
	if err := SetVerificationToken(ctx, db, u.ID, "new"); err != nil {
		t.Fatalf("SetVerificationToken: %v", err)
	}
	if err := ConsumeVerificationToken(ctx, db, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old token should be replaced, got %v", err)
	}
	if err := ConsumeVerificationToken(ctx, db, "new"); err != nil {
		t.Fatalf("consume new: %v", err)
	}
	if err := SetVerificationToken(ctx, db, u.ID, "again"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("verified account: want ErrNotFound, got %v", err)
	}
}

func TestUpdateAvatar(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u := seedUser(t, db, "av@example.com")
	if err := UpdateAvatar(ctx, db, u.ID, "/avatars/avatar3.png"); err != nil {
		t.Fatalf("UpdateAvatar: %v", err)
	}
	got, _ := GetUserByID(ctx, db, u.ID)
	if got.Avatar != "/avatars/avatar3.png" {
		t.Fatalf("avatar not stored: %+v", got)
	}
	if err := UpdateAvatar(ctx, db, "missing", "/x.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
