package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-persian-chat/internal/auth"
	"github.com/tbourn/go-persian-chat/internal/repo"
)

type sentMail struct {
	to, link string
}

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *stubMailer) SendVerification(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, link: link})
	return nil
}

func (m *stubMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatalf("no token in %q", link)
	}
	return tok
}

func newAuthService(t *testing.T) (*AuthService, *stubMailer) {
	t.Helper()
	m := &stubMailer{}
	return &AuthService{
		DB:         newSvcDB(t),
		Mailer:     m,
		BcryptCost: bcrypt.MinCost,
		VerifyURL:  "http://localhost:8080/api/v1/auth/verify",
		Avatars:    []string{"/avatars/avatar1.png", "/avatars/avatar2.png"},
	}, m
}

func TestAuth_SignupCreatesUnverifiedAccountAndMails(t *testing.T) {
	s, m := newAuthService(t)

	res, err := s.Signup(context.Background(), SignupInput{
		Name: " علی ", Email: " Ali@Example.COM ", Password: "secret", Avatar: "/avatars/avatar2.png",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	u := res.User
	if u.Email != "ali@example.com" || u.Name != "علی" || u.Avatar != "/avatars/avatar2.png" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.EmailVerified || u.VerificationToken == nil {
		t.Fatal("new account must be unverified with a pending token")
	}
	if u.PasswordHash == "secret" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret")) != nil {
		t.Fatal("password must be stored as a bcrypt hash")
	}
	if !res.VerificationSent {
		t.Fatal("VerificationSent should be true")
	}

	mail := m.last(t)
	if mail.to != "ali@example.com" {
		t.Fatalf("mailed %q", mail.to)
	}
	if !strings.HasPrefix(mail.link, "http://localhost:8080/api/v1/auth/verify?token=") {
		t.Fatalf("unexpected link %q", mail.link)
	}
	if tok := tokenFromLink(t, mail.link); tok != *u.VerificationToken || len(tok) != 64 {
		t.Fatalf("link token %q does not match stored token", tok)
	}
}

func TestAuth_SignupValidation(t *testing.T) {
	s, _ := newAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   SignupInput
		want error
	}{
		{"bad email", SignupInput{Email: "not-an-email", Password: "x"}, ErrInvalidEmail},
		{"display name", SignupInput{Email: "Ali <ali@example.com>", Password: "x"}, ErrInvalidEmail},
		{"empty password", SignupInput{Email: "a@example.com"}, ErrWeakPassword},
		{"long password", SignupInput{Email: "a@example.com", Password: strings.Repeat("x", 73)}, ErrWeakPassword},
		{"unknown avatar", SignupInput{Email: "a@example.com", Password: "x", Avatar: "/evil.png"}, ErrInvalidAvatar},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Signup(ctx, tc.in)
			if !errors.Is(err, tc.want) || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	s.MinPasswordLen = 8
	if _, err := s.Signup(ctx, SignupInput{Email: "a@example.com", Password: "short"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("want ErrWeakPassword, got %v", err)
	}
}

func TestAuth_SignupDuplicateEmail(t *testing.T) {
	s, _ := newAuthService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, SignupInput{Email: "dup@example.com", Password: "x"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := s.Signup(ctx, SignupInput{Email: "DUP@example.com", Password: "y"}); !errors.Is(err, ErrEmailAlreadyUsed) {
		t.Fatalf("want ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestAuth_SignupMailFailureKeepsAccount(t *testing.T) {
	s, m := newAuthService(t)
	m.err = errBoom

	res, err := s.Signup(context.Background(), SignupInput{Email: "nomail@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.VerificationSent {
		t.Fatal("VerificationSent should be false")
	}
	if _, err := repo.GetUserByEmail(context.Background(), s.DB, "nomail@example.com"); err != nil {
		t.Fatalf("account should exist: %v", err)
	}
}

func TestAuth_VerificationTokenIsSingleUse(t *testing.T) {
	s, m := newAuthService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, SignupInput{Email: "once@example.com", Password: "x"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	tok := tokenFromLink(t, m.last(t).link)

	if err := s.ConsumeVerification(ctx, tok); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	u, _ := repo.GetUserByEmail(ctx, s.DB, "once@example.com")
	if !u.EmailVerified || u.VerificationToken != nil {
		t.Fatalf("want verified with cleared token, got %+v", u)
	}
	if err := s.ConsumeVerification(ctx, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replay: want ErrInvalidToken, got %v", err)
	}
	if err := s.ConsumeVerification(ctx, "  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank: want ErrInvalidToken, got %v", err)
	}
}

func TestAuth_ConcurrentConsumeOnlyOneWins(t *testing.T) {
	s, m := newAuthService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, SignupInput{Email: "race@example.com", Password: "x"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	tok := tokenFromLink(t, m.last(t).link)

	const n = 6
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.ConsumeVerification(ctx, tok)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidToken):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly one successful consume, got %d", wins)
	}
}

func TestAuth_LoginOutcomes(t *testing.T) {
	s, m := newAuthService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, SignupInput{Email: "login@example.com", Password: "secret"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if _, err := s.Login(ctx, "login@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unverified + wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Login(ctx, "login@example.com", "secret"); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("unverified + right password: want ErrNotVerified, got %v", err)
	}
	if _, err := s.Login(ctx, "ghost@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", err)
	}

	if err := s.ConsumeVerification(ctx, tokenFromLink(t, m.last(t).link)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := s.Login(ctx, "login@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("verified + wrong password: want ErrInvalidCredentials, got %v", err)
	}
	res, err := s.Login(ctx, " LOGIN@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.Email != "login@example.com" || res.Token != "" {
		t.Fatalf("unexpected login result %+v", res)
	}
}

func TestAuth_LoginIssuesBearerWhenConfigured(t *testing.T) {
	s, _ := newAuthService(t)
	s.Issuer = auth.NewIssuer("test-secret", time.Hour)
	u := seedAccount(t, s.DB, "jwt@example.com", true)

	res, err := s.Login(context.Background(), u.Email, "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := s.Issuer.Parse(res.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != u.ID || claims.Email != u.Email {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAuth_ResendVerification(t *testing.T) {
	s, m := newAuthService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, SignupInput{Email: "again@example.com", Password: "x"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	oldTok := tokenFromLink(t, m.last(t).link)

	if err := s.ResendVerification(ctx, "again@example.com"); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	newTok := tokenFromLink(t, m.last(t).link)
	if newTok == oldTok {
		t.Fatal("resend should rotate the token")
	}
	if err := s.ConsumeVerification(ctx, oldTok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old token: want ErrInvalidToken, got %v", err)
	}
	if err := s.ConsumeVerification(ctx, newTok); err != nil {
		t.Fatalf("new token: %v", err)
	}

	sent := len(m.sent)
	if err := s.ResendVerification(ctx, "again@example.com"); err != nil {
		t.Fatalf("verified resend: %v", err)
	}
	if err := s.ResendVerification(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown resend: %v", err)
	}
	if len(m.sent) != sent {
		t.Fatal("no mail expected for verified or unknown accounts")
	}
}

func TestAuth_VerificationLink(t *testing.T) {
	s := &AuthService{VerifyURL: "https://chat.example/api/v1/auth/verify"}
	if got := s.VerificationLink("abc"); got != "https://chat.example/api/v1/auth/verify?token=abc" {
		t.Fatalf("got %q", got)
	}
	s.VerifyURL = "https://chat.example/verify?lang=fa"
	if got := s.VerificationLink("abc"); got != "https://chat.example/verify?lang=fa&token=abc" {
		t.Fatalf("got %q", got)
	}
}
