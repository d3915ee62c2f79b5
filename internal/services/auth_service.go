// Package services – AuthService
//
// AuthService owns account creation, email verification and login. Passwords
// are stored as bcrypt hashes only. Verification tokens are random, stored on
// the user row while pending, and cleared by the single conditional update
// that marks the email verified, so each token can be consumed once.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/auth"
	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/mail"
	"github.com/tbourn/go-persian-chat/internal/repo"
)

const (
	tokenBytes = 32
	// bcrypt ignores input past 72 bytes; longer passwords are rejected.
	maxPasswordBytes = 72
)

// AuthService implements signup, verification and login.
type AuthService struct {
	DB     *gorm.DB
	Mailer mail.Mailer
	// Issuer signs bearer tokens on login. Nil disables them.
	Issuer *auth.Issuer

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// VerifyURL is the absolute URL of the verification endpoint; the token
	// is added as the "token" query parameter.
	VerifyURL string
	// Avatars is the catalogue a signup avatar must belong to.
	Avatars []string
	// MinPasswordLen is the minimum password length in runes; 0 only
	// requires a non-empty password.
	MinPasswordLen int

	dummyOnce sync.Once
	dummyHash []byte
}

// SignupInput carries the fields of a signup request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Avatar   string
}

// SignupResult is the created account. VerificationSent is false when the
// verification mail could not be delivered; the account exists regardless.
type SignupResult struct {
	User             *domain.User
	VerificationSent bool
}

// LoginResult is an authenticated account plus an optional bearer token.
type LoginResult struct {
	User  *domain.User
	Token string
}

// Signup creates an unverified account and mails its verification link.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Signup")
	defer span.End()

	email, err := parseEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}
	avatar := strings.TrimSpace(in.Avatar)
	if avatar != "" && !slices.Contains(s.Avatars, avatar) {
		return nil, ErrInvalidAvatar
	}
	name := strings.TrimSpace(in.Name)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, err := newVerificationToken()
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, email, name, string(hash), avatar, token)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrEmailAlreadyUsed
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	sent := true
	if err := s.sendVerification(ctx, u.Email, token); err != nil {
		sent = false
		log.Error().Err(err).Str("user_id", u.ID).Msg("send verification mail")
	}
	return &SignupResult{User: u, VerificationSent: sent}, nil
}

// IssueVerification replaces the pending token of an unverified user and
// returns it. Verified accounts yield repo.ErrNotFound.
func (s *AuthService) IssueVerification(ctx context.Context, u *domain.User) (string, error) {
	token, err := newVerificationToken()
	if err != nil {
		return "", err
	}
	if err := repo.SetVerificationToken(ctx, s.DB, u.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

// ResendVerification reissues and mails a token for an unverified account.
// Unknown and already verified addresses return nil without side effects so
// the endpoint cannot be used to probe for accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "ResendVerification")
	defer span.End()

	addr, err := parseEmail(email)
	if err != nil {
		return err
	}
	u, err := repo.GetUserByEmail(ctx, s.DB, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return nil
	}
	token, err := s.IssueVerification(ctx, u)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.sendVerification(ctx, u.Email, token)
}

// ConsumeVerification verifies the account holding token. Unknown and
// already used tokens yield ErrInvalidToken.
func (s *AuthService) ConsumeVerification(ctx context.Context, token string) error {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "ConsumeVerification")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	err := repo.ConsumeVerificationToken(ctx, s.DB, token)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

// Login checks credentials. A wrong password yields ErrInvalidCredentials
// whether or not the account is verified; only a correct password on an
// unverified account yields ErrNotVerified.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	addr := NormalizeEmail(email)
	u, err := repo.GetUserByEmail(ctx, s.DB, addr)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if u == nil {
		// Same bcrypt work as a real account.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return nil, ErrNotVerified
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	res := &LoginResult{User: u}
	if s.Issuer != nil {
		tok, err := s.Issuer.Generate(u.ID, u.Email)
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		res.Token = tok
	}
	return res, nil
}

// VerificationLink builds the link mailed for token.
func (s *AuthService) VerificationLink(token string) string {
	base := s.VerifyURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func (s *AuthService) sendVerification(ctx context.Context, to, token string) error {
	if s.Mailer == nil {
		return errors.New("no mailer configured")
	}
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "sendVerification",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	return s.Mailer.SendVerification(ctx, to, s.VerificationLink(token))
}

func (s *AuthService) checkPassword(pw string) error {
	if pw == "" || len(pw) > maxPasswordBytes {
		return ErrWeakPassword
	}
	if s.MinPasswordLen > 0 && len([]rune(pw)) < s.MinPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

func (s *AuthService) cost() int {
	if s.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), s.cost())
	})
	return s.dummyHash
}

func newVerificationToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
