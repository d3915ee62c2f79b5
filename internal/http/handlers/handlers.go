// Package handlers exposes the public API on top of the application
// services. Handlers are transport-thin: they bind and validate input,
// resolve the caller's identity, delegate to a service and translate the
// result (or error) into an HTTP response.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/http/middleware"
	"github.com/tbourn/go-persian-chat/internal/services"
)

//
// Service contracts (context-aware)
//

// RelayService runs chat turns.
type RelayService interface {
	Relay(ctx context.Context, identity, message string, opts ...services.RelayOption) (*services.RelayResult, error)
	RelayStream(ctx context.Context, identity, message string) (*services.StreamReply, error)
}

// HistoryService reads conversations.
type HistoryService interface {
	History(ctx context.Context, identity string) ([]domain.ChatMessage, error)
	Version(ctx context.Context, identity string) (*services.HistoryVersion, error)
	Search(ctx context.Context, identity, query string, k int) ([]services.SearchHit, error)
}

// AuthService manages accounts.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.SignupResult, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	ConsumeVerification(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
}

// AvatarService manages avatar selection.
type AvatarService interface {
	List() []string
	Get(ctx context.Context, identity string) (string, error)
	Set(ctx context.Context, identity, avatar string) error
}

//
// Handler wiring
//

// Handlers groups all endpoints.
type Handlers struct {
	relay   RelayService
	history HistoryService
	auth    AuthService
	avatars AvatarService
}

// New binds handlers to their services.
func New(relay RelayService, history HistoryService, auth AuthService, avatars AvatarService) *Handlers {
	return &Handlers{relay: relay, history: history, auth: auth, avatars: avatars}
}

// identity returns the bearer-verified email when present, otherwise the
// email the client sent. An empty result means no identity was supplied.
func identity(c *gin.Context, claimed string) string {
	if email, ok := middleware.IdentityFrom(c); ok {
		return email
	}
	return strings.TrimSpace(claimed)
}
