// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, identity, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/docs"
	"github.com/tbourn/go-persian-chat/internal/auth"
	"github.com/tbourn/go-persian-chat/internal/config"
	"github.com/tbourn/go-persian-chat/internal/http/handlers"
	"github.com/tbourn/go-persian-chat/internal/http/middleware"
	"github.com/tbourn/go-persian-chat/internal/mail"
	"github.com/tbourn/go-persian-chat/internal/repo"
	"github.com/tbourn/go-persian-chat/internal/services"
	"github.com/tbourn/go-persian-chat/internal/turnlock"
)

const (
	maxBodyBytes  = 1 << 20
	searchMaxDocs = 2000
	streamRoute   = "/chat/stream"
)

// Deps are the collaborators the services are built from.
type Deps struct {
	Provider services.Provider
	Mailer   mail.Mailer
	Locker   turnlock.Locker
	// Issuer signs and verifies bearer tokens; nil disables them.
	Issuer *auth.Issuer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers (so error responses stay readable cross-origin)
//  8. Identity: optional bearer token
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per identity/IP, bypass on replay)
//  11. gzip (never on the event stream)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.Use(middleware.Identity(deps.Issuer))
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(db),
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIdentityOrIP()).
		Skip(func(c *gin.Context) bool {
			p := c.FullPath()
			return p == "/health" || p == "/metrics"
		})
	r.Use(rl.Handler())

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		joinPath(apiBase, streamRoute),
		"/metrics",
	})))

	// Fallbacks
	r.NoRoute(handlers.NotFound)
	r.NoMethod(handlers.MethodNotAllowed)

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/provider/mailer/locker
	relaySvc := &services.RelayService{
		DB:              db,
		Provider:        deps.Provider,
		Locker:          deps.Locker,
		MaxMessageRunes: cfg.Relay.MaxMessageRunes,
		HistoryTurns:    cfg.Relay.HistoryTurns,
		IdempotencyTTL:  cfg.IdempotencyTTL,
	}
	historySvc := &services.HistoryService{DB: db, SearchMaxDocs: searchMaxDocs}
	authSvc := &services.AuthService{
		DB:         db,
		Mailer:     deps.Mailer,
		Issuer:     deps.Issuer,
		BcryptCost: cfg.Auth.BcryptCost,
		VerifyURL:  VerifyURL(cfg),
		Avatars:    cfg.Avatars,
	}
	avatarSvc := &services.AvatarService{DB: db, Avatars: cfg.Avatars}
	h := handlers.New(relaySvc, historySvc, authSvc, avatarSvc)

	api := groupWithPrefix(r, apiBase)
	{
		// Identity
		authGroup := api.Group("/auth", middleware.NoStore())
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/verify", h.Verify)
		authGroup.POST("/verify/resend", h.ResendVerification)

		// Avatars
		api.GET("/avatars", h.ListAvatars)
		api.GET("/avatar", h.GetAvatar)
		api.POST("/avatar", h.SetAvatar)

		// Relay
		api.POST("/chat", h.Chat)
		api.POST(streamRoute, h.ChatStream)

		// History
		api.GET("/chat/history", h.History)
		api.GET("/chat/history/search", h.SearchHistory)
	}
}

// VerifyURL is the absolute URL of the verification endpoint; mailed links
// point at the same route that consumes them.
func VerifyURL(cfg config.Config) string {
	return strings.TrimRight(cfg.BaseURL, "/") + joinPath(cfg.APIBasePath, "/auth/verify")
}

// idempotencyLookup resolves the caller and checks for a live record.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, identity, key string, now time.Time) (bool, error) {
		u, err := repo.GetUserByEmail(ctx, db, services.NormalizeEmail(identity))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		rec, err := repo.GetIdempotency(ctx, db, u.ID, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// echoes allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderIdempotencyKey, "If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", "Retry-After",
			middleware.HeaderIdempotencyReplayed,
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Force ACAO: * even without an Origin header (simple health checks).
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body size to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	return strings.TrimRight(prefix, "/") + p
}
