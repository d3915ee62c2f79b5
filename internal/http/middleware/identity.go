// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity from an optional bearer token.
// Requests without a bearer fall through untouched; handlers then read the
// identity (an email) from the request itself.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-persian-chat/internal/auth"
)

const (
	ctxKeyIdentity = "identity"
	ctxKeyUserID   = "userID"
)

// Identity validates "Authorization: Bearer <token>" with issuer and stores
// the token's email and user ID in the context. An invalid bearer is
// rejected with 401. A nil issuer disables bearer handling entirely.
func Identity(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if issuer == nil {
			c.Next()
			return
		}
		raw := c.GetHeader("Authorization")
		if raw == "" {
			c.Next()
			return
		}
		scheme, token, found := strings.Cut(raw, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c)
			return
		}
		claims, err := issuer.Parse(strings.TrimSpace(token))
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(ctxKeyIdentity, claims.Email)
		c.Set(ctxKeyUserID, claims.UserID)
		c.Next()
	}
}

// IdentityFrom returns the email established by Identity, if any.
func IdentityFrom(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdentity)
	return s, s != ""
}

// UserIDFrom returns the user ID established by Identity, if any.
func UserIDFrom(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyUserID)
	return s, s != ""
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="chat"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    "توکن نامعتبر است",
	})
}
