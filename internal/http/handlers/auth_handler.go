// Auth HTTP handlers.
//
//   - POST /auth/signup         (create an unverified account, mail the link)
//   - POST /auth/login          (check credentials, optionally issue a bearer)
//   - GET  /auth/verify         (consume a verification token)
//   - POST /auth/verify/resend  (reissue the verification link)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/services"
)

// SignupRequest is the signup payload.
type SignupRequest struct {
	Name     string `json:"name" example:"علی"`
	Email    string `json:"email" binding:"required" example:"ali@example.com"`
	Password string `json:"password" binding:"required" example:"pa55word"`
	Avatar   string `json:"avatar" example:"/avatars/avatar1.png"`
}

// SignupResponse carries the new account. VerificationSent is false when the
// mail could not be delivered; the client may call the resend endpoint.
type SignupResponse struct {
	User             *domain.User `json:"user"`
	VerificationSent bool         `json:"verification_sent"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"ali@example.com"`
	Password string `json:"password" binding:"required" example:"pa55word"`
}

// LoginResponse carries the account and, when enabled, a bearer token.
type LoginResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

// VerifyResponse confirms a consumed token.
type VerifyResponse struct {
	Verified bool `json:"verified" example:"true"`
}

// ResendRequest asks for a new verification link.
type ResendRequest struct {
	Email string `json:"email" binding:"required" example:"ali@example.com"`
}

// Signup godoc
// @ID          signup
// @Summary     Create an account
// @Description Creates an unverified account and emails a verification link.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SignupRequest   true  "Signup payload"
// @Success     201   {object}  handlers.SignupResponse
// @Failure     400   {object}  handlers.ErrorResponse   "Invalid email, password or avatar"
// @Failure     409   {object}  handlers.ErrorResponse   "Email already registered"
// @Failure     500   {object}  handlers.ErrorResponse   "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.Signup(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Avatar:   req.Avatar,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusCreated, SignupResponse{User: res.User, VerificationSent: res.VerificationSent})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Checks credentials. A wrong password is always 401; a correct
// @Description password on an unverified account is 403.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest   true  "Credentials"
// @Success     200   {object}  handlers.LoginResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     403   {object}  handlers.ErrorResponse  "Email not verified"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{User: res.User, Token: res.Token})
}

// Verify godoc
// @ID          verifyEmail
// @Summary     Verify an email address
// @Description Consumes the token from the verification link. Tokens are single-use.
// @Tags        Auth
// @Produce     json
// @Param       token  query     string  true  "Verification token"
// @Success     200    {object}  handlers.VerifyResponse
// @Failure     400    {object}  handlers.ErrorResponse  "Invalid or used token"
// @Router      /auth/verify [get]
func (h *Handlers) Verify(c *gin.Context) {
	if err := h.auth.ConsumeVerification(c.Request.Context(), c.Query("token")); err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, VerifyResponse{Verified: true})
}

// ResendVerification godoc
// @ID          resendVerification
// @Summary     Resend the verification link
// @Description Always 202 for well-formed emails so accounts cannot be probed.
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.ResendRequest  true  "Email"
// @Success     202
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /auth/verify/resend [post]
func (h *Handlers) ResendVerification(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailMissing)
		return
	}
	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		failWith(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
