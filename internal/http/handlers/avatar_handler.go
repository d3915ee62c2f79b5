// Avatar HTTP handlers.
//
//   - GET  /avatars  (static catalogue)
//   - GET  /avatar   (current choice of a user)
//   - POST /avatar   (store a choice from the catalogue)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AvatarsResponse lists the selectable avatars.
type AvatarsResponse struct {
	Avatars []string `json:"avatars"`
}

// AvatarResponse is a user's avatar; null when none was chosen.
type AvatarResponse struct {
	Avatar *string `json:"avatar" example:"/avatars/avatar1.png"`
}

// SetAvatarRequest selects an avatar for a user.
type SetAvatarRequest struct {
	Email  string `json:"email" example:"ali@example.com"`
	Avatar string `json:"avatar" example:"/avatars/avatar2.png"`
}

// ListAvatars godoc
// @ID       listAvatars
// @Summary  Avatar catalogue
// @Tags     Avatars
// @Produce  json
// @Success  200  {object}  handlers.AvatarsResponse
// @Router   /avatars [get]
func (h *Handlers) ListAvatars(c *gin.Context) {
	ok(c, http.StatusOK, AvatarsResponse{Avatars: h.avatars.List()})
}

// GetAvatar godoc
// @ID       getAvatar
// @Summary  Current avatar of a user
// @Tags     Avatars
// @Produce  json
// @Param    email  query     string  false  "User email (ignored with a bearer token)"
// @Success  200    {object}  handlers.AvatarResponse
// @Failure  400    {object}  handlers.ErrorResponse  "Email missing"
// @Failure  401    {object}  handlers.ErrorResponse  "Unknown user"
// @Router   /avatar [get]
func (h *Handlers) GetAvatar(c *gin.Context) {
	who := identity(c, c.Query("email"))
	if who == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailMissing)
		return
	}
	avatar, err := h.avatars.Get(c.Request.Context(), who)
	if err != nil {
		failWith(c, err)
		return
	}
	var out AvatarResponse
	if avatar != "" {
		out.Avatar = &avatar
	}
	ok(c, http.StatusOK, out)
}

// SetAvatar godoc
// @ID       setAvatar
// @Summary  Choose an avatar
// @Tags     Avatars
// @Accept   json
// @Param    body  body  handlers.SetAvatarRequest  true  "Choice"
// @Success  204
// @Failure  400  {object}  handlers.ErrorResponse  "Missing fields or unknown avatar"
// @Failure  401  {object}  handlers.ErrorResponse  "Unknown user"
// @Router   /avatar [post]
func (h *Handlers) SetAvatar(c *gin.Context) {
	var req SetAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadRequest)
		return
	}
	who := identity(c, req.Email)
	if who == "" || strings.TrimSpace(req.Avatar) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailAndAvatar)
		return
	}
	if err := h.avatars.Set(c.Request.Context(), who, req.Avatar); err != nil {
		failWith(c, err)
		return
	}
	noContent(c)
}
