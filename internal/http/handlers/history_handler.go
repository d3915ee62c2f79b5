// History HTTP handlers.
//
//   - GET /chat/history         (full conversation, weak ETag)
//   - GET /chat/history/search  (ranked turns for a query)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-persian-chat/internal/services"
	"github.com/tbourn/go-persian-chat/internal/utils"
)

const (
	defaultSearchK = 5
	maxSearchK     = 50
)

// HistoryResponse is the conversation, oldest turn first.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

// SearchResponse is the ranked search result.
type SearchResponse struct {
	Results []services.SearchHit `json:"results"`
}

// History godoc
// @ID          history
// @Summary     Conversation history
// @Description Returns all turns of the user, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chat
// @Produce     json
// @Param       email          query   string  false  "User email (ignored with a bearer token)"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"history:abc:2:1700000000\")
// @Success     200  {object}  handlers.HistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current history"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Email missing"
// @Failure     401  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /chat/history [get]
func (h *Handlers) History(c *gin.Context) {
	ctx := c.Request.Context()
	who := identity(c, c.Query("email"))
	if who == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailMissing)
		return
	}

	// ETag pre-check (best effort); errors surface from History below.
	if v, err := h.history.Version(ctx, who); err == nil {
		var ts int64
		if !v.Latest.IsZero() {
			ts = v.Latest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"history:%s:%d:%d"`, v.UserID, v.Count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	msgs, err := h.history.History(ctx, who)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, HistoryResponse{History: toEntries(msgs)})
}

// SearchHistory godoc
// @ID          searchHistory
// @Summary     Search the conversation
// @Description Ranks the user's turns against q by token overlap and returns the top k with snippets.
// @Tags        Chat
// @Produce     json
// @Param       email  query  string  false  "User email (ignored with a bearer token)"
// @Param       q      query  string  true   "Query"
// @Param       k      query  int     false  "Number of results"  minimum(1) maximum(50) default(5)
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Email or query missing"
// @Failure     401  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /chat/history/search [get]
func (h *Handlers) SearchHistory(c *gin.Context) {
	who := identity(c, c.Query("email"))
	if who == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailMissing)
		return
	}
	q := c.Query("q")
	k := utils.BoundedInt(c.Query("k"), defaultSearchK, 1, maxSearchK)

	hits, err := h.history.Search(c.Request.Context(), who, q, k)
	if err != nil {
		failWith(c, err)
		return
	}
	if hits == nil {
		hits = []services.SearchHit{}
	}
	ok(c, http.StatusOK, SearchResponse{Results: hits})
}
