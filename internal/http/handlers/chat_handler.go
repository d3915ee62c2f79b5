// Chat relay HTTP handlers.
//
//   - POST /chat         (buffered relay; optional idempotency replay)
//   - POST /chat/stream  (server-sent events relay)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/http/middleware"
	"github.com/tbourn/go-persian-chat/internal/services"
)

// ChatRequest is the relay payload. Email is ignored when the request
// carries a valid bearer token.
type ChatRequest struct {
	Email          string `json:"email" example:"ali@example.com"`
	Message        string `json:"message" example:"سلام"`
	IncludeHistory bool   `json:"include_history" example:"false"`
}

// HistoryEntry is one turn as exposed by the API.
type HistoryEntry struct {
	Content   string    `json:"content" example:"سلام"`
	Role      string    `json:"role" example:"user"`
	CreatedAt time.Time `json:"createdAt" example:"2025-01-01T12:00:00Z"`
}

// ChatResponse is the buffered relay result.
type ChatResponse struct {
	Reply       string              `json:"reply" example:"سلام! چطور می‌توانم کمک کنم؟"`
	Message     *domain.ChatMessage `json:"message"`
	UserMessage *domain.ChatMessage `json:"user_message"`
	History     []HistoryEntry      `json:"history,omitempty"`
}

// StreamDone is the payload of the final "done" event.
type StreamDone struct {
	Reply   string              `json:"reply"`
	Message *domain.ChatMessage `json:"message"`
}

func toEntries(msgs []domain.ChatMessage) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryEntry{Content: m.Content, Role: m.Role, CreatedAt: m.CreatedAt})
	}
	return out
}

// Chat godoc
// @ID          chat
// @Summary     Relay a message to the assistant
// @Description Stores the user turn, asks the model for a Persian reply and
// @Description stores it. Turns of the same user are serialised. With an
// @Description Idempotency-Key a repeated request returns the original
// @Description reply and sets Idempotency-Replayed: true.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header    string                false  "Optional idempotency key"
// @Param       body             body      handlers.ChatRequest  true   "Message"
// @Success     200              {object}  handlers.ChatResponse
// @Failure     400              {object}  handlers.ErrorResponse  "Missing email or invalid message"
// @Failure     401              {object}  handlers.ErrorResponse  "Unknown or unverified user"
// @Failure     422              {object}  handlers.ErrorResponse  "Idempotency key reused with a different message"
// @Failure     502              {object}  handlers.ErrorResponse  "Upstream unavailable"
// @Failure     503              {object}  handlers.ErrorResponse  "Upstream not configured"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadRequest)
		return
	}
	who := identity(c, req.Email)
	if who == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailMissing)
		return
	}

	var opts []services.RelayOption
	if key, ok := middleware.GetIdempotencyKey(c); ok {
		opts = append(opts, services.WithIdempotencyKey(key))
	}
	res, err := h.relay.Relay(c.Request.Context(), who, req.Message, opts...)
	if err != nil {
		failWith(c, err)
		return
	}
	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}

	out := ChatResponse{
		Reply:       res.Reply.Content,
		Message:     res.Reply,
		UserMessage: res.UserMessage,
	}
	if req.IncludeHistory {
		msgs, err := h.history.History(c.Request.Context(), who)
		if err != nil {
			failWith(c, err)
			return
		}
		out.History = toEntries(msgs)
	}
	ok(c, http.StatusOK, out)
}

// ChatStream godoc
// @ID          chatStream
// @Summary     Relay a message and stream the reply
// @Description Same as /chat but the reply arrives as server-sent events:
// @Description one "delta" event per chunk, then "done" with the stored
// @Description reply or "error" with {code, message}. An interrupted
// @Description stream stores nothing for the AI turn.
// @Tags        Chat
// @Accept      json
// @Produce     text/event-stream
// @Param       body  body  handlers.ChatRequest  true  "Message"
// @Success     200   {string}  string  "event stream"
// @Failure     400   {object}  handlers.ErrorResponse  "Missing email or invalid message"
// @Failure     401   {object}  handlers.ErrorResponse  "Unknown or unverified user"
// @Failure     502   {object}  handlers.ErrorResponse  "Upstream unavailable"
// @Router      /chat/stream [post]
func (h *Handlers) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadRequest)
		return
	}
	who := identity(c, req.Email)
	if who == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgEmailMissing)
		return
	}

	// Errors before the first byte are plain JSON responses.
	rep, err := h.relay.RelayStream(c.Request.Context(), who, req.Message)
	if err != nil {
		failWith(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// Chunks closes when the stream ends, including after a client
	// disconnect cancels the request context.
	for chunk := range rep.Chunks {
		c.SSEvent("delta", gin.H{"text": chunk})
		c.Writer.Flush()
	}

	reply, err := rep.Wait()
	switch {
	case err == nil:
		c.SSEvent("done", StreamDone{Reply: reply.Content, Message: reply})
	case errors.Is(err, services.ErrStreamCancelled):
		middleware.LoggerFrom(c).Info().Err(err).Msg("stream cancelled by client")
		return
	default:
		info := classify(err)
		middleware.LoggerFrom(c).Warn().Err(err).Str("code", info.code).Msg("stream failed")
		c.SSEvent("error", ErrorResponse{
			RequestID: c.Writer.Header().Get("X-Request-ID"),
			Code:      info.code,
			Message:   info.msg,
		})
	}
	c.Writer.Flush()
}
