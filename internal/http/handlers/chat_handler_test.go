package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/llm"
)

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		out []sseEvent
		cur sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.name != "" || cur.data != "" {
				out = append(out, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event:"):
			cur.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if cur.name != "" {
		out = append(out, cur)
	}
	return out
}

func TestChat_Success(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	w := e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: "سلام"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	res := decode[ChatResponse](t, w)
	if res.Reply == "" || res.Message == nil || res.Message.Role != domain.RoleAI {
		t.Fatalf("unexpected response %+v", res)
	}
	if res.Reply != res.Message.Content {
		t.Fatalf("reply %q != stored %q", res.Reply, res.Message.Content)
	}
	if res.UserMessage == nil || res.UserMessage.Content != "سلام" {
		t.Fatalf("user turn = %+v", res.UserMessage)
	}
	if res.History != nil {
		t.Fatalf("history must be omitted unless requested")
	}
}

func TestChat_IncludeHistory(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")
	e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: "اول"})

	w := e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: "دوم", IncludeHistory: true})
	res := decode[ChatResponse](t, w)
	if len(res.History) != 4 {
		t.Fatalf("history len = %d, want 4", len(res.History))
	}
	if res.History[0].Content != "اول" || res.History[2].Content != "دوم" {
		t.Fatalf("history out of order: %+v", res.History)
	}
}

func TestChat_Validation(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	er := wantError(t, e.do(http.MethodPost, "/chat", ChatRequest{Message: "سلام"}), http.StatusBadRequest, ErrCodeBadRequest)
	if er.Message != msgEmailMissing {
		t.Fatalf("message = %q", er.Message)
	}
	wantError(t, e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: "  \n "}), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: strings.Repeat("ب", 201)}), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/chat", ChatRequest{Email: "nobody@example.com", Message: "سلام"}), http.StatusUnauthorized, ErrCodeUnauthorized)

	if e.provider.calls != 0 {
		t.Fatalf("provider called %d times", e.provider.calls)
	}
}

func TestChat_UpstreamErrors(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	e.provider.err = errors.New("provider 500")
	wantError(t, e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: "سلام"}), http.StatusBadGateway, ErrCodeUpstreamUnavailable)

	e.provider.err = llm.ErrMissingCredential
	w := e.do(http.MethodPost, "/chat", ChatRequest{Email: "ali@example.com", Message: "سلام"})
	wantError(t, w, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable)
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After missing")
	}
}

func TestChat_IdempotentReplay(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")
	req := ChatRequest{Email: "ali@example.com", Message: "سلام"}

	w1 := e.do(http.MethodPost, "/chat", req, "Idempotency-Key", "k-1")
	w2 := e.do(http.MethodPost, "/chat", req, "Idempotency-Key", "k-1")
	if w1.Code != http.StatusOK || w2.Code != http.StatusOK {
		t.Fatalf("status %d / %d", w1.Code, w2.Code)
	}
	if w1.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first call must not be a replay")
	}
	if w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("second call should be replayed")
	}
	r1, r2 := decode[ChatResponse](t, w1), decode[ChatResponse](t, w2)
	if r1.Message.ID != r2.Message.ID {
		t.Fatalf("replay returned a different turn")
	}
	if e.provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", e.provider.calls)
	}

	wantError(t, e.do(http.MethodPost, "/chat", req, "Idempotency-Key", "bad key!"), http.StatusBadRequest, "bad_idempotency_key")

	other := ChatRequest{Email: "ali@example.com", Message: "خداحافظ"}
	wantError(t, e.do(http.MethodPost, "/chat", other, "Idempotency-Key", "k-1"), http.StatusUnprocessableEntity, ErrCodeIdempotencyMismatch)
	if e.provider.calls != 1 {
		t.Fatalf("reused key reached the provider: calls = %d", e.provider.calls)
	}
}

func TestChat_BearerIdentity(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	login := decode[LoginResponse](t, e.do(http.MethodPost, "/auth/login", LoginRequest{Email: "ali@example.com", Password: "secret"}))
	if login.Token == "" {
		t.Fatalf("no token issued")
	}

	// The bearer wins over a body email naming somebody else.
	w := e.do(http.MethodPost, "/chat", ChatRequest{Email: "mallory@example.com", Message: "سلام"},
		"Authorization", "Bearer "+login.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	w = e.do(http.MethodPost, "/chat", ChatRequest{Message: "سلام"}, "Authorization", "Bearer not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid bearer status = %d", w.Code)
	}
}

func TestChatStream_Complete(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")
	e.provider.chunks = []string{"سلام", "! ", "خوبی؟"}

	w := e.do(http.MethodPost, "/chat/stream", ChatRequest{Email: "ali@example.com", Message: "سلام"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type = %q", ct)
	}
	events := parseSSE(t, w.Body.String())
	if len(events) != 4 {
		t.Fatalf("events = %+v", events)
	}
	var text strings.Builder
	for _, ev := range events[:3] {
		if ev.name != "delta" {
			t.Fatalf("want delta, got %q", ev.name)
		}
		var d struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(ev.data), &d); err != nil {
			t.Fatalf("delta data %q: %v", ev.data, err)
		}
		text.WriteString(d.Text)
	}
	if events[3].name != "done" {
		t.Fatalf("last event = %q", events[3].name)
	}
	var done StreamDone
	if err := json.Unmarshal([]byte(events[3].data), &done); err != nil {
		t.Fatalf("done data: %v", err)
	}
	if done.Reply != "سلام! خوبی؟" || done.Reply != text.String() {
		t.Fatalf("reply = %q, deltas = %q", done.Reply, text.String())
	}

	hist := decode[HistoryResponse](t, e.do(http.MethodGet, "/chat/history?email=ali@example.com", nil))
	if len(hist.History) != 2 || hist.History[1].Content != done.Reply {
		t.Fatalf("history = %+v", hist.History)
	}
}

func TestChatStream_InterruptedStoresNoReply(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")
	e.provider.chunks = []string{"سلام"}
	e.provider.streamErr = errors.New("connection reset")

	w := e.do(http.MethodPost, "/chat/stream", ChatRequest{Email: "ali@example.com", Message: "سلام"})
	events := parseSSE(t, w.Body.String())
	if len(events) != 2 || events[0].name != "delta" || events[1].name != "error" {
		t.Fatalf("events = %+v", events)
	}
	var er ErrorResponse
	if err := json.Unmarshal([]byte(events[1].data), &er); err != nil {
		t.Fatalf("error data: %v", err)
	}
	if er.Code != ErrCodeStreamInterrupted {
		t.Fatalf("code = %q", er.Code)
	}

	hist := decode[HistoryResponse](t, e.do(http.MethodGet, "/chat/history?email=ali@example.com", nil))
	if len(hist.History) != 1 || hist.History[0].Role != domain.RoleUser {
		t.Fatalf("only the user turn should be stored: %+v", hist.History)
	}
}

func TestChatStream_ErrorsBeforeFirstByteAreJSON(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	wantError(t, e.do(http.MethodPost, "/chat/stream", ChatRequest{Email: "ali@example.com", Message: ""}), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/chat/stream", ChatRequest{Message: "سلام"}), http.StatusBadRequest, ErrCodeBadRequest)

	e.provider.err = llm.ErrMissingCredential
	wantError(t, e.do(http.MethodPost, "/chat/stream", ChatRequest{Email: "ali@example.com", Message: "سلام"}), http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable)
}
