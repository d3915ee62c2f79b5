package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-persian-chat/internal/auth"
	"github.com/tbourn/go-persian-chat/internal/http/middleware"
	"github.com/tbourn/go-persian-chat/internal/llm"
	"github.com/tbourn/go-persian-chat/internal/repo"
	"github.com/tbourn/go-persian-chat/internal/services"
	"github.com/tbourn/go-persian-chat/internal/turnlock"
)

var testAvatars = []string{"/avatars/avatar1.png", "/avatars/avatar2.png"}

// ---------- fakes ----------

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	err    error
	chunks []string
	// streamErr is returned after chunks are exhausted instead of io.EOF.
	streamErr error
}

func (p *fakeProvider) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("پاسخ %d به: %s", p.calls, msgs[len(msgs)-1].Content), nil
}

func (p *fakeProvider) Stream(_ context.Context, _ []llm.Message) (llm.ChunkReader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &sliceReader{chunks: append([]string(nil), p.chunks...), end: p.streamErr}, nil
}

type sliceReader struct {
	chunks []string
	end    error
}

func (r *sliceReader) Next() (string, error) {
	if len(r.chunks) == 0 {
		if r.end != nil {
			return "", r.end
		}
		return "", io.EOF
	}
	s := r.chunks[0]
	r.chunks = r.chunks[1:]
	return s, nil
}

func (r *sliceReader) Close() error { return nil }

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendVerification(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[to] = link
	return nil
}

func (m *captureMailer) tokenFor(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.links[email])
	if err != nil || u.Query().Get("token") == "" {
		t.Fatalf("no verification link for %s: %q", email, m.links[email])
	}
	return u.Query().Get("token")
}

// ---------- environment ----------

type env struct {
	t        *testing.T
	db       *gorm.DB
	provider *fakeProvider
	mailer   *captureMailer
	issuer   *auth.Issuer
	engine   *gin.Engine
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{
		t:        t,
		db:       newTestDB(t),
		provider: &fakeProvider{},
		mailer:   &captureMailer{},
		issuer:   auth.NewIssuer("test-secret", time.Hour),
	}
	relay := &services.RelayService{
		DB:              e.db,
		Provider:        e.provider,
		Locker:          turnlock.NewLocal(),
		MaxMessageRunes: 200,
		HistoryTurns:    10,
	}
	history := &services.HistoryService{DB: e.db}
	authSvc := &services.AuthService{
		DB:         e.db,
		Mailer:     e.mailer,
		Issuer:     e.issuer,
		BcryptCost: bcrypt.MinCost,
		VerifyURL:  "http://localhost:8080/api/v1/auth/verify",
		Avatars:    testAvatars,
	}
	avatars := &services.AvatarService{DB: e.db, Avatars: testAvatars}
	h := New(relay, history, authSvc, avatars)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity(e.issuer))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/verify", h.Verify)
	r.POST("/auth/verify/resend", h.ResendVerification)
	r.GET("/avatars", h.ListAvatars)
	r.GET("/avatar", h.GetAvatar)
	r.POST("/avatar", h.SetAvatar)
	r.POST("/chat", h.Chat)
	r.POST("/chat/stream", h.ChatStream)
	r.GET("/chat/history", h.History)
	r.GET("/chat/history/search", h.SearchHistory)
	e.engine = r
	return e
}

// seed creates a verified account with password "secret".
func (e *env) seed(email string) {
	e.t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	u, err := repo.CreateUser(context.Background(), e.db, email, "", string(hash), "", "tok-"+uuid.NewString())
	if err != nil {
		e.t.Fatalf("CreateUser: %v", err)
	}
	if err := repo.ConsumeVerificationToken(context.Background(), e.db, *u.VerificationToken); err != nil {
		e.t.Fatalf("verify: %v", err)
	}
}

func (e *env) do(method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code = %q, want %q", er.Code, code)
	}
	if er.Message == "" {
		t.Fatalf("empty error message")
	}
	return er
}
