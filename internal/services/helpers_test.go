package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/llm"
	"github.com/tbourn/go-persian-chat/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

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

// seedAccount inserts a user with password "secret" at minimum bcrypt cost.
func seedAccount(t *testing.T, db *gorm.DB, email string, verified bool) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := repo.CreateUser(context.Background(), db, email, "Test", string(hash), "", "tok-"+uuid.NewString())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if verified {
		if err := repo.ConsumeVerificationToken(context.Background(), db, *u.VerificationToken); err != nil {
			t.Fatalf("verify: %v", err)
		}
		u.EmailVerified = true
		u.VerificationToken = nil
	}
	return u
}

func listTurns(t *testing.T, db *gorm.DB, userID string) []domain.ChatMessage {
	t.Helper()
	msgs, err := repo.ListMessages(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	return msgs
}

// ---------- provider stubs ----------

type stubProvider struct {
	mu    sync.Mutex
	calls [][]llm.Message

	reply     func(n int, msgs []llm.Message) (string, error)
	openErr   error
	newReader func(ctx context.Context) llm.ChunkReader
}

func (p *stubProvider) record(msgs []llm.Message) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, msgs)
	return len(p.calls)
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *stubProvider) lastCall() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func (p *stubProvider) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	n := p.record(msgs)
	if p.reply == nil {
		return fmt.Sprintf("پاسخ %d", n), nil
	}
	return p.reply(n, msgs)
}

func (p *stubProvider) Stream(ctx context.Context, msgs []llm.Message) (llm.ChunkReader, error) {
	p.record(msgs)
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.newReader(ctx), nil
}

type step struct {
	text string
	err  error
	// block waits for ctx cancellation before yielding ctx.Err().
	block bool
}

type scriptReader struct {
	ctx    context.Context
	steps  []step
	closed chan struct{}
	once   sync.Once
}

func newScriptReader(ctx context.Context, steps ...step) *scriptReader {
	return &scriptReader{ctx: ctx, steps: steps, closed: make(chan struct{})}
}

func (r *scriptReader) Next() (string, error) {
	if len(r.steps) == 0 {
		return "", io.EOF
	}
	s := r.steps[0]
	r.steps = r.steps[1:]
	if s.block {
		<-r.ctx.Done()
		return "", r.ctx.Err()
	}
	return s.text, s.err
}

func (r *scriptReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

var errBoom = errors.New("boom")
