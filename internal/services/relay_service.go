// Package services – RelayService
//
// RelayService accepts a user message, persists it, forwards it to the
// upstream completion provider and persists the reply. It supports a
// buffered mode (one request, one reply) and a streamed mode where text
// deltas are forwarded as they arrive.
//
// Sequence contract: the user turn is durable before the provider is called,
// and the AI turn is written only after a complete provider response. A
// failed provider call therefore leaves exactly one user turn behind. When a
// Locker is configured, relays for the same user run one at a time so turns
// stay strictly alternating.
//
// Observability: both entry points open OpenTelemetry spans and record the
// outcome on observability.RelayTurns.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/llm"
	"github.com/tbourn/go-persian-chat/internal/observability"
	"github.com/tbourn/go-persian-chat/internal/repo"
	"github.com/tbourn/go-persian-chat/internal/turnlock"
)

// DefaultSystemPrompt is the fixed Persian directive prepended to every
// upstream request.
const DefaultSystemPrompt = "شما یک دستیار فارسی هستید. پاسخ‌ها را کامل، مودبانه و فارسی بده. اگر سوال طولانی بود، پاسخ را به طور کامل و با جزئیات ارائه کن."

const defaultIdempotencyTTL = 24 * time.Hour

// Provider is the upstream completion contract. *llm.Client implements it.
type Provider interface {
	// Complete returns the full reply text.
	Complete(ctx context.Context, msgs []llm.Message) (string, error)
	// Stream opens a streamed completion. Errors that happen before the
	// first chunk (non-2xx, missing credential, open circuit) are returned
	// here rather than from the reader.
	Stream(ctx context.Context, msgs []llm.Message) (llm.ChunkReader, error)
}

// RelayService runs the relay pipeline.
type RelayService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Provider produces replies.
	Provider Provider
	// Locker serializes relays per user. Nil disables serialization.
	Locker turnlock.Locker

	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
	// MaxMessageRunes caps the normalized message length; 0 disables it.
	MaxMessageRunes int
	// HistoryTurns is how many prior turns are sent as context; 0 sends only
	// the current message.
	HistoryTurns int
	// IdempotencyTTL is how long a buffered reply can be replayed by key.
	IdempotencyTTL time.Duration
}

// RelayResult is the outcome of a buffered relay.
type RelayResult struct {
	UserMessage *domain.ChatMessage
	Reply       *domain.ChatMessage
	// Replayed is true when the result was served from an idempotency record.
	Replayed bool
}

// RelayOption customizes a single Relay call.
type RelayOption func(*relayOptions)

type relayOptions struct {
	idempotencyKey string
}

// WithIdempotencyKey makes a buffered relay replayable: a retry with the same
// key returns the stored reply without calling the provider again.
func WithIdempotencyKey(key string) RelayOption {
	return func(o *relayOptions) { o.idempotencyKey = strings.TrimSpace(key) }
}

// Relay runs one buffered turn for identity.
func (s *RelayService) Relay(ctx context.Context, identity, message string, opts ...RelayOption) (*RelayResult, error) {
	var o relayOptions
	for _, opt := range opts {
		opt(&o)
	}

	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "Relay",
		trace.WithAttributes(
			attribute.Int("message.runes", utf8.RuneCountInString(message)),
			attribute.Bool("idempotency.key", o.idempotencyKey != ""),
		),
	)
	defer span.End()

	outcome := observability.OutcomeError
	defer func() {
		observability.RelayTurns.WithLabelValues(observability.ModeBuffered, outcome).Inc()
		span.SetAttributes(attribute.String("relay.outcome", outcome))
	}()

	msg, err := validateMessage(message, s.MaxMessageRunes)
	if err != nil {
		outcome = observability.OutcomeRejected
		return nil, err
	}
	user, err := resolveUser(ctx, s.DB, identity, true)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			outcome = observability.OutcomeRejected
		}
		return nil, err
	}

	release, err := s.locker().Acquire(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	defer release()

	if o.idempotencyKey != "" {
		res, err := s.replay(ctx, user.ID, o.idempotencyKey, requestHash(msg))
		if errors.Is(err, ErrIdempotencyMismatch) {
			outcome = observability.OutcomeRejected
			return nil, err
		}
		if err == nil {
			outcome = observability.OutcomeReplayed
			return res, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	prompt, err := s.buildPrompt(ctx, user.ID, msg)
	if err != nil {
		return nil, err
	}
	userMsg, err := repo.AppendMessage(ctx, s.DB, user.ID, domain.RoleUser, msg)
	if err != nil {
		return nil, err
	}

	text, err := s.Provider.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		outcome = observability.OutcomeUpstream
		if ctx.Err() != nil {
			outcome = observability.OutcomeCancelled
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream")
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		outcome = observability.OutcomeCancelled
		return nil, err
	}

	wctx := context.WithoutCancel(ctx)
	reply, err := repo.AppendMessage(wctx, s.DB, user.ID, domain.RoleAI, text)
	if err != nil {
		return nil, err
	}

	if o.idempotencyKey != "" {
		ttl := s.IdempotencyTTL
		if ttl <= 0 {
			ttl = defaultIdempotencyTTL
		}
		if _, err := repo.CreateIdempotency(wctx, s.DB, user.ID, o.idempotencyKey, reply.ID, requestHash(msg), 200, ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			log.Warn().Err(err).Str("message_id", reply.ID).Msg("store idempotency record")
		}
	}

	outcome = observability.OutcomeOK
	return &RelayResult{UserMessage: userMsg, Reply: reply}, nil
}

// StreamReply is a streamed relay in progress. Callers must drain Chunks or
// cancel the context passed to RelayStream; Wait blocks until the stream has
// ended and reports the persisted AI turn.
type StreamReply struct {
	// UserMessage is the persisted user turn.
	UserMessage *domain.ChatMessage
	// Chunks yields text deltas in arrival order and is closed at the end.
	Chunks <-chan string

	done  chan struct{}
	reply *domain.ChatMessage
	err   error
}

// Wait returns the persisted AI turn, or ErrStreamInterrupted,
// ErrStreamCancelled or ErrUpstreamUnavailable.
func (r *StreamReply) Wait() (*domain.ChatMessage, error) {
	<-r.done
	return r.reply, r.err
}

// RelayStream runs one streamed turn for identity. Validation, identity and
// provider connection errors are returned directly; failures after the first
// byte are reported by Wait.
func (s *RelayService) RelayStream(ctx context.Context, identity, message string) (*StreamReply, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "RelayStream",
		trace.WithAttributes(attribute.Int("message.runes", utf8.RuneCountInString(message))),
	)

	fail := func(outcome string, err error) (*StreamReply, error) {
		observability.RelayTurns.WithLabelValues(observability.ModeStream, outcome).Inc()
		span.SetAttributes(attribute.String("relay.outcome", outcome))
		span.End()
		return nil, err
	}

	msg, err := validateMessage(message, s.MaxMessageRunes)
	if err != nil {
		return fail(observability.OutcomeRejected, err)
	}
	user, err := resolveUser(ctx, s.DB, identity, true)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fail(observability.OutcomeRejected, err)
		}
		return fail(observability.OutcomeError, err)
	}

	release, err := s.locker().Acquire(ctx, user.ID)
	if err != nil {
		return fail(observability.OutcomeError, fmt.Errorf("acquire turn lock: %w", err))
	}

	prompt, err := s.buildPrompt(ctx, user.ID, msg)
	if err != nil {
		release()
		return fail(observability.OutcomeError, err)
	}
	userMsg, err := repo.AppendMessage(ctx, s.DB, user.ID, domain.RoleUser, msg)
	if err != nil {
		release()
		return fail(observability.OutcomeError, err)
	}

	reader, err := s.Provider.Stream(ctx, prompt)
	if err != nil {
		release()
		span.RecordError(err)
		outcome := observability.OutcomeUpstream
		if ctx.Err() != nil {
			outcome = observability.OutcomeCancelled
		}
		return fail(outcome, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err))
	}

	chunks := make(chan string)
	rep := &StreamReply{
		UserMessage: userMsg,
		Chunks:      chunks,
		done:        make(chan struct{}),
	}
	go s.forward(ctx, span, user.ID, reader, chunks, release, rep)
	return rep, nil
}

// forward pumps reader into chunks and persists the concatenated reply on a
// clean end. It owns reader, chunks, release and span.
func (s *RelayService) forward(ctx context.Context, span trace.Span, userID string, reader llm.ChunkReader, chunks chan<- string, release func(), rep *StreamReply) {
	outcome := observability.OutcomeError
	defer close(rep.done)
	defer func() {
		observability.RelayTurns.WithLabelValues(observability.ModeStream, outcome).Inc()
		span.SetAttributes(attribute.String("relay.outcome", outcome))
		if rep.err != nil {
			span.RecordError(rep.err)
		}
		span.End()
	}()
	defer release()
	defer reader.Close()
	defer close(chunks)

	cancelled := func() {
		outcome = observability.OutcomeCancelled
		rep.err = fmt.Errorf("%w: %w", ErrStreamCancelled, context.Cause(ctx))
	}

	var b strings.Builder
	for {
		text, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				cancelled()
				return
			}
			outcome = observability.OutcomeInterrupted
			rep.err = fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
			return
		}
		if text == "" {
			continue
		}
		b.WriteString(text)
		select {
		case chunks <- text:
			observability.StreamChunks.Inc()
		case <-ctx.Done():
			cancelled()
			return
		}
	}

	if ctx.Err() != nil {
		cancelled()
		return
	}
	full := b.String()
	if strings.TrimSpace(full) == "" {
		outcome = observability.OutcomeUpstream
		rep.err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, llm.ErrEmptyCompletion)
		return
	}

	reply, err := repo.AppendMessage(context.WithoutCancel(ctx), s.DB, userID, domain.RoleAI, full)
	if err != nil {
		rep.err = err
		return
	}
	rep.reply = reply
	outcome = observability.OutcomeOK
}

func (s *RelayService) locker() turnlock.Locker {
	if s.Locker == nil {
		return turnlock.Noop{}
	}
	return s.Locker
}

// buildPrompt assembles system directive, optional recent turns and msg.
// It must run before msg itself is appended.
func (s *RelayService) buildPrompt(ctx context.Context, userID, msg string) ([]llm.Message, error) {
	system := s.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	var history []domain.ChatMessage
	if s.HistoryTurns > 0 {
		var err error
		history, err = repo.ListRecentMessages(ctx, s.DB, userID, s.HistoryTurns)
		if err != nil {
			return nil, err
		}
	}

	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		out = append(out, llm.Message{Role: upstreamRole(m.Role), Content: m.Content})
	}
	return append(out, llm.Message{Role: "user", Content: msg}), nil
}

func upstreamRole(role string) string {
	if role == domain.RoleAI {
		return "assistant"
	}
	return "user"
}

// replay serves a stored reply for (userID, key), or repo.ErrNotFound.
func (s *RelayService) replay(ctx context.Context, userID, key, hash string) (*RelayResult, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, key, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	// Records written before the hash column existed carry no fingerprint.
	if rec.RequestHash != "" && rec.RequestHash != hash {
		return nil, ErrIdempotencyMismatch
	}
	reply, err := repo.GetMessage(ctx, s.DB, rec.MessageID, userID)
	if err != nil {
		return nil, err
	}
	res := &RelayResult{Reply: reply, Replayed: true}
	if prev, err := repo.PreviousMessage(ctx, s.DB, reply); err == nil && prev.Role == domain.RoleUser {
		res.UserMessage = prev
	}
	return res, nil
}

// requestHash fingerprints the normalized message stored with an
// idempotency record.
func requestHash(msg string) string {
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])
}
