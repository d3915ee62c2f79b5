package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/domain"
	"github.com/tbourn/go-persian-chat/internal/repo"
	"github.com/tbourn/go-persian-chat/internal/search"
)

const defaultSearchK = 5

// HistoryService reads a user's conversation. Reading does not require a
// verified email.
type HistoryService struct {
	DB *gorm.DB
	// SearchMaxDocs limits a search to the most recent turns; 0 means all.
	SearchMaxDocs int
}

// History returns every turn of identity, oldest first.
func (s *HistoryService) History(ctx context.Context, identity string) ([]domain.ChatMessage, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "History")
	defer span.End()

	u, err := resolveUser(ctx, s.DB, identity, false)
	if err != nil {
		return nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("history.turns", len(msgs)))
	return msgs, nil
}

// HistoryVersion identifies the current state of a conversation. Turns are
// append-only, so count and latest timestamp change on every write.
type HistoryVersion struct {
	UserID string
	Count  int64
	Latest time.Time
}

// Version reports the HistoryVersion of identity, used for ETags.
func (s *HistoryService) Version(ctx context.Context, identity string) (*HistoryVersion, error) {
	u, err := resolveUser(ctx, s.DB, identity, false)
	if err != nil {
		return nil, err
	}
	count, latest, err := repo.HistoryStats(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}
	v := &HistoryVersion{UserID: u.ID, Count: count}
	if latest != nil {
		v.Latest = *latest
	}
	return v, nil
}

// SearchHit is a turn matching a history search.
type SearchHit struct {
	Message domain.ChatMessage `json:"message"`
	Snippet string             `json:"snippet"`
	Score   float64            `json:"score"`
}

// Search ranks the user's own turns against query by token overlap and
// returns at most k hits (default 5). A query without searchable tokens
// yields no hits.
func (s *HistoryService) Search(ctx context.Context, identity, query string, k int) ([]SearchHit, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(attribute.Int("search.k", k)),
	)
	defer span.End()

	if k <= 0 {
		k = defaultSearchK
	}
	u, err := resolveUser(ctx, s.DB, identity, false)
	if err != nil {
		return nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}

	if s.SearchMaxDocs > 0 && len(msgs) > s.SearchMaxDocs {
		msgs = msgs[len(msgs)-s.SearchMaxDocs:]
	}

	byID := make(map[string]domain.ChatMessage, len(msgs))
	docs := make([]search.Doc, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		docs = append(docs, search.Doc{ID: m.ID, Text: m.Content})
	}
	results := search.NewIndex(docs).TopK(query, k)
	out := make([]SearchHit, 0, len(results))
	for _, r := range results {
		out = append(out, SearchHit{Message: byID[r.ID], Snippet: r.Snippet, Score: r.Score})
	}
	span.SetAttributes(attribute.Int("search.hits", len(out)))
	return out, nil
}
