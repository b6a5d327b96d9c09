package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// Service tries Meilisearch first and falls back to Postgres full-text search.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{fallback: pgfts}
	if meili != nil {
		s.primary = meili
		s.indexer = meili
	}
	return s
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	q.Limit = normalizeLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.ChannelID != "" {
		if !slices.Contains(q.ChannelIDs, q.ChannelID) {
			return Response{Results: []Result{}, Query: q.Text}
		}
		q.ChannelIDs = []string{q.ChannelID}
	}
	if q.Text == "" || len(q.ChannelIDs) == 0 {
		return Response{Results: []Result{}, Query: q.Text}
	}

	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		slog.WarnContext(ctx, "meilisearch error, falling back to pgfts", "error", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		slog.ErrorContext(ctx, "pgfts search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexMessage pushes a message to Meilisearch without blocking the caller.
func (s *Service) IndexMessage(record MessageRecord) {
	if !s.indexing() {
		return
	}
	go func() {
		if err := s.indexer.IndexMessages([]MessageRecord{record}); err != nil {
			slog.Warn("search: index message failed", "message_id", record.ID, "error", err)
		}
	}()
}

func (s *Service) DeleteMessage(id string) {
	if !s.indexing() {
		return
	}
	go func() {
		if err := s.indexer.DeleteMessage(id); err != nil {
			slog.Warn("search: delete message failed", "message_id", id, "error", err)
		}
	}()
}

// ReindexAllFromPG loads every live message and pushes it to Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	pgfts, ok := s.fallback.(*PgFTS)
	if !s.indexing() || !ok || pgfts == nil {
		return
	}
	records, err := pgfts.LoadAllRecords(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "search: reindex load failed", "error", err)
		return
	}
	for start := 0; start < len(records); start += reindexBatchSize {
		end := min(start+reindexBatchSize, len(records))
		if err := s.indexer.IndexMessages(records[start:end]); err != nil {
			slog.ErrorContext(ctx, "search: reindex batch failed", "error", err, "offset", start)
			return
		}
	}
	slog.InfoContext(ctx, "search: reindexed messages", "count", len(records))
}

// Healthy reports whether the primary engine is serving queries.
func (s *Service) Healthy() bool {
	return s.primary != nil && s.primary.Healthy()
}

func (s *Service) Engine() string {
	if s.Healthy() {
		return "meilisearch"
	}
	return "pgfts"
}

const reindexBatchSize = 1000

func (s *Service) indexing() bool {
	return s.indexer != nil && s.primary != nil && s.primary.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
