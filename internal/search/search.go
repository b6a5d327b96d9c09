package search

import (
	"context"
	"time"
)

// Result is a single message hit.
type Result struct {
	MessageID   string    `json:"messageId"`
	ChannelID   string    `json:"channelId"`
	WorkspaceID string    `json:"workspaceId"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	Snippet     string    `json:"snippet"`
	Seq         int64     `json:"seq"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Query describes a search request. ChannelIDs is the set of channels the
// caller may read; an empty set matches nothing.
type Query struct {
	Text        string
	WorkspaceID string
	ChannelIDs  []string
	ChannelID   string
	Limit       int
	Offset      int
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

type Indexer interface {
	IndexMessages(records []MessageRecord) error
	DeleteMessage(id string) error
}

// MessageRecord is the document pushed to the search index.
type MessageRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	ChannelID   string `json:"channelId"`
	AuthorID    string `json:"authorId"`
	AuthorName  string `json:"authorName"`
	Body        string `json:"body"`
	Seq         int64  `json:"seq"`
	CreatedAt   int64  `json:"createdAt"`
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}
