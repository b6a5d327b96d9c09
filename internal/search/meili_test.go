package search

import (
	"encoding/json"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
)

func TestBuildFilterQuotesIdentifiers(t *testing.T) {
	filter := buildFilter(Query{WorkspaceID: "ws_1", ChannelIDs: []string{"ch_1", `ch"2`}})
	assert.Equal(t, `workspaceId = "ws_1" AND channelId IN ["ch_1", "ch\"2"]`, filter)
}

func TestHitToResultPrefersHighlightedBody(t *testing.T) {
	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	hit := meili.Hit{
		"id":          json.RawMessage(`"msg_1"`),
		"channelId":   json.RawMessage(`"ch_1"`),
		"workspaceId": json.RawMessage(`"ws_1"`),
		"authorId":    json.RawMessage(`"usr_1"`),
		"authorName":  json.RawMessage(`"Ann"`),
		"body":        json.RawMessage(`"ship the deploy"`),
		"seq":         json.RawMessage(`42`),
		"createdAt":   json.RawMessage([]byte(jsonInt(created.UnixMilli()))),
		"_formatted":  json.RawMessage(`{"body":"ship the <mark>deploy</mark>","seq":"42"}`),
	}

	r := hitToResult(hit)
	assert.Equal(t, "msg_1", r.MessageID)
	assert.Equal(t, "ch_1", r.ChannelID)
	assert.Equal(t, "Ann", r.AuthorName)
	assert.Equal(t, int64(42), r.Seq)
	assert.Equal(t, "ship the <mark>deploy</mark>", r.Snippet)
	assert.True(t, created.Equal(r.CreatedAt))
}

func TestHitToResultWithoutFormatted(t *testing.T) {
	r := hitToResult(meili.Hit{"id": json.RawMessage(`"msg_1"`), "body": json.RawMessage(`"plain"`)})
	assert.Equal(t, "plain", r.Snippet)
	assert.True(t, r.CreatedAt.IsZero())
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
