package search

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PgFTS searches messages.fts with plainto_tsquery, ranking by ts_rank.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgftsWhere = `
	FROM messages m
	JOIN channels c ON c.id = m.channel_id
	JOIN users u ON u.id = m.author_id
	WHERE m.fts @@ plainto_tsquery('english', $1)
	  AND m.deleted_at IS NULL
	  AND c.workspace_id = $2
	  AND m.channel_id = ANY($3)`

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if q.Text == "" || len(q.ChannelIDs) == 0 {
		return nil, 0, nil
	}
	args := []any{q.Text, q.WorkspaceID, q.ChannelIDs}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*)`+pgftsWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, c.workspace_id, m.author_id, u.display_name,
			ts_headline('english', m.body, plainto_tsquery('english', $1),
				'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'),
			m.seq, m.created_at`+pgftsWhere+`
		ORDER BY ts_rank(m.fts, plainto_tsquery('english', $1)) DESC, m.seq DESC
		LIMIT $4 OFFSET $5`,
		append(args, normalizeLimit(q.Limit), q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.MessageID, &r.ChannelID, &r.WorkspaceID, &r.AuthorID, &r.AuthorName, &r.Snippet, &r.Seq, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every live message for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MessageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT m.id, c.workspace_id, m.channel_id, m.author_id, u.display_name, m.body, m.seq, m.created_at
		FROM messages m
		JOIN channels c ON c.id = m.channel_id
		JOIN users u ON u.id = m.author_id
		WHERE m.deleted_at IS NULL
		ORDER BY m.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	records := make([]MessageRecord, 0)
	for rows.Next() {
		var rec MessageRecord
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.ChannelID, &rec.AuthorID, &rec.AuthorName, &rec.Body, &rec.Seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.CreatedAt = createdAt.UnixMilli()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return records, nil
}
