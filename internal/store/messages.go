package store

import (
	"context"
	"database/sql"
	"fmt"
)

const messageColumns = `m.id, m.seq, m.channel_id, m.author_id, u.display_name, m.body, m.parent_id, m.edited_at, m.deleted_at, m.created_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var item Message
	var parentID sql.NullString
	var editedAt, deletedAt sql.NullTime
	err := row.Scan(&item.ID, &item.Seq, &item.ChannelID, &item.AuthorID, &item.AuthorName, &item.Body, &parentID, &editedAt, &deletedAt, &item.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	item.ParentID = stringPtr(parentID)
	item.EditedAt = timePtr(editedAt)
	item.DeletedAt = timePtr(deletedAt)
	return item, nil
}

// InsertMessage stores the message and fills in its sequence number and
// creation time.
func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, channel_id, author_id, body, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at
	`, message.ID, message.ChannelID, message.AuthorID, message.Body, nullString(message.ParentID)).Scan(&message.Seq, &message.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

// ListMessages pages backwards through a channel: newest first, strictly
// before beforeSeq when it is positive.
func (s *PostgresStore) ListMessages(ctx context.Context, channelID string, beforeSeq int64, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = $1
			AND m.deleted_at IS NULL
			AND ($2::bigint <= 0 OR m.seq < $2::bigint)
		ORDER BY m.seq DESC
		LIMIT $3
	`, channelID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectMessages(rows)
}

// ListChannelTranscript returns the latest limit live messages, oldest
// first.
func (s *PostgresStore) ListChannelTranscript(ctx context.Context, channelID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+`
			FROM messages m
			JOIN users u ON u.id = m.author_id
			WHERE m.channel_id = $1 AND m.deleted_at IS NULL
			ORDER BY m.seq DESC
			LIMIT $2
		) recent
		ORDER BY recent.seq ASC
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()
	items := make([]Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.id = $1
	`, messageID))
}

func (s *PostgresStore) UpdateMessageBody(ctx context.Context, messageID, body string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET body=$2, edited_at=NOW() WHERE id=$1 AND deleted_at IS NULL
	`, messageID, body)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) SoftDeleteMessage(ctx context.Context, messageID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL
	`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) LatestMessageSeq(ctx context.Context, channelID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM messages WHERE channel_id=$1 AND deleted_at IS NULL
	`, channelID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest message seq: %w", err)
	}
	return seq, nil
}

// MarkChannelRead moves the read marker forward and returns the stored
// value. The marker never moves backwards.
func (s *PostgresStore) MarkChannelRead(ctx context.Context, channelID, userID string, seq int64) (int64, error) {
	var stored int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO channel_read_states (channel_id, user_id, last_read_seq, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (channel_id, user_id) DO UPDATE
		SET last_read_seq = GREATEST(channel_read_states.last_read_seq, EXCLUDED.last_read_seq),
			updated_at = NOW()
		RETURNING last_read_seq
	`, channelID, userID, seq).Scan(&stored)
	if err != nil {
		return 0, fmt.Errorf("mark channel read: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) UnreadCounts(ctx context.Context, workspaceID, userID string) ([]UnreadCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, COUNT(m.id)
		FROM channels c
		LEFT JOIN channel_read_states rs ON rs.channel_id = c.id AND rs.user_id = $2
		LEFT JOIN messages m ON m.channel_id = c.id
			AND m.deleted_at IS NULL
			AND m.author_id <> $2
			AND m.seq > COALESCE(rs.last_read_seq, 0)
		WHERE c.workspace_id = $1
			AND NOT c.is_archived
			AND EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = $2)
		GROUP BY c.id
		ORDER BY c.id
	`, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	items := make([]UnreadCount, 0)
	for rows.Next() {
		var item UnreadCount
		if err := rows.Scan(&item.ChannelID, &item.Unread); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread counts: %w", err)
	}
	return items, nil
}
