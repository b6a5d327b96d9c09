package store

import (
	"context"
	"fmt"
)

const channelColumns = `c.id, c.workspace_id, c.name, c.topic, c.is_private, c.is_archived, c.created_by, c.created_at, c.updated_at`

func scanChannel(row interface{ Scan(...any) error }, extra ...any) (Channel, error) {
	var item Channel
	dest := []any{&item.ID, &item.WorkspaceID, &item.Name, &item.Topic, &item.IsPrivate, &item.IsArchived, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Channel{}, err
	}
	return item, nil
}

func (s *PostgresStore) CreateChannel(ctx context.Context, channel Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create channel: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertChannel(ctx, tx, channel); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create channel: %w", err)
	}
	return nil
}

// ListChannels returns the workspace channels visible to userID: every
// public channel plus the private channels they belong to.
func (s *PostgresStore) ListChannels(ctx context.Context, workspaceID, userID string, includeArchived bool) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+channelColumns+`,
			EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = $2) AS is_member
		FROM channels c
		WHERE c.workspace_id = $1
			AND ($3 OR NOT c.is_archived)
			AND (NOT c.is_private OR EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = $2))
		ORDER BY c.name
	`, workspaceID, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		var isMember bool
		item, err := scanChannel(rows, &isMember)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		item.IsMember = isMember
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	return scanChannel(s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels c WHERE c.id=$1`, channelID))
}

func (s *PostgresStore) GetChannelByName(ctx context.Context, workspaceID, name string) (Channel, error) {
	return scanChannel(s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels c WHERE c.workspace_id=$1 AND c.name=$2`,
		workspaceID, name,
	))
}

func (s *PostgresStore) UpdateChannel(ctx context.Context, channelID, name, topic string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE channels SET name=$2, topic=$3, updated_at=NOW() WHERE id=$1
	`, channelID, name, topic)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ArchiveChannel(ctx context.Context, channelID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE channels SET is_archived=TRUE, updated_at=NOW() WHERE id=$1
	`, channelID)
	if err != nil {
		return fmt.Errorf("archive channel: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) AddChannelMember(ctx context.Context, channelID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)
		ON CONFLICT (channel_id, user_id) DO NOTHING
	`, channelID, userID)
	if err != nil {
		return fmt.Errorf("add channel member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveChannelMember(ctx context.Context, channelID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channel_members WHERE channel_id=$1 AND user_id=$2`, channelID, userID)
	if err != nil {
		return fmt.Errorf("remove channel member: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsChannelMember(ctx context.Context, channelID, userID string) (bool, error) {
	var member bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM channel_members WHERE channel_id=$1 AND user_id=$2)
	`, channelID, userID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("check channel member: %w", err)
	}
	return member, nil
}

// ListReadableChannelIDs returns the non-archived channels userID may read
// in a workspace.
func (s *PostgresStore) ListReadableChannelIDs(ctx context.Context, workspaceID, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id
		FROM channels c
		WHERE c.workspace_id = $1
			AND NOT c.is_archived
			AND (NOT c.is_private OR EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = $2))
		ORDER BY c.id
	`, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("list readable channels: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan channel id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readable channels: %w", err)
	}
	return ids, nil
}

// FilterChannelReaders keeps the userIDs that belong to the channel's
// workspace and, for private channels, to the channel itself.
func (s *PostgresStore) FilterChannelReaders(ctx context.Context, channelID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT wm.user_id
		FROM channels c
		JOIN workspace_members wm ON wm.workspace_id = c.workspace_id
		WHERE c.id = $1
			AND wm.user_id = ANY($2)
			AND (NOT c.is_private OR EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = wm.user_id))
	`, channelID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("filter channel readers: %w", err)
	}
	defer rows.Close()

	readers := make([]string, 0, len(userIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reader: %w", err)
		}
		readers = append(readers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readers: %w", err)
	}
	return readers, nil
}
