package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) InsertUpload(ctx context.Context, upload Upload) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, workspace_id, channel_id, message_id, uploader_id, object_key, file_name, content_type, size_bytes, public_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, upload.ID, upload.WorkspaceID, upload.ChannelID, nullString(upload.MessageID), upload.UploaderID,
		upload.ObjectKey, upload.FileName, upload.ContentType, upload.SizeBytes, upload.PublicURL)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, uploadID string) (Upload, error) {
	var item Upload
	var messageID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, channel_id, message_id, uploader_id, object_key, file_name, content_type, size_bytes, public_url, created_at
		FROM uploads WHERE id=$1
	`, uploadID).Scan(&item.ID, &item.WorkspaceID, &item.ChannelID, &messageID, &item.UploaderID, &item.ObjectKey,
		&item.FileName, &item.ContentType, &item.SizeBytes, &item.PublicURL, &item.CreatedAt)
	if err != nil {
		return Upload{}, err
	}
	item.MessageID = stringPtr(messageID)
	return item, nil
}
