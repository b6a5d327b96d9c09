package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, workspace_id, kind, title, body, link)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`, notification.ID, notification.UserID, notification.WorkspaceID, notification.Kind, notification.Title, notification.Body, notification.Link)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(workspace_id, ''), kind, title, body, link, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		var readAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.UserID, &item.WorkspaceID, &item.Kind, &item.Title, &item.Body, &item.Link, &readAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		item.ReadAt = timePtr(readAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=COALESCE(read_at, NOW()) WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// GetNotificationPreferences falls back to the defaults when the user has
// never saved preferences.
func (s *PostgresStore) GetNotificationPreferences(ctx context.Context, userID string) (NotificationPreferences, error) {
	prefs := NotificationPreferences{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT email_mentions, email_task_assigned, email_invitations, updated_at
		FROM notification_preferences WHERE user_id=$1
	`, userID).Scan(&prefs.EmailMentions, &prefs.EmailTaskAssigned, &prefs.EmailInvitations, &prefs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultNotificationPreferences(userID), nil
	}
	if err != nil {
		return NotificationPreferences{}, fmt.Errorf("read notification preferences: %w", err)
	}
	return prefs, nil
}

func (s *PostgresStore) UpsertNotificationPreferences(ctx context.Context, prefs NotificationPreferences) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, email_mentions, email_task_assigned, email_invitations, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email_mentions = EXCLUDED.email_mentions,
			email_task_assigned = EXCLUDED.email_task_assigned,
			email_invitations = EXCLUDED.email_invitations,
			updated_at = NOW()
	`, prefs.UserID, prefs.EmailMentions, prefs.EmailTaskAssigned, prefs.EmailInvitations)
	if err != nil {
		return fmt.Errorf("save notification preferences: %w", err)
	}
	return nil
}
