package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"chatflow/api/internal/rbac"
	"chatflow/api/internal/search"
)

const (
	defaultNotificationPage = 50
	maxNotificationPage     = 200
)

type PreferencesInput struct {
	EmailMentions     *bool
	EmailTaskAssigned *bool
	EmailInvitations  *bool
}

func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	limit = min(limit, maxNotificationPage)
	notifications, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	return presentList(notifications, presentNotification), nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	if err := s.store.MarkNotificationRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("NOTIFICATION_NOT_FOUND", "Notification not found")
		}
		return err
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) (map[string]any, error) {
	updated, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"updated": updated}, nil
}

func (s *Service) NotificationPreferences(ctx context.Context, userID string) (map[string]any, error) {
	prefs, err := s.store.GetNotificationPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return presentPreferences(prefs), nil
}

func (s *Service) UpdateNotificationPreferences(ctx context.Context, userID string, input PreferencesInput) (map[string]any, error) {
	prefs, err := s.store.GetNotificationPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs.UserID = userID
	if input.EmailMentions != nil {
		prefs.EmailMentions = *input.EmailMentions
	}
	if input.EmailTaskAssigned != nil {
		prefs.EmailTaskAssigned = *input.EmailTaskAssigned
	}
	if input.EmailInvitations != nil {
		prefs.EmailInvitations = *input.EmailInvitations
	}
	if err := s.store.UpsertNotificationPreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return presentPreferences(prefs), nil
}

// Search runs a message search restricted to the channels the caller can
// read in the workspace.
func (s *Service) Search(ctx context.Context, workspaceID, userID, text, channelID string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not available", nil)
	}
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionRead); err != nil {
		return search.Response{}, err
	}
	if offset < 0 {
		return search.Response{}, badRequest("INVALID_OFFSET", "offset must not be negative")
	}
	readable, err := s.store.ListReadableChannelIDs(ctx, workspaceID, userID)
	if err != nil {
		return search.Response{}, err
	}
	return s.search.Search(ctx, search.Query{
		Text:        strings.TrimSpace(text),
		WorkspaceID: workspaceID,
		ChannelIDs:  readable,
		ChannelID:   strings.TrimSpace(channelID),
		Limit:       limit,
		Offset:      offset,
	}), nil
}
