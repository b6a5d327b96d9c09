package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"chatflow/api/internal/rbac"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const maxTopicLength = 250

var channelNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,80}$`)

// NormalizeChannelName lower-cases name, drops a leading '#' and turns
// whitespace runs into single dashes. ok is false when the result is not a
// valid channel name.
func NormalizeChannelName(name string) (string, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	name = strings.ToLower(strings.Join(strings.Fields(name), "-"))
	return name, channelNamePattern.MatchString(name)
}

func (s *Service) ListChannels(ctx context.Context, workspaceID, userID string, includeArchived bool) ([]map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionRead); err != nil {
		return nil, err
	}
	channels, err := s.store.ListChannels(ctx, workspaceID, userID, includeArchived)
	if err != nil {
		return nil, err
	}
	return presentList(channels, presentChannel), nil
}

func (s *Service) CreateChannel(ctx context.Context, workspaceID, userID, name, topic string, isPrivate bool) (map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionCreateChannel); err != nil {
		return nil, err
	}
	normalized, ok := NormalizeChannelName(name)
	if !ok {
		return nil, invalidChannelName()
	}
	topic = strings.TrimSpace(topic)
	if len([]rune(topic)) > maxTopicLength {
		return nil, badRequest("INVALID_TOPIC", "Channel topic is too long")
	}

	channel := store.Channel{
		ID:          util.NewID("ch"),
		WorkspaceID: workspaceID,
		Name:        normalized,
		Topic:       topic,
		IsPrivate:   isPrivate,
		CreatedBy:   userID,
	}
	if err := s.store.CreateChannel(ctx, channel); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, channelExists(normalized)
		}
		return nil, err
	}
	created, err := s.store.GetChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	created.IsMember = true
	return presentChannel(created), nil
}

func (s *Service) GetChannel(ctx context.Context, channelID, userID string) (map[string]any, error) {
	channel, _, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	return presentChannel(channel), nil
}

// UpdateChannel renames or re-topics a channel. Channel managers and the
// channel's creator may do this.
func (s *Service) UpdateChannel(ctx context.Context, channelID, userID string, name, topic *string) (map[string]any, error) {
	channel, member, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if err := canManageChannel(channel, member); err != nil {
		return nil, err
	}
	if channel.IsArchived {
		return nil, channelArchived()
	}
	if name != nil {
		normalized, ok := NormalizeChannelName(*name)
		if !ok {
			return nil, invalidChannelName()
		}
		if normalized != channel.Name && (channel.Name == defaultChannelName || normalized == defaultChannelName) {
			return nil, defaultChannelConflict("The default channel cannot be renamed")
		}
		channel.Name = normalized
	}
	if topic != nil {
		trimmed := strings.TrimSpace(*topic)
		if len([]rune(trimmed)) > maxTopicLength {
			return nil, badRequest("INVALID_TOPIC", "Channel topic is too long")
		}
		channel.Topic = trimmed
	}
	if err := s.store.UpdateChannel(ctx, channel.ID, channel.Name, channel.Topic); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, channelExists(channel.Name)
		}
		return nil, err
	}
	return s.GetChannel(ctx, channelID, userID)
}

func (s *Service) ArchiveChannel(ctx context.Context, channelID, userID string) error {
	channel, member, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if err := canManageChannel(channel, member); err != nil {
		return err
	}
	if channel.Name == defaultChannelName {
		return defaultChannelConflict("The default channel cannot be archived")
	}
	return s.store.ArchiveChannel(ctx, channel.ID)
}

func (s *Service) JoinChannel(ctx context.Context, channelID, userID string) (map[string]any, error) {
	channel, _, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if channel.IsArchived {
		return nil, channelArchived()
	}
	if err := s.store.AddChannelMember(ctx, channel.ID, userID); err != nil {
		return nil, err
	}
	channel.IsMember = true
	return presentChannel(channel), nil
}

func (s *Service) LeaveChannel(ctx context.Context, channelID, userID string) error {
	channel, _, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveChannelMember(ctx, channel.ID, userID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

func (s *Service) MarkRead(ctx context.Context, channelID, userID string, seq int64) (map[string]any, error) {
	if seq < 0 {
		return nil, badRequest("INVALID_SEQ", "seq must not be negative")
	}
	channel, _, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestMessageSeq(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	if seq == 0 || seq > latest {
		seq = latest
	}
	stored, err := s.store.MarkChannelRead(ctx, channel.ID, userID, seq)
	if err != nil {
		return nil, err
	}
	return map[string]any{"channelId": channel.ID, "lastReadSeq": stored}, nil
}

func (s *Service) UnreadCounts(ctx context.Context, workspaceID, userID string) ([]map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionRead); err != nil {
		return nil, err
	}
	counts, err := s.store.UnreadCounts(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(counts))
	for _, count := range counts {
		out = append(out, map[string]any{"channelId": count.ChannelID, "unread": count.Unread})
	}
	return out, nil
}

func canManageChannel(channel store.Channel, member store.WorkspaceMember) error {
	if channel.CreatedBy == member.UserID {
		return nil
	}
	return requireRole(member, rbac.ActionManageChannels)
}

func invalidChannelName() *DomainError {
	return badRequest("INVALID_CHANNEL_NAME", "Channel names use 1-80 lower-case letters, digits, dashes or underscores")
}

func channelExists(name string) *DomainError {
	return domainError(http.StatusConflict, "CHANNEL_EXISTS", "A channel with this name already exists", map[string]any{"name": name})
}

func channelArchived() *DomainError {
	return domainError(http.StatusConflict, "CHANNEL_ARCHIVED", "Channel is archived", nil)
}

func logDropped(ctx context.Context, what string, err error) {
	if err != nil {
		slog.WarnContext(ctx, what+" failed", "error", err)
	}
}

func defaultChannelConflict(message string) *DomainError {
	return domainError(http.StatusConflict, "DEFAULT_CHANNEL", message, nil)
}
