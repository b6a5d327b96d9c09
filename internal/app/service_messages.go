package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"chatflow/api/internal/notify"
	"chatflow/api/internal/rbac"
	"chatflow/api/internal/search"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
	maxMessageLength   = 4000
	mentionExcerpt     = 200
)

// ListMessages pages backwards from before (exclusive); newest first.
func (s *Service) ListMessages(ctx context.Context, channelID, userID string, before int64, limit int) (map[string]any, error) {
	channel, _, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	limit = min(limit, maxMessagePage)

	messages, err := s.store.ListMessages(ctx, channel.ID, before, limit)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"messages": presentList(messages, presentMessage),
		"hasMore":  len(messages) == limit,
	}
	if len(messages) > 0 {
		payload["nextBefore"] = messages[len(messages)-1].Seq
	}
	return payload, nil
}

// PostMessage appends to a channel. Posting in a public channel joins it.
// Mentions of channel readers turn into notifications.
func (s *Service) PostMessage(ctx context.Context, session Session, channelID, body string, parentID *string) (map[string]any, error) {
	channel, member, err := s.channelAccess(ctx, channelID, session.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(member, rbac.ActionPost); err != nil {
		return nil, err
	}
	if channel.IsArchived {
		return nil, channelArchived()
	}
	body, err = validateMessageBody(body)
	if err != nil {
		return nil, err
	}
	if parentID != nil && strings.TrimSpace(*parentID) != "" {
		parent, err := s.store.GetMessage(ctx, *parentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err != nil || parent.ChannelID != channel.ID || parent.DeletedAt != nil {
			return nil, badRequest("INVALID_PARENT", "Parent message not found in this channel")
		}
	} else {
		parentID = nil
	}
	if !channel.IsMember {
		if err := s.store.AddChannelMember(ctx, channel.ID, session.UserID); err != nil {
			return nil, err
		}
	}

	message, err := s.store.InsertMessage(ctx, store.Message{
		ID:         util.NewID("msg"),
		ChannelID:  channel.ID,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Body:       body,
		ParentID:   parentID,
	})
	if err != nil {
		return nil, err
	}

	s.indexMessage(channel, message)
	s.notifyMentions(ctx, session, channel, message)
	return presentMessage(message), nil
}

func (s *Service) EditMessage(ctx context.Context, session Session, messageID, body string) (map[string]any, error) {
	message, channel, err := s.ownMessage(ctx, session, messageID)
	if err != nil {
		return nil, err
	}
	if channel.IsArchived {
		return nil, channelArchived()
	}
	body, err = validateMessageBody(body)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateMessageBody(ctx, message.ID, body); err != nil {
		return nil, err
	}
	updated, err := s.store.GetMessage(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	s.indexMessage(channel, updated)
	return presentMessage(updated), nil
}

func (s *Service) DeleteMessage(ctx context.Context, session Session, messageID string) error {
	message, _, err := s.ownMessage(ctx, session, messageID)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteMessage(ctx, message.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("MESSAGE_NOT_FOUND", "Message not found")
		}
		return err
	}
	if s.search != nil {
		s.search.DeleteMessage(message.ID)
	}
	return nil
}

// ownMessage loads a live message the caller wrote in a channel they can
// still read.
func (s *Service) ownMessage(ctx context.Context, session Session, messageID string) (store.Message, store.Channel, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Message{}, store.Channel{}, notFound("MESSAGE_NOT_FOUND", "Message not found")
		}
		return store.Message{}, store.Channel{}, err
	}
	if message.DeletedAt != nil {
		return store.Message{}, store.Channel{}, notFound("MESSAGE_NOT_FOUND", "Message not found")
	}
	channel, _, err := s.channelAccess(ctx, message.ChannelID, session.UserID)
	if err != nil {
		return store.Message{}, store.Channel{}, err
	}
	if message.AuthorID != session.UserID {
		return store.Message{}, store.Channel{}, domainError(http.StatusForbidden, "NOT_AUTHOR", "Only the author can change this message", nil)
	}
	return message, channel, nil
}

func (s *Service) indexMessage(channel store.Channel, message store.Message) {
	if s.search == nil {
		return
	}
	s.search.IndexMessage(search.MessageRecord{
		ID:          message.ID,
		WorkspaceID: channel.WorkspaceID,
		ChannelID:   channel.ID,
		AuthorID:    message.AuthorID,
		AuthorName:  message.AuthorName,
		Body:        message.Body,
		Seq:         message.Seq,
		CreatedAt:   message.CreatedAt.UnixMilli(),
	})
}

func (s *Service) notifyMentions(ctx context.Context, session Session, channel store.Channel, message store.Message) {
	if s.notifier == nil {
		return
	}
	mentioned := notify.ParseMentions(message.Body)
	if len(mentioned) == 0 {
		return
	}
	readers, err := s.store.FilterChannelReaders(ctx, channel.ID, mentioned)
	if err != nil {
		logDropped(ctx, "mention reader lookup", err)
		return
	}
	recipients := notify.MentionRecipients(message.Body, session.UserID, readers)
	if len(recipients) == 0 {
		return
	}

	link := ""
	if workspace, err := s.store.GetWorkspace(ctx, channel.WorkspaceID); err == nil {
		link = s.cfg.ChannelURL(workspace.Slug, channel.ID)
	}
	_, err = s.notifier.Dispatch(ctx, notify.Event{
		Kind:         store.NotificationMention,
		WorkspaceID:  channel.WorkspaceID,
		ActorID:      session.UserID,
		RecipientIDs: recipients,
		Title:        session.UserName + " mentioned you in #" + channel.Name,
		Body:         notify.Excerpt(message.Body, mentionExcerpt),
		Link:         link,
	})
	logDropped(ctx, "mention notification", err)
}

func validateMessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", badRequest("EMPTY_MESSAGE", "Message body is required")
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return "", badRequest("MESSAGE_TOO_LONG", "Message body is limited to 4000 characters")
	}
	return body, nil
}
