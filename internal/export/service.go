package export

import (
	"context"
	"fmt"
	"time"

	"chatflow/api/internal/store"
)

type DataStore interface {
	GetChannel(ctx context.Context, channelID string) (store.Channel, error)
	GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error)
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, error)
	ListChannelTranscript(ctx context.Context, channelID string, limit int) ([]store.Message, error)
}

type pdfRenderer func(ctx context.Context, html string) ([]byte, error)

type Service struct {
	store     DataStore
	renderPDF pdfRenderer
	now       func() time.Time
}

func NewService(store DataStore) *Service {
	return &Service{store: store, renderPDF: renderPDF, now: time.Now}
}

// Export renders the channel's most recent messages in chronological order.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format != FormatHTML && req.Format != FormatPDF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	limit = min(limit, MaxTranscriptLimit)

	channel, err := s.store.GetChannel(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	workspace, err := s.store.GetWorkspace(ctx, channel.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	members, err := s.store.ListWorkspaceMembers(ctx, channel.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	messages, err := s.store.ListChannelTranscript(ctx, channel.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}

	names := make(map[string]string, len(members))
	for _, member := range members {
		names[member.UserID] = member.DisplayName
	}

	data, err := buildTranscript(workspace, channel, messages, names, s.now().UTC())
	if err != nil {
		return nil, err
	}
	html, err := RenderTranscriptHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	base := sanitizeFilename(workspace.Slug + "-" + channel.Name)
	switch req.Format {
	case FormatPDF:
		pdf, err := s.renderPDF(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{Data: pdf, Filename: base + ".pdf", MimeType: "application/pdf"}, nil
	default:
		return &Result{Data: []byte(html), Filename: base + ".html", MimeType: "text/html; charset=utf-8"}, nil
	}
}

func buildTranscript(workspace store.Workspace, channel store.Channel, messages []store.Message, names map[string]string, generatedAt time.Time) (TranscriptData, error) {
	data := TranscriptData{
		WorkspaceName: workspace.Name,
		ChannelName:   channel.Name,
		Topic:         channel.Topic,
		GeneratedAt:   generatedAt,
		MessageCount:  len(messages),
	}

	var current *TranscriptDay
	for _, message := range messages {
		label := message.CreatedAt.UTC().Format("Monday, January 2, 2006")
		if current == nil || current.Label != label {
			data.Days = append(data.Days, TranscriptDay{Label: label})
			current = &data.Days[len(data.Days)-1]
		}

		body, err := RenderMessageBody(message.Body, names)
		if err != nil {
			return TranscriptData{}, fmt.Errorf("render message %s: %w", message.ID, err)
		}
		author := message.AuthorName
		if author == "" {
			author = names[message.AuthorID]
		}
		current.Messages = append(current.Messages, TranscriptMessage{
			Author:   author,
			Time:     message.CreatedAt.UTC().Format("15:04"),
			BodyHTML: body,
			Edited:   message.EditedAt != nil,
			IsReply:  message.ParentID != nil,
		})
	}
	return data, nil
}
