package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"chatflow/api/internal/export"
	"chatflow/api/internal/rbac"
	"chatflow/api/internal/storage"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload streams a file into object storage under the channel's prefix and
// records it.
func (s *Service) Upload(ctx context.Context, session Session, channelID string, input UploadInput) (map[string]any, error) {
	if s.objects == nil {
		return nil, storage.ErrDisabled
	}
	channel, member, err := s.channelAccess(ctx, channelID, session.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(member, rbac.ActionUpload); err != nil {
		return nil, err
	}
	if channel.IsArchived {
		return nil, channelArchived()
	}
	if input.Size <= 0 {
		return nil, badRequest("EMPTY_FILE", "Uploaded file is empty")
	}
	if s.cfg.MaxUploadBytes > 0 && input.Size > s.cfg.MaxUploadBytes {
		return nil, fileTooLarge(s.cfg.MaxUploadBytes)
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fileName := storage.SanitizeFileName(input.FileName)
	upload := store.Upload{
		ID:          util.NewID("upl"),
		WorkspaceID: channel.WorkspaceID,
		ChannelID:   channel.ID,
		UploaderID:  session.UserID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   input.Size,
	}
	upload.ObjectKey = storage.ObjectKey(channel.WorkspaceID, channel.ID, upload.ID, fileName)

	object, err := s.objects.Put(ctx, upload.ObjectKey, input.Body, input.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	upload.PublicURL = object.PublicURL
	if err := s.store.InsertUpload(ctx, upload); err != nil {
		if rmErr := s.objects.Remove(context.WithoutCancel(ctx), upload.ObjectKey); rmErr != nil {
			slog.WarnContext(ctx, "remove orphaned upload failed", "key", upload.ObjectKey, "error", rmErr)
		}
		return nil, err
	}
	saved, err := s.store.GetUpload(ctx, upload.ID)
	if err != nil {
		return nil, err
	}
	return presentUpload(saved), nil
}

// UploadURL returns a short-lived download link for an upload the caller
// can read.
func (s *Service) UploadURL(ctx context.Context, uploadID, userID string) (string, error) {
	if s.objects == nil {
		return "", storage.ErrDisabled
	}
	upload, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", notFound("UPLOAD_NOT_FOUND", "Upload not found")
		}
		return "", err
	}
	if _, _, err := s.channelAccess(ctx, upload.ChannelID, userID); err != nil {
		return "", err
	}
	return s.objects.PresignGet(ctx, upload.ObjectKey, upload.FileName, storage.DefaultPresignTTL)
}

func (s *Service) ExportChannel(ctx context.Context, channelID, userID, format string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not available on this server", nil)
	}
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, err
	}
	channel, member, err := s.channelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(member, rbac.ActionExport); err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{ChannelID: channel.ID, Format: parsed})
}

func fileTooLarge(limit int64) *DomainError {
	return domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload size limit", map[string]any{"maxBytes": limit})
}
