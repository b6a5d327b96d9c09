package app

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatflow/api/internal/logger"
)

// multipartOverhead is the slack allowed on top of the file size for the
// multipart envelope.
const multipartOverhead = 1 << 20

func withChannel(c *gin.Context) string {
	channelID := c.Param("channelId")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{ChannelID: channelID})
	c.Request = c.Request.WithContext(ctx)
	return channelID
}

func (s *HTTPServer) handleListChannels(c *gin.Context) {
	workspaceID := withWorkspace(c)
	items, err := s.service.ListChannels(c.Request.Context(), workspaceID, sessionFrom(c).UserID, queryBool(c, "includeArchived"))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"channels": items})
}

func (s *HTTPServer) handleCreateChannel(c *gin.Context) {
	workspaceID := withWorkspace(c)
	var body struct {
		Name      string `json:"name"`
		Topic     string `json:"topic"`
		IsPrivate bool   `json:"isPrivate"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateChannel(c.Request.Context(), workspaceID, sessionFrom(c).UserID, body.Name, body.Topic, body.IsPrivate)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleGetChannel(c *gin.Context) {
	channelID := withChannel(c)
	payload, err := s.service.GetChannel(c.Request.Context(), channelID, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdateChannel(c *gin.Context) {
	channelID := withChannel(c)
	var body struct {
		Name  *string `json:"name"`
		Topic *string `json:"topic"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateChannel(c.Request.Context(), channelID, sessionFrom(c).UserID, body.Name, body.Topic)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleArchiveChannel(c *gin.Context) {
	channelID := withChannel(c)
	if err := s.service.ArchiveChannel(c.Request.Context(), channelID, sessionFrom(c).UserID); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleJoinChannel(c *gin.Context) {
	channelID := withChannel(c)
	payload, err := s.service.JoinChannel(c.Request.Context(), channelID, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleLeaveChannel(c *gin.Context) {
	channelID := withChannel(c)
	if err := s.service.LeaveChannel(c.Request.Context(), channelID, sessionFrom(c).UserID); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleListMessages(c *gin.Context) {
	channelID := withChannel(c)
	before, err := queryInt(c, "before", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	payload, err := s.service.ListMessages(c.Request.Context(), channelID, sessionFrom(c).UserID, before, int(limit))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handlePostMessage(c *gin.Context) {
	channelID := withChannel(c)
	var body struct {
		Body     string  `json:"body"`
		ParentID *string `json:"parentId"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.PostMessage(c.Request.Context(), sessionFrom(c), channelID, body.Body, body.ParentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleEditMessage(c *gin.Context) {
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.EditMessage(c.Request.Context(), sessionFrom(c), c.Param("messageId"), body.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeleteMessage(c *gin.Context) {
	if err := s.service.DeleteMessage(c.Request.Context(), sessionFrom(c), c.Param("messageId")); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleMarkRead(c *gin.Context) {
	channelID := withChannel(c)
	var body struct {
		Seq int64 `json:"seq"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.MarkRead(c.Request.Context(), channelID, sessionFrom(c).UserID, body.Seq)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleUnreadCounts(c *gin.Context) {
	workspaceID := withWorkspace(c)
	items, err := s.service.UnreadCounts(c.Request.Context(), workspaceID, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"channels": items})
}

func (s *HTTPServer) handleUpload(c *gin.Context) {
	channelID := withChannel(c)
	limit := s.service.Config().MaxUploadBytes
	if limit > 0 {
		if c.Request.ContentLength > limit+multipartOverhead {
			s.fail(c, fileTooLarge(limit))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, fileTooLarge(limit))
			return
		}
		writeError(c, http.StatusBadRequest, "MISSING_FILE", "Multipart field \"file\" is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer file.Close()

	payload, err := s.service.Upload(c.Request.Context(), sessionFrom(c), channelID, UploadInput{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleGetUpload(c *gin.Context) {
	url, err := s.service.UploadURL(c.Request.Context(), c.Param("uploadId"), sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (s *HTTPServer) handleExport(c *gin.Context) {
	channelID := withChannel(c)
	var body struct {
		Format string `json:"format"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.ExportChannel(c.Request.Context(), channelID, sessionFrom(c).UserID, body.Format)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	c.Data(http.StatusOK, result.MimeType, result.Data)
}
