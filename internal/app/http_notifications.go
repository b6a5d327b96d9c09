package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) handleListNotifications(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	items, err := s.service.ListNotifications(c.Request.Context(), sessionFrom(c).UserID, queryBool(c, "unread"), int(limit))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"notifications": items})
}

func (s *HTTPServer) handleReadNotification(c *gin.Context) {
	if err := s.service.MarkNotificationRead(c.Request.Context(), c.Param("notificationId"), sessionFrom(c).UserID); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleReadAllNotifications(c *gin.Context) {
	payload, err := s.service.MarkAllNotificationsRead(c.Request.Context(), sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleGetPreferences(c *gin.Context) {
	payload, err := s.service.NotificationPreferences(c.Request.Context(), sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdatePreferences(c *gin.Context) {
	var body struct {
		EmailMentions     *bool `json:"emailMentions"`
		EmailTaskAssigned *bool `json:"emailTaskAssigned"`
		EmailInvitations  *bool `json:"emailInvitations"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateNotificationPreferences(c.Request.Context(), sessionFrom(c).UserID, PreferencesInput{
		EmailMentions:     body.EmailMentions,
		EmailTaskAssigned: body.EmailTaskAssigned,
		EmailInvitations:  body.EmailInvitations,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleSearch(c *gin.Context) {
	workspaceID := withWorkspace(c)
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.service.Search(c.Request.Context(), workspaceID, sessionFrom(c).UserID, c.Query("q"), c.Query("channelId"), int(limit), int(offset))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}
