package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatflow/api/internal/store"
)

type taskBody struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	AssigneeID  *string    `json:"assigneeId"`
	ChannelID   *string    `json:"channelId"`
	DueAt       *time.Time `json:"dueAt"`
	ClearDueAt  bool       `json:"clearDueAt"`
}

func (b taskBody) input() TaskInput {
	return TaskInput{
		Title:       b.Title,
		Description: b.Description,
		Status:      b.Status,
		AssigneeID:  b.AssigneeID,
		ChannelID:   b.ChannelID,
		DueAt:       b.DueAt,
		ClearDueAt:  b.ClearDueAt,
	}
}

func (s *HTTPServer) handleListTasks(c *gin.Context) {
	workspaceID := withWorkspace(c)
	filter := store.TaskFilter{Status: c.Query("status"), AssigneeID: c.Query("assigneeId")}
	if filter.AssigneeID == "me" {
		filter.AssigneeID = sessionFrom(c).UserID
	}
	items, err := s.service.ListTasks(c.Request.Context(), workspaceID, sessionFrom(c).UserID, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tasks": items})
}

func (s *HTTPServer) handleCreateTask(c *gin.Context) {
	workspaceID := withWorkspace(c)
	var body taskBody
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateTask(c.Request.Context(), sessionFrom(c), workspaceID, body.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleUpdateTask(c *gin.Context) {
	var body taskBody
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateTask(c.Request.Context(), sessionFrom(c), c.Param("taskId"), body.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeleteTask(c *gin.Context) {
	if err := s.service.DeleteTask(c.Request.Context(), c.Param("taskId"), sessionFrom(c).UserID); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
