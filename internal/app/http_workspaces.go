package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatflow/api/internal/logger"
)

// withWorkspace tags the request context with the workspace in the path.
func withWorkspace(c *gin.Context) string {
	workspaceID := c.Param("workspaceId")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{WorkspaceID: workspaceID})
	c.Request = c.Request.WithContext(ctx)
	return workspaceID
}

func (s *HTTPServer) handleListWorkspaces(c *gin.Context) {
	items, err := s.service.ListWorkspaces(c.Request.Context(), sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"workspaces": items})
}

func (s *HTTPServer) handleCreateWorkspace(c *gin.Context) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateWorkspace(c.Request.Context(), sessionFrom(c), body.Name, body.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleGetWorkspace(c *gin.Context) {
	workspaceID := withWorkspace(c)
	payload, err := s.service.GetWorkspace(c.Request.Context(), workspaceID, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdateWorkspace(c *gin.Context) {
	workspaceID := withWorkspace(c)
	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateWorkspace(c.Request.Context(), workspaceID, sessionFrom(c).UserID, body.Name, body.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeleteWorkspace(c *gin.Context) {
	workspaceID := withWorkspace(c)
	if err := s.service.DeleteWorkspace(c.Request.Context(), workspaceID, sessionFrom(c).UserID); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleListMembers(c *gin.Context) {
	workspaceID := withWorkspace(c)
	items, err := s.service.ListMembers(c.Request.Context(), workspaceID, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"members": items})
}

func (s *HTTPServer) handleUpdateMember(c *gin.Context) {
	workspaceID := withWorkspace(c)
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.UpdateMemberRole(c.Request.Context(), workspaceID, sessionFrom(c).UserID, c.Param("userId"), body.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleRemoveMember(c *gin.Context) {
	workspaceID := withWorkspace(c)
	if err := s.service.RemoveMember(c.Request.Context(), workspaceID, sessionFrom(c).UserID, c.Param("userId")); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleCreateInvitation(c *gin.Context) {
	workspaceID := withWorkspace(c)
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateInvitation(c.Request.Context(), sessionFrom(c), workspaceID, body.Email, body.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleListInvitations(c *gin.Context) {
	workspaceID := withWorkspace(c)
	items, err := s.service.ListInvitations(c.Request.Context(), workspaceID, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"invitations": items})
}

func (s *HTTPServer) handleRevokeInvitation(c *gin.Context) {
	workspaceID := withWorkspace(c)
	if err := s.service.RevokeInvitation(c.Request.Context(), workspaceID, c.Param("invitationId"), sessionFrom(c).UserID); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleLookupInvitation(c *gin.Context) {
	payload, err := s.service.LookupInvitation(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleAcceptInvitation(c *gin.Context) {
	payload, err := s.service.AcceptInvitation(c.Request.Context(), sessionFrom(c), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}
