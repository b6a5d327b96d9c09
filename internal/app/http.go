package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	engine     *gin.Engine
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	s := &HTTPServer{service: service, corsOrigin: corsOrigin}
	s.engine = s.buildEngine()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) buildEngine() *gin.Engine {
	engine := gin.New()
	if otel := s.service.Config().OTel; otel.Enabled() {
		engine.Use(otelgin.Middleware(otel.ServiceName))
	}
	engine.Use(recovery(), requestID(), requestLogger(), cors(s.corsOrigin))
	engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})

	engine.GET("/api/health", s.handleHealth)
	engine.HEAD("/api/health", s.handleHealth)
	engine.GET("/api/ready", s.handleReady)
	engine.HEAD("/api/ready", s.handleReady)
	engine.GET("/api/version", s.handleVersion)
	engine.GET("/api/debug", s.handleDebug)
	engine.GET("/nuclear-cache-buster", s.handleCacheBuster)

	engine.POST("/api/auth/signup", s.handleAuthSignUp)
	engine.POST("/api/auth/signin", s.handleAuthSignIn)
	engine.POST("/api/auth/verify-email", s.handleAuthVerifyEmail)
	engine.POST("/api/auth/reset-password/request", s.handleAuthRequestReset)
	engine.POST("/api/auth/reset-password", s.handleAuthResetPassword)
	engine.GET("/api/session", s.handleSession)
	engine.POST("/api/session/refresh", s.handleSessionRefresh)
	engine.GET("/api/invitations/:token", s.handleLookupInvitation)

	api := engine.Group("/api", s.requireSession())
	api.POST("/session/logout", s.handleSessionLogout)

	api.GET("/workspaces", s.handleListWorkspaces)
	api.POST("/workspaces", s.handleCreateWorkspace)
	api.GET("/workspaces/:workspaceId", s.handleGetWorkspace)
	api.PUT("/workspaces/:workspaceId", s.handleUpdateWorkspace)
	api.DELETE("/workspaces/:workspaceId", s.handleDeleteWorkspace)
	api.GET("/workspaces/:workspaceId/members", s.handleListMembers)
	api.PUT("/workspaces/:workspaceId/members/:userId", s.handleUpdateMember)
	api.DELETE("/workspaces/:workspaceId/members/:userId", s.handleRemoveMember)
	api.GET("/workspaces/:workspaceId/invitations", s.handleListInvitations)
	api.POST("/workspaces/:workspaceId/invitations", s.handleCreateInvitation)
	api.DELETE("/workspaces/:workspaceId/invitations/:invitationId", s.handleRevokeInvitation)
	api.GET("/workspaces/:workspaceId/channels", s.handleListChannels)
	api.POST("/workspaces/:workspaceId/channels", s.handleCreateChannel)
	api.GET("/workspaces/:workspaceId/unread", s.handleUnreadCounts)
	api.GET("/workspaces/:workspaceId/tasks", s.handleListTasks)
	api.POST("/workspaces/:workspaceId/tasks", s.handleCreateTask)
	api.GET("/workspaces/:workspaceId/search", s.handleSearch)
	api.POST("/invitations/:token/accept", s.handleAcceptInvitation)

	api.GET("/channels/:channelId", s.handleGetChannel)
	api.PUT("/channels/:channelId", s.handleUpdateChannel)
	api.DELETE("/channels/:channelId", s.handleArchiveChannel)
	api.POST("/channels/:channelId/join", s.handleJoinChannel)
	api.POST("/channels/:channelId/leave", s.handleLeaveChannel)
	api.GET("/channels/:channelId/messages", s.handleListMessages)
	api.POST("/channels/:channelId/messages", s.handlePostMessage)
	api.POST("/channels/:channelId/read", s.handleMarkRead)
	api.POST("/channels/:channelId/uploads", s.handleUpload)
	api.POST("/channels/:channelId/export", s.handleExport)
	api.PUT("/messages/:messageId", s.handleEditMessage)
	api.DELETE("/messages/:messageId", s.handleDeleteMessage)
	api.GET("/uploads/:uploadId", s.handleGetUpload)

	api.PUT("/tasks/:taskId", s.handleUpdateTask)
	api.DELETE("/tasks/:taskId", s.handleDeleteTask)

	api.GET("/notifications", s.handleListNotifications)
	api.POST("/notifications/read-all", s.handleReadAllNotifications)
	api.GET("/notifications/preferences", s.handleGetPreferences)
	api.PUT("/notifications/preferences", s.handleUpdatePreferences)
	api.POST("/notifications/:notificationId/read", s.handleReadNotification)

	return engine
}

// fail maps err to the JSON error envelope. Server errors are logged here;
// expected failures are not.
func (s *HTTPServer) fail(c *gin.Context, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "code", code, "error", err)
	}
	writeError(c, status, code, message, details)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Admin-Key")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func writeError(c *gin.Context, status int, code, message string, details any) {
	response := gin.H{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	c.AbortWithStatusJSON(status, response)
}

// decodeBody treats an empty body as an empty object.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("INVALID_QUERY", key+" must be an integer")
	}
	return value, nil
}

func queryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(c.Query(key))
	return err == nil && value
}
