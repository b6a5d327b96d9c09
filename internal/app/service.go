package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"chatflow/api/internal/auth"
	"chatflow/api/internal/authpw"
	"chatflow/api/internal/config"
	"chatflow/api/internal/email"
	"chatflow/api/internal/export"
	"chatflow/api/internal/notify"
	"chatflow/api/internal/rbac"
	"chatflow/api/internal/search"
	"chatflow/api/internal/storage"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// SessionStore keeps refresh sessions and the access-token deny list.
// Both the Postgres store and the Redis session store satisfy it.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type DataStore interface {
	authpw.UserStore
	SessionStore

	Ping(ctx context.Context) error

	CreateWorkspace(ctx context.Context, workspace store.Workspace, defaultChannel store.Channel) error
	ListWorkspacesForUser(ctx context.Context, userID string) ([]store.Workspace, error)
	GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error)
	UpdateWorkspace(ctx context.Context, workspaceID, name, description string) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error
	GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (store.WorkspaceMember, error)
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, error)
	UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID, role string) error
	RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error
	CountWorkspaceOwners(ctx context.Context, workspaceID string) (int, error)

	CreateChannel(ctx context.Context, channel store.Channel) error
	ListChannels(ctx context.Context, workspaceID, userID string, includeArchived bool) ([]store.Channel, error)
	GetChannel(ctx context.Context, channelID string) (store.Channel, error)
	GetChannelByName(ctx context.Context, workspaceID, name string) (store.Channel, error)
	UpdateChannel(ctx context.Context, channelID, name, topic string) error
	ArchiveChannel(ctx context.Context, channelID string) error
	AddChannelMember(ctx context.Context, channelID, userID string) error
	RemoveChannelMember(ctx context.Context, channelID, userID string) error
	IsChannelMember(ctx context.Context, channelID, userID string) (bool, error)
	ListReadableChannelIDs(ctx context.Context, workspaceID, userID string) ([]string, error)
	FilterChannelReaders(ctx context.Context, channelID string, userIDs []string) ([]string, error)

	InsertMessage(ctx context.Context, message store.Message) (store.Message, error)
	ListMessages(ctx context.Context, channelID string, beforeSeq int64, limit int) ([]store.Message, error)
	GetMessage(ctx context.Context, messageID string) (store.Message, error)
	UpdateMessageBody(ctx context.Context, messageID, body string) error
	SoftDeleteMessage(ctx context.Context, messageID string) error
	LatestMessageSeq(ctx context.Context, channelID string) (int64, error)
	MarkChannelRead(ctx context.Context, channelID, userID string, seq int64) (int64, error)
	UnreadCounts(ctx context.Context, workspaceID, userID string) ([]store.UnreadCount, error)

	CreateInvitation(ctx context.Context, invitation store.Invitation) error
	FindPendingInvitation(ctx context.Context, workspaceID, email string) (store.Invitation, error)
	GetInvitation(ctx context.Context, invitationID string) (store.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (store.Invitation, error)
	ListInvitations(ctx context.Context, workspaceID string) ([]store.Invitation, error)
	RevokeInvitation(ctx context.Context, invitationID string) error
	AcceptInvitation(ctx context.Context, invitationID, userID, defaultChannelID string) error

	InsertNotification(ctx context.Context, notification store.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	GetNotificationPreferences(ctx context.Context, userID string) (store.NotificationPreferences, error)
	UpsertNotificationPreferences(ctx context.Context, prefs store.NotificationPreferences) error

	InsertTask(ctx context.Context, task store.Task) error
	ListTasks(ctx context.Context, workspaceID string, filter store.TaskFilter) ([]store.Task, error)
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	UpdateTask(ctx context.Context, task store.Task) error
	DeleteTask(ctx context.Context, taskID string) error

	InsertUpload(ctx context.Context, upload store.Upload) error
	GetUpload(ctx context.Context, uploadID string) (store.Upload, error)
}

type Mailer interface {
	IsConfigured() bool
	Mode() config.EmailMode
	SendVerificationEmail(ctx context.Context, to, userName, verificationURL string) error
	SendPasswordResetEmail(ctx context.Context, to, userName, resetURL string) error
	SendInvitationEmail(ctx context.Context, data email.InvitationData) error
}

type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.Object, error)
	PresignGet(ctx context.Context, key, fileName string, ttl time.Duration) (string, error)
	Check(ctx context.Context) error
	Remove(ctx context.Context, key string) error
}

type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexMessage(record search.MessageRecord)
	DeleteMessage(id string)
	Healthy() bool
	Engine() string
}

type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, event notify.Event) ([]store.Notification, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Service. Store is required; a nil
// Sessions falls back to Store, and the remaining integrations are
// optional and reported as disabled when absent.
type Deps struct {
	Store    DataStore
	Sessions SessionStore
	Redis    Pinger
	Mailer   Mailer
	Objects  ObjectStore
	Search   Searcher
	Exporter Exporter
	Notifier Notifier
}

type Service struct {
	cfg       config.Config
	store     DataStore
	sessions  SessionStore
	redis     Pinger
	passwords *authpw.Service
	mailer    Mailer
	objects   ObjectStore
	search    Searcher
	exporter  Exporter
	notifier  Notifier
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = deps.Store
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  sessions,
		redis:     deps.Redis,
		passwords: authpw.NewService(deps.Store),
		mailer:    deps.Mailer,
		objects:   deps.Objects,
		search:    deps.Search,
		exporter:  deps.Exporter,
		notifier:  deps.Notifier,
		now:       time.Now,
	}
}

func (s *Service) Config() config.Config {
	return s.cfg
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) emailConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token. The session store may only know the
// user ID, so the profile is always reloaded.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	owner, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// membership resolves the caller's role in a workspace. Non-members get the
// same 404 as a missing workspace.
func (s *Service) membership(ctx context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
	member, err := s.store.GetWorkspaceMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.WorkspaceMember{}, notFound("WORKSPACE_NOT_FOUND", "Workspace not found")
		}
		return store.WorkspaceMember{}, err
	}
	return member, nil
}

func (s *Service) authorize(ctx context.Context, workspaceID, userID string, action rbac.Action) (store.WorkspaceMember, error) {
	member, err := s.membership(ctx, workspaceID, userID)
	if err != nil {
		return store.WorkspaceMember{}, err
	}
	if !rbac.Can(rbac.Normalize(member.Role), action) {
		return store.WorkspaceMember{}, forbidden(string(action))
	}
	return member, nil
}

// channelAccess loads a channel the caller may read. Private channels are
// invisible to non-members.
func (s *Service) channelAccess(ctx context.Context, channelID, userID string) (store.Channel, store.WorkspaceMember, error) {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Channel{}, store.WorkspaceMember{}, notFound("CHANNEL_NOT_FOUND", "Channel not found")
		}
		return store.Channel{}, store.WorkspaceMember{}, err
	}
	member, err := s.store.GetWorkspaceMember(ctx, channel.WorkspaceID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Channel{}, store.WorkspaceMember{}, notFound("CHANNEL_NOT_FOUND", "Channel not found")
		}
		return store.Channel{}, store.WorkspaceMember{}, err
	}
	isMember, err := s.store.IsChannelMember(ctx, channel.ID, userID)
	if err != nil {
		return store.Channel{}, store.WorkspaceMember{}, err
	}
	if channel.IsPrivate && !isMember {
		return store.Channel{}, store.WorkspaceMember{}, notFound("CHANNEL_NOT_FOUND", "Channel not found")
	}
	channel.IsMember = isMember
	return channel, member, nil
}

func requireRole(member store.WorkspaceMember, action rbac.Action) error {
	if !rbac.Can(rbac.Normalize(member.Role), action) {
		return forbidden(string(action))
	}
	return nil
}

func statusGone(code, message string, details any) *DomainError {
	return domainError(http.StatusGone, code, message, details)
}
