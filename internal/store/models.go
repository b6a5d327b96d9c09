package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound aliases sql.ErrNoRows so callers can match either.
var ErrNotFound = sql.ErrNoRows

var ErrConflict = errors.New("conflict")

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRevoked  = "revoked"
	InvitationExpired  = "expired"
)

const (
	NotificationMention      = "mention"
	NotificationTaskAssigned = "task_assigned"
	NotificationInvitation   = "invitation"
)

const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	AvatarURL             string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Workspace struct {
	ID          string
	Name        string
	Slug        string
	Description string
	CreatedBy   string
	// Role is the requesting user's role when listed through membership.
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	DisplayName string
	Email       string
	Role        string
	JoinedAt    time.Time
}

type Channel struct {
	ID          string
	WorkspaceID string
	Name        string
	Topic       string
	IsPrivate   bool
	IsArchived  bool
	CreatedBy   string
	IsMember    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	ID         string
	Seq        int64
	ChannelID  string
	AuthorID   string
	AuthorName string
	Body       string
	ParentID   *string
	EditedAt   *time.Time
	DeletedAt  *time.Time
	CreatedAt  time.Time
}

type UnreadCount struct {
	ChannelID string
	Unread    int
}

type Invitation struct {
	ID            string
	WorkspaceID   string
	WorkspaceName string
	Email         string
	Token         string
	Role          string
	Status        string
	InvitedBy     string
	InvitedByName string
	AcceptedBy    *string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	AcceptedAt    *time.Time
}

// EffectiveStatus reports expired for pending invitations past their expiry.
func (i Invitation) EffectiveStatus(now time.Time) string {
	if i.Status == InvitationPending && !now.Before(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

type Notification struct {
	ID          string
	UserID      string
	WorkspaceID string
	Kind        string
	Title       string
	Body        string
	Link        string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

type NotificationPreferences struct {
	UserID            string
	EmailMentions     bool
	EmailTaskAssigned bool
	EmailInvitations  bool
	UpdatedAt         time.Time
}

func DefaultNotificationPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:            userID,
		EmailMentions:     true,
		EmailTaskAssigned: true,
		EmailInvitations:  true,
	}
}

type Task struct {
	ID          string
	WorkspaceID string
	ChannelID   *string
	Title       string
	Description string
	Status      string
	AssigneeID  *string
	DueAt       *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskFilter struct {
	Status     string
	AssigneeID string
}

type Upload struct {
	ID          string
	WorkspaceID string
	ChannelID   string
	MessageID   *string
	UploaderID  string
	ObjectKey   string
	FileName    string
	ContentType string
	SizeBytes   int64
	PublicURL   string
	CreatedAt   time.Time
}
