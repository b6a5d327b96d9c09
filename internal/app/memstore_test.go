package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chatflow/api/internal/store"
)

type passwordReset struct {
	userID    string
	expiresAt time.Time
	used      bool
}

type refreshSession struct {
	userID    string
	expiresAt time.Time
}

// memStore is an in-memory DataStore mirroring the Postgres store's
// semantics closely enough for handler tests.
type memStore struct {
	mu  sync.Mutex
	now func() time.Time

	pingErr   error
	uploadErr error

	users          map[string]store.User
	resets         map[string]passwordReset
	refresh        map[string]refreshSession
	revoked        map[string]time.Time
	workspaces     map[string]store.Workspace
	members        map[string]map[string]store.WorkspaceMember
	channels       map[string]store.Channel
	channelMembers map[string]map[string]bool
	messages       []store.Message
	nextSeq        map[string]int64
	readStates     map[string]int64
	invitations    map[string]store.Invitation
	notifications  []store.Notification
	prefs          map[string]store.NotificationPreferences
	tasks          map[string]store.Task
	uploads        map[string]store.Upload
}

func newMemStore() *memStore {
	return &memStore{
		now:            time.Now,
		users:          map[string]store.User{},
		resets:         map[string]passwordReset{},
		refresh:        map[string]refreshSession{},
		revoked:        map[string]time.Time{},
		workspaces:     map[string]store.Workspace{},
		members:        map[string]map[string]store.WorkspaceMember{},
		channels:       map[string]store.Channel{},
		channelMembers: map[string]map[string]bool{},
		nextSeq:        map[string]int64{},
		readStates:     map[string]int64{},
		invitations:    map[string]store.Invitation{},
		prefs:          map[string]store.NotificationPreferences{},
		tasks:          map[string]store.Task{},
		uploads:        map[string]store.Upload{},
	}
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

// users and sessions

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrConflict
		}
	}
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *memStore) UpdateUserVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	m.users[userID] = user
	return nil
}

func (m *memStore) VerifyUserEmail(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.users {
		if user.VerificationToken == token && token != "" {
			if user.VerificationExpiresAt != nil && !m.now().Before(*user.VerificationExpiresAt) {
				return sql.ErrNoRows
			}
			user.IsEmailVerified = true
			user.VerificationToken = ""
			user.VerificationExpiresAt = nil
			m.users[id] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *memStore) CreatePasswordReset(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[token] = passwordReset{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset, ok := m.resets[token]
	if !ok || reset.used || !m.now().Before(reset.expiresAt) {
		return "", sql.ErrNoRows
	}
	return reset.userID, nil
}

func (m *memStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset := m.resets[token]
	reset.used = true
	m.resets[token] = reset
	return nil
}

func (m *memStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = refreshSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.refresh[tokenHash]
	if !ok || !m.now().Before(session.expiresAt) {
		return store.User{}, sql.ErrNoRows
	}
	user, ok := m.users[session.userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *memStore) RevokeAccessToken(_ context.Context, jti string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = exp
	return nil
}

func (m *memStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// workspaces

func (m *memStore) CreateWorkspace(_ context.Context, workspace store.Workspace, defaultChannel store.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.workspaces {
		if existing.Slug == workspace.Slug {
			return store.ErrConflict
		}
	}
	now := m.now()
	workspace.Role = ""
	workspace.CreatedAt, workspace.UpdatedAt = now, now
	m.workspaces[workspace.ID] = workspace
	m.members[workspace.ID] = map[string]store.WorkspaceMember{}
	m.addMemberLocked(workspace.ID, workspace.CreatedBy, "owner")
	return m.insertChannelLocked(defaultChannel)
}

func (m *memStore) addMemberLocked(workspaceID, userID, role string) {
	if _, ok := m.members[workspaceID][userID]; ok {
		return
	}
	user := m.users[userID]
	m.members[workspaceID][userID] = store.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        role,
		JoinedAt:    m.now(),
	}
}

func (m *memStore) insertChannelLocked(channel store.Channel) error {
	for _, existing := range m.channels {
		if existing.WorkspaceID == channel.WorkspaceID && existing.Name == channel.Name {
			return store.ErrConflict
		}
	}
	now := m.now()
	channel.IsMember = false
	channel.CreatedAt, channel.UpdatedAt = now, now
	m.channels[channel.ID] = channel
	m.channelMembers[channel.ID] = map[string]bool{channel.CreatedBy: true}
	return nil
}

func (m *memStore) ListWorkspacesForUser(_ context.Context, userID string) ([]store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Workspace, 0)
	for id, workspace := range m.workspaces {
		if member, ok := m.members[id][userID]; ok {
			workspace.Role = member.Role
			items = append(items, workspace)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (m *memStore) GetWorkspace(_ context.Context, workspaceID string) (store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	workspace, ok := m.workspaces[workspaceID]
	if !ok {
		return store.Workspace{}, sql.ErrNoRows
	}
	return workspace, nil
}

func (m *memStore) UpdateWorkspace(_ context.Context, workspaceID, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	workspace, ok := m.workspaces[workspaceID]
	if !ok {
		return sql.ErrNoRows
	}
	workspace.Name, workspace.Description, workspace.UpdatedAt = name, description, m.now()
	m.workspaces[workspaceID] = workspace
	return nil
}

func (m *memStore) DeleteWorkspace(_ context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workspaces[workspaceID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.workspaces, workspaceID)
	delete(m.members, workspaceID)
	for id, channel := range m.channels {
		if channel.WorkspaceID == workspaceID {
			delete(m.channels, id)
			delete(m.channelMembers, id)
		}
	}
	return nil
}

func (m *memStore) GetWorkspaceMember(_ context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[workspaceID][userID]
	if !ok {
		return store.WorkspaceMember{}, sql.ErrNoRows
	}
	return member, nil
}

func (m *memStore) ListWorkspaceMembers(_ context.Context, workspaceID string) ([]store.WorkspaceMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.WorkspaceMember, 0, len(m.members[workspaceID]))
	for _, member := range m.members[workspaceID] {
		items = append(items, member)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DisplayName < items[j].DisplayName })
	return items, nil
}

func (m *memStore) UpdateWorkspaceMemberRole(_ context.Context, workspaceID, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[workspaceID][userID]
	if !ok {
		return sql.ErrNoRows
	}
	member.Role = role
	m.members[workspaceID][userID] = member
	return nil
}

func (m *memStore) RemoveWorkspaceMember(_ context.Context, workspaceID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[workspaceID][userID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.members[workspaceID], userID)
	for id, channel := range m.channels {
		if channel.WorkspaceID == workspaceID {
			delete(m.channelMembers[id], userID)
		}
	}
	return nil
}

func (m *memStore) CountWorkspaceOwners(_ context.Context, workspaceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, member := range m.members[workspaceID] {
		if member.Role == "owner" {
			count++
		}
	}
	return count, nil
}

// channels

func (m *memStore) CreateChannel(_ context.Context, channel store.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertChannelLocked(channel)
}

func (m *memStore) canReadLocked(channel store.Channel, userID string) bool {
	if _, ok := m.members[channel.WorkspaceID][userID]; !ok {
		return false
	}
	return !channel.IsPrivate || m.channelMembers[channel.ID][userID]
}

func (m *memStore) ListChannels(_ context.Context, workspaceID, userID string, includeArchived bool) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Channel, 0)
	for _, channel := range m.channels {
		if channel.WorkspaceID != workspaceID || (channel.IsArchived && !includeArchived) {
			continue
		}
		if channel.IsPrivate && !m.channelMembers[channel.ID][userID] {
			continue
		}
		channel.IsMember = m.channelMembers[channel.ID][userID]
		items = append(items, channel)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (m *memStore) GetChannel(_ context.Context, channelID string) (store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return store.Channel{}, sql.ErrNoRows
	}
	return channel, nil
}

func (m *memStore) GetChannelByName(_ context.Context, workspaceID, name string) (store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, channel := range m.channels {
		if channel.WorkspaceID == workspaceID && channel.Name == name {
			return channel, nil
		}
	}
	return store.Channel{}, sql.ErrNoRows
}

func (m *memStore) UpdateChannel(_ context.Context, channelID, name, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return sql.ErrNoRows
	}
	for id, existing := range m.channels {
		if id != channelID && existing.WorkspaceID == channel.WorkspaceID && existing.Name == name {
			return store.ErrConflict
		}
	}
	channel.Name, channel.Topic, channel.UpdatedAt = name, topic, m.now()
	m.channels[channelID] = channel
	return nil
}

func (m *memStore) ArchiveChannel(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return sql.ErrNoRows
	}
	channel.IsArchived = true
	m.channels[channelID] = channel
	return nil
}

func (m *memStore) AddChannelMember(_ context.Context, channelID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channelMembers[channelID] == nil {
		m.channelMembers[channelID] = map[string]bool{}
	}
	m.channelMembers[channelID][userID] = true
	return nil
}

func (m *memStore) RemoveChannelMember(_ context.Context, channelID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channelMembers[channelID], userID)
	return nil
}

func (m *memStore) IsChannelMember(_ context.Context, channelID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channelMembers[channelID][userID], nil
}

func (m *memStore) ListReadableChannelIDs(_ context.Context, workspaceID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0)
	for id, channel := range m.channels {
		if channel.WorkspaceID == workspaceID && !channel.IsArchived && m.canReadLocked(channel, userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) FilterChannelReaders(_ context.Context, channelID string, userIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return nil, nil
	}
	readers := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if m.canReadLocked(channel, id) {
			readers = append(readers, id)
		}
	}
	return readers, nil
}

// messages

func (m *memStore) InsertMessage(_ context.Context, message store.Message) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq[message.ChannelID]++
	message.Seq = m.nextSeq[message.ChannelID]
	message.CreatedAt = m.now()
	message.AuthorName = m.users[message.AuthorID].DisplayName
	m.messages = append(m.messages, message)
	return message, nil
}

func (m *memStore) ListMessages(_ context.Context, channelID string, beforeSeq int64, limit int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Message, 0)
	for i := len(m.messages) - 1; i >= 0 && len(items) < limit; i-- {
		message := m.messages[i]
		if message.ChannelID != channelID || message.DeletedAt != nil {
			continue
		}
		if beforeSeq > 0 && message.Seq >= beforeSeq {
			continue
		}
		items = append(items, message)
	}
	return items, nil
}

func (m *memStore) messageIndexLocked(messageID string) int {
	for i, message := range m.messages {
		if message.ID == messageID {
			return i
		}
	}
	return -1
}

func (m *memStore) GetMessage(_ context.Context, messageID string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.messageIndexLocked(messageID)
	if i < 0 {
		return store.Message{}, sql.ErrNoRows
	}
	return m.messages[i], nil
}

func (m *memStore) UpdateMessageBody(_ context.Context, messageID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.messageIndexLocked(messageID)
	if i < 0 || m.messages[i].DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := m.now()
	m.messages[i].Body = body
	m.messages[i].EditedAt = &now
	return nil
}

func (m *memStore) SoftDeleteMessage(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.messageIndexLocked(messageID)
	if i < 0 || m.messages[i].DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := m.now()
	m.messages[i].DeletedAt = &now
	return nil
}

func (m *memStore) LatestMessageSeq(_ context.Context, channelID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest int64
	for _, message := range m.messages {
		if message.ChannelID == channelID && message.DeletedAt == nil && message.Seq > latest {
			latest = message.Seq
		}
	}
	return latest, nil
}

func (m *memStore) MarkChannelRead(_ context.Context, channelID, userID string, seq int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := channelID + "/" + userID
	if seq > m.readStates[key] {
		m.readStates[key] = seq
	}
	return m.readStates[key], nil
}

func (m *memStore) UnreadCounts(_ context.Context, workspaceID, userID string) ([]store.UnreadCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.UnreadCount, 0)
	for id, channel := range m.channels {
		if channel.WorkspaceID != workspaceID || channel.IsArchived || !m.channelMembers[id][userID] {
			continue
		}
		lastRead := m.readStates[id+"/"+userID]
		count := 0
		for _, message := range m.messages {
			if message.ChannelID == id && message.DeletedAt == nil && message.AuthorID != userID && message.Seq > lastRead {
				count++
			}
		}
		items = append(items, store.UnreadCount{ChannelID: id, Unread: count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ChannelID < items[j].ChannelID })
	return items, nil
}

// invitations

func (m *memStore) withWorkspaceNamesLocked(inv store.Invitation) store.Invitation {
	inv.WorkspaceName = m.workspaces[inv.WorkspaceID].Name
	inv.InvitedByName = m.users[inv.InvitedBy].DisplayName
	return inv
}

func (m *memStore) CreateInvitation(_ context.Context, invitation store.Invitation) error {
	switch invitation.Role {
	case "admin", "member", "guest":
	default:
		return fmt.Errorf("invitations role check violated: %q", invitation.Role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, existing := range m.invitations {
		if existing.WorkspaceID != invitation.WorkspaceID || !strings.EqualFold(existing.Email, invitation.Email) || existing.Status != store.InvitationPending {
			continue
		}
		if !now.Before(existing.ExpiresAt) {
			existing.Status = store.InvitationExpired
			m.invitations[id] = existing
			continue
		}
		return store.ErrConflict
	}
	invitation.Email = strings.ToLower(invitation.Email)
	invitation.Status = store.InvitationPending
	invitation.CreatedAt = now
	m.invitations[invitation.ID] = invitation
	return nil
}

func (m *memStore) FindPendingInvitation(_ context.Context, workspaceID, email string) (store.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, inv := range m.invitations {
		if inv.WorkspaceID == workspaceID && strings.EqualFold(inv.Email, email) && inv.Status == store.InvitationPending && now.Before(inv.ExpiresAt) {
			return m.withWorkspaceNamesLocked(inv), nil
		}
	}
	return store.Invitation{}, sql.ErrNoRows
}

func (m *memStore) GetInvitation(_ context.Context, invitationID string) (store.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	if !ok {
		return store.Invitation{}, sql.ErrNoRows
	}
	return m.withWorkspaceNamesLocked(inv), nil
}

func (m *memStore) GetInvitationByToken(_ context.Context, token string) (store.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Token == token {
			return m.withWorkspaceNamesLocked(inv), nil
		}
	}
	return store.Invitation{}, sql.ErrNoRows
}

func (m *memStore) ListInvitations(_ context.Context, workspaceID string) ([]store.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Invitation, 0)
	for _, inv := range m.invitations {
		if inv.WorkspaceID == workspaceID {
			items = append(items, m.withWorkspaceNamesLocked(inv))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *memStore) RevokeInvitation(_ context.Context, invitationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	if !ok || inv.Status != store.InvitationPending {
		return sql.ErrNoRows
	}
	inv.Status = store.InvitationRevoked
	m.invitations[invitationID] = inv
	return nil
}

func (m *memStore) AcceptInvitation(_ context.Context, invitationID, userID, defaultChannelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	now := m.now()
	if !ok || inv.Status != store.InvitationPending || !now.Before(inv.ExpiresAt) {
		return sql.ErrNoRows
	}
	inv.Status = store.InvitationAccepted
	inv.AcceptedBy = &userID
	inv.AcceptedAt = &now
	m.invitations[invitationID] = inv
	m.addMemberLocked(inv.WorkspaceID, userID, inv.Role)
	if defaultChannelID != "" {
		m.channelMembers[defaultChannelID][userID] = true
	}
	return nil
}

// notifications

func (m *memStore) InsertNotification(_ context.Context, notification store.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *memStore) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0 && len(items) < limit; i-- {
		n := m.notifications[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		items = append(items, n)
	}
	return items, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, notificationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == notificationID && n.UserID == userID {
			if n.ReadAt == nil {
				now := m.now()
				m.notifications[i].ReadAt = &now
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	now := m.now()
	for i, n := range m.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			m.notifications[i].ReadAt = &now
			updated++
		}
	}
	return updated, nil
}

func (m *memStore) GetNotificationPreferences(_ context.Context, userID string) (store.NotificationPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefs, ok := m.prefs[userID]; ok {
		return prefs, nil
	}
	return store.DefaultNotificationPreferences(userID), nil
}

func (m *memStore) UpsertNotificationPreferences(_ context.Context, prefs store.NotificationPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefs.UpdatedAt = m.now()
	m.prefs[prefs.UserID] = prefs
	return nil
}

func (m *memStore) notificationsFor(userID string) []store.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// tasks

func (m *memStore) InsertTask(_ context.Context, task store.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.CreatedAt, task.UpdatedAt = m.now(), m.now()
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) ListTasks(_ context.Context, workspaceID string, filter store.TaskFilter) ([]store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Task, 0)
	for _, task := range m.tasks {
		if task.WorkspaceID != workspaceID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.AssigneeID != "" && (task.AssigneeID == nil || *task.AssigneeID != filter.AssigneeID) {
			continue
		}
		items = append(items, task)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *memStore) GetTask(_ context.Context, taskID string) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (m *memStore) UpdateTask(_ context.Context, task store.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[task.ID]
	if !ok {
		return sql.ErrNoRows
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = m.now()
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.tasks, taskID)
	return nil
}

// uploads

func (m *memStore) InsertUpload(_ context.Context, upload store.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	upload.CreatedAt = m.now()
	m.uploads[upload.ID] = upload
	return nil
}

func (m *memStore) GetUpload(_ context.Context, uploadID string) (store.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, ok := m.uploads[uploadID]
	if !ok {
		return store.Upload{}, sql.ErrNoRows
	}
	return upload, nil
}

var errPingFailed = errors.New("connection refused")
