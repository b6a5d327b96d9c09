package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"chatflow/api/internal/authpw"
	"chatflow/api/internal/email"
	"chatflow/api/internal/notify"
	"chatflow/api/internal/rbac"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const invitationTTL = 7 * 24 * time.Hour

// CreateInvitation stores a pending invitation, mails the invite link and,
// when the address already has an account, leaves an in-app notification.
func (s *Service) CreateInvitation(ctx context.Context, session Session, workspaceID, emailAddress, role string) (map[string]any, error) {
	actor, err := s.authorize(ctx, workspaceID, session.UserID, rbac.ActionInvite)
	if err != nil {
		return nil, err
	}

	emailAddress = authpw.NormalizeEmail(emailAddress)
	if parsed, err := mail.ParseAddress(emailAddress); emailAddress == "" || err != nil || parsed.Address != emailAddress {
		return nil, badRequest("INVALID_EMAIL", "A valid email address is required")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = string(rbac.RoleMember)
	}
	if !rbac.Valid(role) || rbac.Role(role) == rbac.RoleOwner {
		return nil, badRequest("INVALID_ROLE", "Role must be admin, member or guest")
	}
	if !rbac.CanAssign(rbac.Normalize(actor.Role), rbac.Role(role)) {
		return nil, forbidden(string(rbac.ActionInvite))
	}

	invitee, err := s.store.GetUserByEmail(ctx, emailAddress)
	switch {
	case err == nil:
		if _, err := s.store.GetWorkspaceMember(ctx, workspaceID, invitee.ID); err == nil {
			return nil, domainError(http.StatusConflict, "ALREADY_MEMBER", "This person is already a member of the workspace", nil)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	case errors.Is(err, sql.ErrNoRows):
		invitee = store.User{}
	default:
		return nil, err
	}

	if existing, err := s.store.FindPendingInvitation(ctx, workspaceID, emailAddress); err == nil {
		return nil, pendingInvitationConflict(existing)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	invitation := store.Invitation{
		ID:            util.NewID("inv"),
		WorkspaceID:   workspaceID,
		WorkspaceName: workspace.Name,
		Email:         emailAddress,
		Token:         util.NewToken(32),
		Role:          role,
		Status:        store.InvitationPending,
		InvitedBy:     session.UserID,
		InvitedByName: session.UserName,
		ExpiresAt:     s.now().Add(invitationTTL).UTC(),
	}
	if err := s.store.CreateInvitation(ctx, invitation); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, pendingInvitationConflict(invitation)
		}
		return nil, err
	}

	inviteURL := s.cfg.InviteURL(invitation.Token)
	emailSent := false
	if s.emailConfigured() {
		err := s.mailer.SendInvitationEmail(ctx, email.InvitationData{
			To:            emailAddress,
			WorkspaceName: workspace.Name,
			InviterName:   session.UserName,
			Role:          role,
			InviteURL:     inviteURL,
			ExpiresAt:     invitation.ExpiresAt,
		})
		if err != nil {
			slog.ErrorContext(ctx, "invitation email failed", "invitation_id", invitation.ID, "error", err)
		} else {
			emailSent = true
		}
	}

	if invitee.ID != "" && s.notifier != nil {
		_, err := s.notifier.Dispatch(ctx, notify.Event{
			Kind:         store.NotificationInvitation,
			WorkspaceID:  workspaceID,
			ActorID:      session.UserID,
			RecipientIDs: []string{invitee.ID},
			Title:        session.UserName + " invited you to join " + workspace.Name,
			Body:         "You have been invited as " + role + ".",
			Link:         inviteURL,
			SkipEmail:    emailSent,
		})
		if err != nil {
			slog.WarnContext(ctx, "invitation notification failed", "invitation_id", invitation.ID, "error", err)
		}
	}

	return map[string]any{
		"id":        invitation.ID,
		"email":     invitation.Email,
		"role":      invitation.Role,
		"inviteUrl": inviteURL,
		"expiresAt": invitation.ExpiresAt,
		"emailSent": emailSent,
	}, nil
}

func (s *Service) ListInvitations(ctx context.Context, workspaceID, userID string) ([]map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionInvite); err != nil {
		return nil, err
	}
	invitations, err := s.store.ListInvitations(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]map[string]any, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, presentInvitation(inv, inv.EffectiveStatus(now)))
	}
	return out, nil
}

func (s *Service) RevokeInvitation(ctx context.Context, workspaceID, invitationID, userID string) error {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionInvite); err != nil {
		return err
	}
	invitation, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil || invitation.WorkspaceID != workspaceID {
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return notFound("INVITATION_NOT_FOUND", "Invitation not found")
		}
		return err
	}
	if err := s.store.RevokeInvitation(ctx, invitationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusConflict, "INVITATION_NOT_PENDING", "Only pending invitations can be revoked", nil)
		}
		return err
	}
	return nil
}

// LookupInvitation is public: it shows what a link grants without
// requiring an account.
func (s *Service) LookupInvitation(ctx context.Context, token string) (map[string]any, error) {
	invitation, err := s.liveInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"workspaceId":   invitation.WorkspaceID,
		"workspaceName": invitation.WorkspaceName,
		"invitedByName": invitation.InvitedByName,
		"email":         invitation.Email,
		"role":          invitation.Role,
		"status":        store.InvitationPending,
		"valid":         true,
		"expiresAt":     invitation.ExpiresAt,
	}, nil
}

// AcceptInvitation joins the caller to the workspace and its default
// channel. The invitation must be addressed to the caller's email.
func (s *Service) AcceptInvitation(ctx context.Context, session Session, token string) (map[string]any, error) {
	invitation, err := s.liveInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(session.Email), strings.TrimSpace(invitation.Email)) {
		return nil, domainError(http.StatusForbidden, "EMAIL_MISMATCH", "This invitation was sent to a different email address", nil)
	}

	defaultChannelID := ""
	channel, err := s.store.GetChannelByName(ctx, invitation.WorkspaceID, defaultChannelName)
	switch {
	case err == nil:
		defaultChannelID = channel.ID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	if err := s.store.AcceptInvitation(ctx, invitation.ID, session.UserID, defaultChannelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, statusGone("INVITATION_GONE", "This invitation is no longer valid", nil)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "invitation accepted", "invitation_id", invitation.ID, "workspace_id", invitation.WorkspaceID, "user_id", session.UserID)
	return map[string]any{
		"workspaceId":      invitation.WorkspaceID,
		"workspaceName":    invitation.WorkspaceName,
		"role":             invitation.Role,
		"defaultChannelId": defaultChannelID,
	}, nil
}

func (s *Service) liveInvitation(ctx context.Context, token string) (store.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return store.Invitation{}, notFound("INVITATION_NOT_FOUND", "Invitation not found")
	}
	invitation, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Invitation{}, notFound("INVITATION_NOT_FOUND", "Invitation not found")
		}
		return store.Invitation{}, err
	}
	if status := invitation.EffectiveStatus(s.now()); status != store.InvitationPending {
		return store.Invitation{}, statusGone("INVITATION_GONE", "This invitation is no longer valid", map[string]any{"status": status})
	}
	return invitation, nil
}

func pendingInvitationConflict(existing store.Invitation) *DomainError {
	return domainError(http.StatusConflict, "INVITATION_PENDING", "A pending invitation already exists for this email", map[string]any{
		"invitationId": existing.ID,
		"expiresAt":    existing.ExpiresAt,
	})
}
