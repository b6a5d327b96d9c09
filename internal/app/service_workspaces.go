package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"chatflow/api/internal/rbac"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const (
	defaultChannelName  = "general"
	defaultChannelTopic = "Workspace-wide announcements and conversation"
	maxWorkspaceName    = 80
	maxSlugLength       = 48
)

func (s *Service) ListWorkspaces(ctx context.Context, userID string) ([]map[string]any, error) {
	workspaces, err := s.store.ListWorkspacesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return presentList(workspaces, presentWorkspace), nil
}

// CreateWorkspace makes the caller the owner and opens the default channel.
// A taken slug gets a short random suffix.
func (s *Service) CreateWorkspace(ctx context.Context, session Session, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxWorkspaceName {
		return nil, badRequest("INVALID_WORKSPACE_NAME", "Workspace name must be 1-80 characters")
	}

	workspace := store.Workspace{
		ID:          util.NewID("ws"),
		Name:        name,
		Slug:        Slugify(name),
		Description: strings.TrimSpace(description),
		CreatedBy:   session.UserID,
		Role:        string(rbac.RoleOwner),
	}
	channel := store.Channel{
		ID:          util.NewID("ch"),
		WorkspaceID: workspace.ID,
		Name:        defaultChannelName,
		Topic:       defaultChannelTopic,
		CreatedBy:   session.UserID,
		IsMember:    true,
	}

	err := s.store.CreateWorkspace(ctx, workspace, channel)
	if errors.Is(err, store.ErrConflict) {
		workspace.Slug = workspace.Slug + "-" + util.NewID("")[:6]
		err = s.store.CreateWorkspace(ctx, workspace, channel)
	}
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "WORKSPACE_EXISTS", "Workspace slug already taken", nil)
		}
		return nil, err
	}

	created, err := s.store.GetWorkspace(ctx, workspace.ID)
	if err != nil {
		return nil, err
	}
	created.Role = workspace.Role
	payload := presentWorkspace(created)
	payload["defaultChannel"] = presentChannel(channel)
	return payload, nil
}

func (s *Service) GetWorkspace(ctx context.Context, workspaceID, userID string) (map[string]any, error) {
	member, err := s.membership(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	workspace.Role = member.Role
	return presentWorkspace(workspace), nil
}

func (s *Service) UpdateWorkspace(ctx context.Context, workspaceID, userID string, name, description *string) (map[string]any, error) {
	member, err := s.authorize(ctx, workspaceID, userID, rbac.ActionManageWorkspace)
	if err != nil {
		return nil, err
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" || utf8.RuneCountInString(trimmed) > maxWorkspaceName {
			return nil, badRequest("INVALID_WORKSPACE_NAME", "Workspace name must be 1-80 characters")
		}
		workspace.Name = trimmed
	}
	if description != nil {
		workspace.Description = strings.TrimSpace(*description)
	}
	if err := s.store.UpdateWorkspace(ctx, workspaceID, workspace.Name, workspace.Description); err != nil {
		return nil, err
	}
	return s.GetWorkspace(ctx, workspaceID, member.UserID)
}

func (s *Service) DeleteWorkspace(ctx context.Context, workspaceID, userID string) error {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionDeleteWorkspace); err != nil {
		return err
	}
	return s.store.DeleteWorkspace(ctx, workspaceID)
}

func (s *Service) ListMembers(ctx context.Context, workspaceID, userID string) ([]map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionRead); err != nil {
		return nil, err
	}
	members, err := s.store.ListWorkspaceMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return presentList(members, presentMember), nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, workspaceID, actorID, targetID, role string) (map[string]any, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !rbac.Valid(role) {
		return nil, badRequest("INVALID_ROLE", "Role must be owner, admin, member or guest")
	}
	actor, err := s.authorize(ctx, workspaceID, actorID, rbac.ActionManageMembers)
	if err != nil {
		return nil, err
	}
	target, err := s.workspaceMember(ctx, workspaceID, targetID)
	if err != nil {
		return nil, err
	}

	actorRole := rbac.Normalize(actor.Role)
	if !rbac.CanAssign(actorRole, rbac.Normalize(target.Role)) || !rbac.CanAssign(actorRole, rbac.Role(role)) {
		return nil, forbidden(string(rbac.ActionManageMembers))
	}
	if target.Role == string(rbac.RoleOwner) && role != string(rbac.RoleOwner) {
		if err := s.ensureAnotherOwner(ctx, workspaceID); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateWorkspaceMemberRole(ctx, workspaceID, targetID, role); err != nil {
		return nil, err
	}
	target.Role = role
	return presentMember(target), nil
}

// RemoveMember lets admins remove members they outrank and lets anyone
// leave. The last owner can do neither.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, actorID, targetID string) error {
	actor, err := s.membership(ctx, workspaceID, actorID)
	if err != nil {
		return err
	}
	target := actor
	if targetID != actorID {
		if target, err = s.workspaceMember(ctx, workspaceID, targetID); err != nil {
			return err
		}
		if !rbac.CanAssign(rbac.Normalize(actor.Role), rbac.Normalize(target.Role)) {
			return forbidden(string(rbac.ActionManageMembers))
		}
	}
	if target.Role == string(rbac.RoleOwner) {
		if err := s.ensureAnotherOwner(ctx, workspaceID); err != nil {
			return err
		}
	}

	if err := s.store.RemoveWorkspaceMember(ctx, workspaceID, targetID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "workspace member removed", "workspace_id", workspaceID, "user_id", targetID, "by", actorID)
	return nil
}

func (s *Service) workspaceMember(ctx context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
	member, err := s.store.GetWorkspaceMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.WorkspaceMember{}, notFound("MEMBER_NOT_FOUND", "Member not found")
		}
		return store.WorkspaceMember{}, err
	}
	return member, nil
}

func (s *Service) ensureAnotherOwner(ctx context.Context, workspaceID string) error {
	owners, err := s.store.CountWorkspaceOwners(ctx, workspaceID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return domainError(http.StatusConflict, "LAST_OWNER", "A workspace must keep at least one owner", nil)
	}
	return nil
}

// Slugify lower-cases name and joins runs of letters and digits with
// dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "workspace"
	}
	return slug
}
