package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateWorkspace inserts the workspace, makes its creator the owner and
// creates the default channel with the creator as its first member.
func (s *PostgresStore) CreateWorkspace(ctx context.Context, workspace Workspace, defaultChannel Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create workspace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, slug, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, workspace.ID, workspace.Name, workspace.Slug, workspace.Description, workspace.CreatedBy); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert workspace: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, 'owner')
	`, workspace.ID, workspace.CreatedBy); err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	if err := insertChannel(ctx, tx, defaultChannel); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.slug, w.description, w.created_by, wm.role, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members wm ON wm.workspace_id = w.id
		WHERE wm.user_id = $1
		ORDER BY w.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var item Workspace
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug, &item.Description, &item.CreatedBy, &item.Role, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, created_by, created_at, updated_at
		FROM workspaces WHERE id=$1
	`, workspaceID).Scan(&item.ID, &item.Name, &item.Slug, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name, description string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, workspaceID, name, description)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (WorkspaceMember, error) {
	var member WorkspaceMember
	err := s.db.QueryRowContext(ctx, `
		SELECT wm.workspace_id, wm.user_id, u.display_name, u.email, wm.role, wm.joined_at
		FROM workspace_members wm
		JOIN users u ON u.id = wm.user_id
		WHERE wm.workspace_id=$1 AND wm.user_id=$2
	`, workspaceID, userID).Scan(&member.WorkspaceID, &member.UserID, &member.DisplayName, &member.Email, &member.Role, &member.JoinedAt)
	if err != nil {
		return WorkspaceMember{}, err
	}
	return member, nil
}

func (s *PostgresStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wm.workspace_id, wm.user_id, u.display_name, u.email, wm.role, wm.joined_at
		FROM workspace_members wm
		JOIN users u ON u.id = wm.user_id
		WHERE wm.workspace_id=$1
		ORDER BY u.display_name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]WorkspaceMember, 0)
	for rows.Next() {
		var member WorkspaceMember
		if err := rows.Scan(&member.WorkspaceID, &member.UserID, &member.DisplayName, &member.Email, &member.Role, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspace_members SET role=$3 WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return requireAffected(result)
}

// RemoveWorkspaceMember drops the membership along with the user's channel
// memberships inside the workspace.
func (s *PostgresStore) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove member: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM channel_members
		WHERE user_id=$2 AND channel_id IN (SELECT id FROM channels WHERE workspace_id=$1)
	`, workspaceID, userID); err != nil {
		return fmt.Errorf("remove channel memberships: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM workspace_members WHERE workspace_id=$1 AND user_id=$2`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove member: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountWorkspaceOwners(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_members WHERE workspace_id=$1 AND role='owner'
	`, workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return count, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertChannel(ctx context.Context, db execer, channel Channel) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO channels (id, workspace_id, name, topic, is_private, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, channel.ID, channel.WorkspaceID, channel.Name, channel.Topic, channel.IsPrivate, channel.CreatedBy); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert channel: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)
		ON CONFLICT (channel_id, user_id) DO NOTHING
	`, channel.ID, channel.CreatedBy); err != nil {
		return fmt.Errorf("insert channel creator: %w", err)
	}
	return nil
}
