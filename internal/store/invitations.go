package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const invitationColumns = `i.id, i.workspace_id, w.name, i.email, i.token, i.role, i.status, i.invited_by,
	COALESCE(u.display_name, ''), i.accepted_by, i.expires_at, i.created_at, i.accepted_at`

const invitationFrom = `
	FROM invitations i
	JOIN workspaces w ON w.id = i.workspace_id
	LEFT JOIN users u ON u.id = i.invited_by`

func scanInvitation(row interface{ Scan(...any) error }) (Invitation, error) {
	var item Invitation
	var acceptedBy sql.NullString
	var acceptedAt sql.NullTime
	err := row.Scan(&item.ID, &item.WorkspaceID, &item.WorkspaceName, &item.Email, &item.Token, &item.Role,
		&item.Status, &item.InvitedBy, &item.InvitedByName, &acceptedBy, &item.ExpiresAt, &item.CreatedAt, &acceptedAt)
	if err != nil {
		return Invitation{}, err
	}
	item.AcceptedBy = stringPtr(acceptedBy)
	item.AcceptedAt = timePtr(acceptedAt)
	return item, nil
}

// CreateInvitation first expires stale pending invitations for the same
// address, then inserts. A live pending invitation yields ErrConflict.
func (s *PostgresStore) CreateInvitation(ctx context.Context, invitation Invitation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create invitation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE invitations SET status='expired'
		WHERE workspace_id=$1 AND LOWER(email)=LOWER($2) AND status='pending' AND expires_at <= NOW()
	`, invitation.WorkspaceID, invitation.Email); err != nil {
		return fmt.Errorf("expire stale invitations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO invitations (id, workspace_id, email, token, role, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
	`, invitation.ID, invitation.WorkspaceID, strings.ToLower(invitation.Email), invitation.Token, invitation.Role,
		invitation.InvitedBy, invitation.ExpiresAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create invitation: %w", err)
	}
	return nil
}

// FindPendingInvitation returns the live pending invitation for an address.
func (s *PostgresStore) FindPendingInvitation(ctx context.Context, workspaceID, email string) (Invitation, error) {
	return scanInvitation(s.db.QueryRowContext(ctx, `SELECT `+invitationColumns+invitationFrom+`
		WHERE i.workspace_id=$1 AND LOWER(i.email)=LOWER($2) AND i.status='pending' AND i.expires_at > NOW()
	`, workspaceID, email))
}

func (s *PostgresStore) GetInvitation(ctx context.Context, invitationID string) (Invitation, error) {
	return scanInvitation(s.db.QueryRowContext(ctx, `SELECT `+invitationColumns+invitationFrom+` WHERE i.id=$1`, invitationID))
}

func (s *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	return scanInvitation(s.db.QueryRowContext(ctx, `SELECT `+invitationColumns+invitationFrom+` WHERE i.token=$1`, token))
}

func (s *PostgresStore) ListInvitations(ctx context.Context, workspaceID string) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invitationColumns+invitationFrom+`
		WHERE i.workspace_id=$1
		ORDER BY i.created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	items := make([]Invitation, 0)
	for rows.Next() {
		item, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RevokeInvitation(ctx context.Context, invitationID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET status='revoked' WHERE id=$1 AND status='pending'
	`, invitationID)
	if err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	return requireAffected(result)
}

// AcceptInvitation marks the invitation accepted, adds the membership and
// joins the user to defaultChannelID when it is not empty. It returns
// sql.ErrNoRows when the invitation is no longer pending.
func (s *PostgresStore) AcceptInvitation(ctx context.Context, invitationID, userID, defaultChannelID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept invitation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var workspaceID, role string
	err = tx.QueryRowContext(ctx, `
		UPDATE invitations SET status='accepted', accepted_by=$2, accepted_at=NOW()
		WHERE id=$1 AND status='pending' AND expires_at > NOW()
		RETURNING workspace_id, role
	`, invitationID, userID).Scan(&workspaceID, &role)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, workspaceID, userID, role); err != nil {
		return fmt.Errorf("add invited member: %w", err)
	}
	if defaultChannelID != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)
			ON CONFLICT (channel_id, user_id) DO NOTHING
		`, defaultChannelID, userID); err != nil {
			return fmt.Errorf("join default channel: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept invitation: %w", err)
	}
	return nil
}
