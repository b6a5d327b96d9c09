package store

import (
	"context"
	"database/sql"
	"fmt"
)

const taskColumns = `id, workspace_id, channel_id, title, description, status, assignee_id, due_at, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var item Task
	var channelID, assigneeID sql.NullString
	var dueAt sql.NullTime
	err := row.Scan(&item.ID, &item.WorkspaceID, &channelID, &item.Title, &item.Description, &item.Status,
		&assigneeID, &dueAt, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	item.ChannelID = stringPtr(channelID)
	item.AssigneeID = stringPtr(assigneeID)
	item.DueAt = timePtr(dueAt)
	return item, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, workspace_id, channel_id, title, description, status, assignee_id, due_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, task.ID, task.WorkspaceID, nullString(task.ChannelID), task.Title, task.Description, task.Status,
		nullString(task.AssigneeID), nullTime(task.DueAt), task.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, workspaceID string, filter TaskFilter) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE workspace_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR assignee_id = $3)
		ORDER BY created_at DESC
	`, workspaceID, filter.Status, filter.AssigneeID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, taskID))
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, status=$4, assignee_id=$5, due_at=$6, channel_id=$7, updated_at=NOW()
		WHERE id=$1
	`, task.ID, task.Title, task.Description, task.Status, nullString(task.AssigneeID), nullTime(task.DueAt), nullString(task.ChannelID))
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(result)
}
