package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"chatflow/api/internal/notify"
	"chatflow/api/internal/rbac"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const maxTaskTitle = 200

// TaskInput carries task fields; nil pointers leave a field unchanged on
// update. An empty AssigneeID or ChannelID clears it.
type TaskInput struct {
	Title       *string
	Description *string
	Status      *string
	AssigneeID  *string
	ChannelID   *string
	DueAt       *time.Time
	ClearDueAt  bool
}

func (s *Service) ListTasks(ctx context.Context, workspaceID, userID string, filter store.TaskFilter) ([]map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, userID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if filter.Status != "" && !validTaskStatus(filter.Status) {
		return nil, invalidTaskStatus()
	}
	tasks, err := s.store.ListTasks(ctx, workspaceID, filter)
	if err != nil {
		return nil, err
	}
	return presentList(tasks, presentTask), nil
}

func (s *Service) CreateTask(ctx context.Context, session Session, workspaceID string, input TaskInput) (map[string]any, error) {
	if _, err := s.authorize(ctx, workspaceID, session.UserID, rbac.ActionManageTasks); err != nil {
		return nil, err
	}
	task := store.Task{
		ID:          util.NewID("task"),
		WorkspaceID: workspaceID,
		Status:      store.TaskTodo,
		CreatedBy:   session.UserID,
	}
	if input.Title == nil {
		return nil, badRequest("INVALID_TASK", "Task title is required")
	}
	if err := s.applyTaskInput(ctx, &task, input); err != nil {
		return nil, err
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	s.notifyAssignee(ctx, session, task)

	created, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return presentTask(created), nil
}

func (s *Service) UpdateTask(ctx context.Context, session Session, taskID string, input TaskInput) (map[string]any, error) {
	task, err := s.loadTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}
	previousAssignee := derefString(task.AssigneeID)
	if err := s.applyTaskInput(ctx, &task, input); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	if assignee := derefString(task.AssigneeID); assignee != "" && assignee != previousAssignee {
		s.notifyAssignee(ctx, session, task)
	}

	updated, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return presentTask(updated), nil
}

func (s *Service) DeleteTask(ctx context.Context, taskID, userID string) error {
	task, err := s.loadTask(ctx, taskID, userID)
	if err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, task.ID)
}

func (s *Service) loadTask(ctx context.Context, taskID, userID string) (store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, notFound("TASK_NOT_FOUND", "Task not found")
		}
		return store.Task{}, err
	}
	if _, err := s.authorize(ctx, task.WorkspaceID, userID, rbac.ActionManageTasks); err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "WORKSPACE_NOT_FOUND" {
			return store.Task{}, notFound("TASK_NOT_FOUND", "Task not found")
		}
		return store.Task{}, err
	}
	return task, nil
}

func (s *Service) applyTaskInput(ctx context.Context, task *store.Task, input TaskInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || len([]rune(title)) > maxTaskTitle {
			return badRequest("INVALID_TASK", "Task title must be 1-200 characters")
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if !validTaskStatus(*input.Status) {
			return invalidTaskStatus()
		}
		task.Status = *input.Status
	}
	if input.AssigneeID != nil {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if assignee == "" {
			task.AssigneeID = nil
		} else {
			if _, err := s.store.GetWorkspaceMember(ctx, task.WorkspaceID, assignee); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return badRequest("INVALID_ASSIGNEE", "Assignee must be a workspace member")
				}
				return err
			}
			task.AssigneeID = &assignee
		}
	}
	if input.ChannelID != nil {
		channelID := strings.TrimSpace(*input.ChannelID)
		if channelID == "" {
			task.ChannelID = nil
		} else {
			channel, err := s.store.GetChannel(ctx, channelID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if err != nil || channel.WorkspaceID != task.WorkspaceID {
				return badRequest("INVALID_CHANNEL", "Channel must belong to the task's workspace")
			}
			task.ChannelID = &channelID
		}
	}
	if input.ClearDueAt {
		task.DueAt = nil
	} else if input.DueAt != nil {
		due := input.DueAt.UTC()
		task.DueAt = &due
	}
	return nil
}

func (s *Service) notifyAssignee(ctx context.Context, session Session, task store.Task) {
	if s.notifier == nil || task.AssigneeID == nil {
		return
	}
	link := ""
	if workspace, err := s.store.GetWorkspace(ctx, task.WorkspaceID); err == nil {
		link = s.cfg.TaskURL(workspace.Slug, task.ID)
	}
	_, err := s.notifier.Dispatch(ctx, notify.Event{
		Kind:         store.NotificationTaskAssigned,
		WorkspaceID:  task.WorkspaceID,
		ActorID:      session.UserID,
		RecipientIDs: []string{*task.AssigneeID},
		Title:        session.UserName + " assigned you a task: " + task.Title,
		Body:         notify.Excerpt(task.Description, mentionExcerpt),
		Link:         link,
	})
	logDropped(ctx, "task assignment notification", err)
}

func validTaskStatus(status string) bool {
	switch status {
	case store.TaskTodo, store.TaskInProgress, store.TaskDone:
		return true
	}
	return false
}

func invalidTaskStatus() *DomainError {
	return badRequest("INVALID_STATUS", "Status must be todo, in_progress or done")
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
