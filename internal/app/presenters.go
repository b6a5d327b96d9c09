package app

import (
	"chatflow/api/internal/store"
)

func presentWorkspace(ws store.Workspace) map[string]any {
	return map[string]any{
		"id":          ws.ID,
		"name":        ws.Name,
		"slug":        ws.Slug,
		"description": ws.Description,
		"createdBy":   ws.CreatedBy,
		"role":        ws.Role,
		"createdAt":   ws.CreatedAt,
		"updatedAt":   ws.UpdatedAt,
	}
}

func presentMember(member store.WorkspaceMember) map[string]any {
	return map[string]any{
		"userId":      member.UserID,
		"displayName": member.DisplayName,
		"email":       member.Email,
		"role":        member.Role,
		"joinedAt":    member.JoinedAt,
	}
}

func presentChannel(channel store.Channel) map[string]any {
	return map[string]any{
		"id":          channel.ID,
		"workspaceId": channel.WorkspaceID,
		"name":        channel.Name,
		"topic":       channel.Topic,
		"isPrivate":   channel.IsPrivate,
		"isArchived":  channel.IsArchived,
		"isMember":    channel.IsMember,
		"createdBy":   channel.CreatedBy,
		"createdAt":   channel.CreatedAt,
		"updatedAt":   channel.UpdatedAt,
	}
}

func presentMessage(message store.Message) map[string]any {
	return map[string]any{
		"id":         message.ID,
		"seq":        message.Seq,
		"channelId":  message.ChannelID,
		"authorId":   message.AuthorID,
		"authorName": message.AuthorName,
		"body":       message.Body,
		"parentId":   message.ParentID,
		"editedAt":   message.EditedAt,
		"createdAt":  message.CreatedAt,
	}
}

func presentInvitation(inv store.Invitation, status string) map[string]any {
	return map[string]any{
		"id":            inv.ID,
		"workspaceId":   inv.WorkspaceID,
		"workspaceName": inv.WorkspaceName,
		"email":         inv.Email,
		"role":          inv.Role,
		"status":        status,
		"invitedBy":     inv.InvitedBy,
		"invitedByName": inv.InvitedByName,
		"expiresAt":     inv.ExpiresAt,
		"createdAt":     inv.CreatedAt,
		"acceptedAt":    inv.AcceptedAt,
	}
}

func presentNotification(n store.Notification) map[string]any {
	return map[string]any{
		"id":          n.ID,
		"workspaceId": n.WorkspaceID,
		"kind":        n.Kind,
		"title":       n.Title,
		"body":        n.Body,
		"link":        n.Link,
		"read":        n.ReadAt != nil,
		"readAt":      n.ReadAt,
		"createdAt":   n.CreatedAt,
	}
}

func presentPreferences(prefs store.NotificationPreferences) map[string]any {
	return map[string]any{
		"emailMentions":     prefs.EmailMentions,
		"emailTaskAssigned": prefs.EmailTaskAssigned,
		"emailInvitations":  prefs.EmailInvitations,
	}
}

func presentTask(task store.Task) map[string]any {
	return map[string]any{
		"id":          task.ID,
		"workspaceId": task.WorkspaceID,
		"channelId":   task.ChannelID,
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"assigneeId":  task.AssigneeID,
		"dueAt":       task.DueAt,
		"createdBy":   task.CreatedBy,
		"createdAt":   task.CreatedAt,
		"updatedAt":   task.UpdatedAt,
	}
}

func presentUpload(upload store.Upload) map[string]any {
	return map[string]any{
		"id":          upload.ID,
		"workspaceId": upload.WorkspaceID,
		"channelId":   upload.ChannelID,
		"fileName":    upload.FileName,
		"contentType": upload.ContentType,
		"sizeBytes":   upload.SizeBytes,
		"url":         upload.PublicURL,
		"createdAt":   upload.CreatedAt,
	}
}

func presentList[T any](items []T, present func(T) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, present(item))
	}
	return out
}
