package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with a context carrying them.
type LogFields struct {
	RequestID   string
	UserID      string
	WorkspaceID string
	ChannelID   string
	Component   string
}

// WithLogFields merges fields into ctx; non-empty values in fields win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing
	if next.RequestID != "" {
		result.RequestID = next.RequestID
	}
	if next.UserID != "" {
		result.UserID = next.UserID
	}
	if next.WorkspaceID != "" {
		result.WorkspaceID = next.WorkspaceID
	}
	if next.ChannelID != "" {
		result.ChannelID = next.ChannelID
	}
	if next.Component != "" {
		result.Component = next.Component
	}
	return result
}
