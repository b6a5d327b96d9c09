package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatflow/api/internal/config"
)

func TestTraceHandlerAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(config.Config{Env: config.EnvProduction}, &buf))

	ctx := WithLogFields(context.Background(), LogFields{RequestID: "req-1", UserID: "usr_1"})
	ctx = WithLogFields(ctx, LogFields{WorkspaceID: "ws_1", Component: "chatflow.invitations"})
	log.InfoContext(ctx, "invitation created")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"user_id":"usr_1"`)
	assert.Contains(t, out, `"workspace_id":"ws_1"`)
	assert.Contains(t, out, `"component":"chatflow.invitations"`)
	assert.NotContains(t, out, "trace_id")
}

func TestWithLogFieldsKeepsExistingValues(t *testing.T) {
	ctx := WithLogFields(context.Background(), LogFields{RequestID: "req-1", UserID: "usr_1"})
	ctx = WithLogFields(ctx, LogFields{UserID: "usr_2"})

	fields := GetLogFields(ctx)
	assert.Equal(t, "req-1", fields.RequestID)
	assert.Equal(t, "usr_2", fields.UserID)
}
