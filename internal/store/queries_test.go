package store

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sqlContaining matches a statement containing every fragment in order.
func sqlContaining(fragments ...string) string {
	quoted := make([]string, len(fragments))
	for i, fragment := range fragments {
		quoted[i] = regexp.QuoteMeta(fragment)
	}
	return `(?s)` + strings.Join(quoted, `.*`)
}

var testCreated = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestUnreadCountsSkipsDeletedAndOwnMessages(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(sqlContaining(
		`LEFT JOIN channel_read_states rs ON rs.channel_id = c.id AND rs.user_id = $2`,
		`m.deleted_at IS NULL`,
		`m.author_id <> $2`,
		`m.seq > COALESCE(rs.last_read_seq, 0)`,
		`NOT c.is_archived`,
		`cm.user_id = $2`,
	)).
		WithArgs("ws_1", "usr_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "count"}).
			AddRow("ch_general", int64(3)).
			AddRow("ch_random", int64(0)))

	counts, err := s.UnreadCounts(context.Background(), "ws_1", "usr_1")
	require.NoError(t, err)
	assert.Equal(t, []UnreadCount{{ChannelID: "ch_general", Unread: 3}, {ChannelID: "ch_random", Unread: 0}}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListChannelsHidesOthersPrivateChannels(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(sqlContaining(
		`WHERE c.workspace_id = $1`,
		`($3 OR NOT c.is_archived)`,
		`(NOT c.is_private OR EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = $2))`,
		`ORDER BY c.name`,
	)).
		WithArgs("ws_1", "usr_1", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "name", "topic", "is_private", "is_archived", "created_by", "created_at", "updated_at", "is_member"}).
			AddRow("ch_general", "ws_1", "general", "", false, false, "usr_0", testCreated, testCreated, true).
			AddRow("ch_secret", "ws_1", "secret", "", true, false, "usr_1", testCreated, testCreated, true).
			AddRow("ch_random", "ws_1", "random", "", false, false, "usr_0", testCreated, testCreated, false))

	channels, err := s.ListChannels(context.Background(), "ws_1", "usr_1", false)
	require.NoError(t, err)
	require.Len(t, channels, 3)
	assert.True(t, channels[1].IsPrivate)
	assert.True(t, channels[1].IsMember)
	assert.False(t, channels[2].IsMember)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReadableChannelIDsSkipsArchivedAndForeignPrivate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(sqlContaining(
		`SELECT c.id`,
		`NOT c.is_archived`,
		`(NOT c.is_private OR EXISTS(SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = $2))`,
	)).
		WithArgs("ws_1", "usr_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ch_a").AddRow("ch_b"))

	ids, err := s.ListReadableChannelIDs(context.Background(), "ws_1", "usr_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch_a", "ch_b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListChannelTranscriptKeepsLatestMessages(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(sqlContaining(
		`m.channel_id = $1 AND m.deleted_at IS NULL`,
		`ORDER BY m.seq DESC`,
		`LIMIT $2`,
		`) recent`,
		`ORDER BY recent.seq ASC`,
	)).
		WithArgs("ch_1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "channel_id", "author_id", "display_name", "body", "parent_id", "edited_at", "deleted_at", "created_at"}).
			AddRow("msg_5", int64(5), "ch_1", "usr_1", "Avery", "fifth", nil, nil, nil, testCreated).
			AddRow("msg_6", int64(6), "ch_1", "usr_1", "Avery", "sixth", nil, nil, nil, testCreated))

	items, err := s.ListChannelTranscript(context.Background(), "ch_1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(5), items[0].Seq)
	assert.Equal(t, int64(6), items[1].Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTasksAppliesOptionalFilters(t *testing.T) {
	s, mock := newMockStore(t)
	due := testCreated.Add(48 * time.Hour)

	mock.ExpectQuery(sqlContaining(
		`FROM tasks`,
		`WHERE workspace_id = $1`,
		`($2 = '' OR status = $2)`,
		`($3 = '' OR assignee_id = $3)`,
		`ORDER BY created_at DESC`,
	)).
		WithArgs("ws_1", "todo", "usr_2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "channel_id", "title", "description", "status", "assignee_id", "due_at", "created_by", "created_at", "updated_at"}).
			AddRow("task_1", "ws_1", nil, "Ship it", "", "todo", "usr_2", due, "usr_1", testCreated, testCreated))

	tasks, err := s.ListTasks(context.Background(), "ws_1", TaskFilter{Status: "todo", AssigneeID: "usr_2"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].ChannelID)
	require.NotNil(t, tasks[0].AssigneeID)
	assert.Equal(t, "usr_2", *tasks[0].AssigneeID)
	require.NotNil(t, tasks[0].DueAt)
	assert.True(t, due.Equal(*tasks[0].DueAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotificationsUnreadOnly(t *testing.T) {
	s, mock := newMockStore(t)
	read := testCreated.Add(time.Minute)

	mock.ExpectQuery(sqlContaining(
		`WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)`,
		`ORDER BY created_at DESC`,
		`LIMIT $3`,
	)).
		WithArgs("usr_1", true, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "workspace_id", "kind", "title", "body", "link", "read_at", "created_at"}).
			AddRow("ntf_1", "usr_1", "ws_1", NotificationMention, "Ana mentioned you", "", "", nil, testCreated).
			AddRow("ntf_2", "usr_1", "", NotificationInvitation, "Join Acme", "", "", read, testCreated))

	items, err := s.ListNotifications(context.Background(), "usr_1", true, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Nil(t, items[0].ReadAt)
	require.NotNil(t, items[1].ReadAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllNotificationsReadTouchesUnreadOnly(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(sqlContaining(`UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL`)).
		WithArgs("usr_1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	updated, err := s.MarkAllNotificationsRead(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotificationReadScopedToRecipient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(sqlContaining(`WHERE id=$1 AND user_id=$2`)).
		WithArgs("ntf_1", "usr_2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkNotificationRead(context.Background(), "ntf_1", "usr_2")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
