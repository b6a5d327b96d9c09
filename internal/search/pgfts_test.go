package search

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceConverter flattens string slices so sqlmock can compare ANY($n) args.
type sliceConverter struct{}

func (sliceConverter) ConvertValue(v any) (driver.Value, error) {
	if values, ok := v.([]string); ok {
		return strings.Join(values, ","), nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func TestPgFTSSearchScopesToReadableChannels(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(sliceConverter{}))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\)\s+FROM messages m`).
		WithArgs("deploy", "ws_1", "ch_1,ch_2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`ts_headline\('english', m.body.*m.deleted_at IS NULL.*ORDER BY ts_rank`).
		WithArgs("deploy", "ws_1", "ch_1,ch_2", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id", "workspace_id", "author_id", "display_name", "snippet", "seq", "created_at"}).
			AddRow("msg_1", "ch_1", "ws_1", "usr_1", "Ann", "ship the <mark>deploy</mark>", int64(7), created))

	results, total, err := NewPgFTS(db).Search(context.Background(), Query{
		Text: "deploy", WorkspaceID: "ws_1", ChannelIDs: []string{"ch_1", "ch_2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "msg_1", results[0].MessageID)
	assert.Equal(t, int64(7), results[0].Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFTSSkipsQueryWhenNothingMatches(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(sliceConverter{}))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	results, total, err := NewPgFTS(db).Search(context.Background(), Query{Text: "nothing", WorkspaceID: "ws_1", ChannelIDs: []string{"ch_1"}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAllRecordsConvertsTimestamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM messages m`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "channel_id", "author_id", "display_name", "body", "seq", "created_at"}).
			AddRow("msg_1", "ws_1", "ch_1", "usr_1", "Ann", "hello", int64(1), created))

	records, err := NewPgFTS(db).LoadAllRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, created.UnixMilli(), records[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
