package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepoWithDB(sqlx.NewDb(db, "postgres"), 5*time.Second), mock
}

func TestRecordInsertsRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	entry := Entry{
		RunID:         "run-123",
		Campaign:      "genesis-drop",
		Contract:      "abcdef",
		Action:        "proceed",
		LaunchHourUTC: 19,
		Verdict:       "reliable",
		RiskScore:     24.0,
		Rationale:     []string{"combined risk score 24.0 is below the caution threshold 40.0"},
	}
	rationaleJSON, _ := json.Marshal(entry.Rationale)

	mock.ExpectQuery(`INSERT INTO decision_runs`).
		WithArgs("run-123", "genesis-drop", "abcdef", "proceed", 19, "reliable", 24.0, rationaleJSON).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), time.Now()))

	require.NoError(t, repo.Record(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordWrapsInsertError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO decision_runs`).
		WillReturnError(sqlmock.ErrCancelled)

	err := repo.Record(context.Background(), Entry{RunID: "run-x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert decision run")
}

func TestLatestScansRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	rationale, _ := json.Marshal([]string{"gas forecast trusted"})
	rows := sqlmock.NewRows([]string{
		"id", "run_id", "campaign", "contract", "action",
		"launch_hour_utc", "verdict", "risk_score", "rationale", "created_at",
	}).AddRow(int64(2), "run-2", "genesis-drop", "abcdef", "proceed", 19, "reliable", 24.0, rationale, created).
		AddRow(int64(1), "run-1", "genesis-drop", "abcdef", "do_not_proceed", -1, "", 82.5, []byte(`[]`), created.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, run_id, campaign`).
		WithArgs(10).
		WillReturnRows(rows)

	entries, err := repo.Latest(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, []string{"gas forecast trusted"}, entries[0].Rationale)
	assert.Equal(t, -1, entries[1].LaunchHourUTC)
	assert.NoError(t, mock.ExpectationsWereMet())
}
