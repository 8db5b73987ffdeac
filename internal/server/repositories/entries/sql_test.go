package entries

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qSelectByID   = `SELECT id, owner, text, conversation_history, turn_count, growth, hint, hint_status, category, is_completed, created_at FROM entries WHERE id = \$1 AND owner = \$2`
	qAppend       = `UPDATE entries SET conversation_history = \$1, turn_count = \$2 WHERE id = \$3 AND owner = \$4 AND turn_count = \$5 AND is_completed = FALSE`
	qFinalize     = `UPDATE entries SET growth = \$1, hint = \$2, category = \$3, is_completed = TRUE WHERE id = \$4 AND owner = \$5 AND turn_count = \$6 AND is_completed = FALSE`
	qHint         = `UPDATE entries SET hint_status = \$1 WHERE id = \$2 AND owner = \$3 AND is_completed = TRUE`
	qListComplete = `FROM entries WHERE owner = \$1 AND is_completed = TRUE ORDER BY created_at DESC, id DESC`
)

var entryCols = []string{"id", "owner", "text", "conversation_history", "turn_count", "growth", "hint", "hint_status", "category", "is_completed", "created_at"}

var created = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewSQLRepository(db, dbx.Postgres), mock
}

func ongoingRow(turn int) *sqlmock.Rows {
	return sqlmock.NewRows(entryCols).AddRow(
		"e-1", "u1", "I missed the deadline",
		[]byte(`[{"role":"user","content":"I missed the deadline","timestamp":"2025-05-01T09:00:00Z"},{"role":"assistant","content":"What happened?","timestamp":"2025-05-01T09:00:01Z"}]`),
		turn, nil, nil, "none", nil, false, created)
}

func completedRow() *sqlmock.Rows {
	return sqlmock.NewRows(entryCols).AddRow(
		"e-1", "u1", "I missed the deadline", []byte(`[]`), 2,
		"Learned to ask for help.", "Set a reminder.", "tried", "仕事・キャリア", true, created)
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO entries \(id, owner, text, conversation_history, turn_count, hint_status, is_completed, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, FALSE, \$7\)`).
		WithArgs("e-1", "u1", "I missed the deadline", sqlmock.AnyArg(), 1, "none", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Entry{
		ID: "e-1", Owner: "u1", Text: "I missed the deadline", TurnCount: 1,
		HintStatus: models.HintNone, CreatedAt: created,
		History: []models.Message{{Role: models.RoleUser, Content: "I missed the deadline", Timestamp: created}},
	})
	require.NoError(t, err)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO entries`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Entry{ID: "e-1", Owner: "u1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qSelectByID).WithArgs("e-1", "u1").WillReturnRows(ongoingRow(1))

	e, err := repo.Get(context.Background(), "e-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "e-1", e.ID)
	assert.Equal(t, 1, e.TurnCount)
	require.Len(t, e.History, 2)
	assert.Equal(t, models.RoleAssistant, e.History[1].Role)
	assert.Nil(t, e.Growth)
	assert.Nil(t, e.Category)
	assert.Equal(t, models.HintNone, e.HintStatus)
	assert.False(t, e.IsCompleted)
	assert.True(t, created.Equal(e.CreatedAt))
}

func TestGet_NotFoundAndErrors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qSelectByID).WithArgs("e-1", "intruder").WillReturnError(sql.ErrNoRows)
	_, err := repo.Get(context.Background(), "e-1", "intruder")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(qSelectByID).WithArgs("e-1", "u1").WillReturnError(errors.New("conn reset"))
	_, err = repo.Get(context.Background(), "e-1", "u1")
	assert.ErrorContains(t, err, "db error: conn reset")

	mock.ExpectQuery(qSelectByID).WithArgs("e-2", "u1").WillReturnRows(
		sqlmock.NewRows(entryCols).AddRow("e-2", "u1", "t", []byte(`{not json`), 1, nil, nil, "none", nil, false, created))
	_, err = repo.Get(context.Background(), "e-2", "u1")
	assert.ErrorContains(t, err, "decode history")
}

func TestAppendTurn_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qSelectByID).WithArgs("e-1", "u1").WillReturnRows(ongoingRow(1))
	mock.ExpectExec(qAppend).
		WithArgs(sqlmock.AnyArg(), 2, "e-1", "u1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := models.Message{Role: models.RoleUser, Content: "I underestimated it", Timestamp: created}
	assistant := models.Message{Role: models.RoleAssistant, Content: "That happens.", Timestamp: created}

	e, err := repo.AppendTurn(context.Background(), "e-1", "u1", 1, user, assistant)
	require.NoError(t, err)
	assert.Equal(t, 2, e.TurnCount)
	require.Len(t, e.History, 4)
	assert.Equal(t, "I underestimated it", e.History[2].Content)
	assert.Equal(t, "That happens.", e.History[3].Content)
}

func TestAppendTurn_Conflicts(t *testing.T) {
	ctx := context.Background()
	msg := models.Message{Role: models.RoleUser, Content: "x"}

	t.Run("lost race", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelectByID).WillReturnRows(ongoingRow(1))
		mock.ExpectExec(qAppend).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.AppendTurn(ctx, "e-1", "u1", 1, msg, msg)
		assert.ErrorIs(t, err, common.ErrVersionConflict)
	})

	t.Run("stale expected turn", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelectByID).WillReturnRows(ongoingRow(3))

		_, err := repo.AppendTurn(ctx, "e-1", "u1", 2, msg, msg)
		assert.ErrorIs(t, err, common.ErrVersionConflict)
	})

	t.Run("completed", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelectByID).WillReturnRows(completedRow())

		_, err := repo.AppendTurn(ctx, "e-1", "u1", 2, msg, msg)
		assert.ErrorIs(t, err, common.ErrAlreadyCompleted)
	})

	t.Run("absent", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelectByID).WillReturnError(sql.ErrNoRows)

		_, err := repo.AppendTurn(ctx, "e-1", "u1", 1, msg, msg)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestFinalize_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(qFinalize).
		WithArgs("Learned to ask for help.", "Set a reminder.", "仕事・キャリア", "e-1", "u1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(qSelectByID).WithArgs("e-1", "u1").WillReturnRows(completedRow())

	hint := "Set a reminder."
	e, err := repo.Finalize(context.Background(), "e-1", "u1", 2, "Learned to ask for help.", &hint, "仕事・キャリア")
	require.NoError(t, err)
	assert.True(t, e.IsCompleted)
	require.NotNil(t, e.Growth)
	assert.Equal(t, "Learned to ask for help.", *e.Growth)
	require.NotNil(t, e.Category)
}

func TestFinalize_NilHint(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(qFinalize).
		WithArgs("g", nil, "その他", "e-1", "u1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(qSelectByID).WillReturnRows(completedRow())

	_, err := repo.Finalize(context.Background(), "e-1", "u1", 1, "g", nil, "その他")
	require.NoError(t, err)
}

func TestFinalize_NoRowUpdated(t *testing.T) {
	ctx := context.Background()

	t.Run("already completed", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qFinalize).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectByID).WillReturnRows(completedRow())

		_, err := repo.Finalize(ctx, "e-1", "u1", 2, "g", nil, "その他")
		assert.ErrorIs(t, err, common.ErrAlreadyCompleted)
	})

	t.Run("absent or foreign", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qFinalize).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectByID).WillReturnError(sql.ErrNoRows)

		_, err := repo.Finalize(ctx, "e-1", "u2", 2, "g", nil, "その他")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("turn moved on", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qFinalize).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectByID).WillReturnRows(ongoingRow(3))

		_, err := repo.Finalize(ctx, "e-1", "u1", 2, "g", nil, "その他")
		assert.ErrorIs(t, err, common.ErrVersionConflict)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qFinalize).WillReturnError(errors.New("deadlock"))

		_, err := repo.Finalize(ctx, "e-1", "u1", 2, "g", nil, "その他")
		assert.ErrorContains(t, err, "db error: deadlock")
	})
}

func TestUpdateHintStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("completed entry", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qHint).WithArgs("tried", "e-1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(qSelectByID).WillReturnRows(completedRow())

		e, err := repo.UpdateHintStatus(ctx, "e-1", "u1", models.HintTried)
		require.NoError(t, err)
		assert.Equal(t, models.HintTried, e.HintStatus)
	})

	t.Run("ongoing entry", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qHint).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectByID).WillReturnRows(ongoingRow(1))

		_, err := repo.UpdateHintStatus(ctx, "e-1", "u1", models.HintSkipped)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("foreign entry", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qHint).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectByID).WillReturnError(sql.ErrNoRows)

		_, err := repo.UpdateHintStatus(ctx, "e-1", "u2", models.HintSkipped)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestListCompleted(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(entryCols).
		AddRow("e-2", "u1", "newer", []byte(`[]`), 1, "g2", nil, "none", "その他", true, created.Add(time.Hour)).
		AddRow("e-1", "u1", "older", []byte(`[]`), 3, "g1", "h1", "skipped", "人間関係", true, created)
	mock.ExpectQuery(qListComplete).WithArgs("u1").WillReturnRows(rows)

	list, err := repo.ListCompleted(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e-2", list[0].ID)
	assert.Nil(t, list[0].Hint)
	assert.Equal(t, "h1", *list[1].Hint)
	assert.Equal(t, models.HintSkipped, list[1].HintStatus)
}

func TestListCompleted_EmptyIsNotNil(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(qListComplete).WithArgs("u9").WillReturnRows(sqlmock.NewRows(entryCols))

	list, err := repo.ListCompleted(context.Background(), "u9")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListCompleted_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(qListComplete).WillReturnError(errors.New("timeout"))

	_, err := repo.ListCompleted(context.Background(), "u1")
	assert.ErrorContains(t, err, "db error: timeout")
}

func TestCountByOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM entries WHERE owner = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := repo.CountByOwner(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()
	q := `DELETE FROM entries WHERE id = \$1 AND owner = \$2`

	mock.ExpectExec(q).WithArgs("e-1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Delete(ctx, "e-1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(q).WithArgs("e-1", "u2").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Delete(ctx, "e-1", "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(q).WillReturnError(errors.New("db down"))
	_, err = repo.Delete(ctx, "e-1", "u1")
	assert.ErrorContains(t, err, "db error")
}
