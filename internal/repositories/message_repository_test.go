package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/models"
)

const (
	lockReactionsQuery   = `SELECT reactions FROM messages WHERE id=$1 FOR UPDATE`
	updateReactionsQuery = `UPDATE messages SET reactions=$2 WHERE id=$1`
)

func newSQLMockRepo(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func TestMessageRepoToggleLocksRowAndWritesBack(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReactionsQuery)).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"reactions"}).AddRow([]byte(`{"u1":"👍"}`)))
	mock.ExpectExec(regexp.QuoteMeta(updateReactionsQuery)).
		WithArgs("m1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reactions, err := repo.Toggle(context.Background(), "m1", "u2", "🎉")
	require.NoError(t, err)
	assert.Equal(t, models.Reactions{"u1": "👍", "u2": "🎉"}, reactions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoToggleMissingMessage(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReactionsQuery)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"reactions"}))
	mock.ExpectRollback()

	_, err := repo.Toggle(context.Background(), "missing", "u1", "👍")
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoToggleRollsBackOnWriteFailure(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReactionsQuery)).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"reactions"}).AddRow([]byte(`{}`)))
	mock.ExpectExec(regexp.QuoteMeta(updateReactionsQuery)).
		WithArgs("m1", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Toggle(context.Background(), "m1", "u1", "👍")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
