package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock, mock.Close), mock
}

func TestPostgres_GetProvider(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, name, industry_key, status, created_at FROM providers").
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "industry_key", "status", "created_at"}).
			AddRow("p-1", "Acme Conveyancing", "legal", "approved", now))

	p, err := st.GetProvider(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderApproved, p.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProvider_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, industry_key, status, created_at FROM providers").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetProvider(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WithTx_Serializable(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("UPDATE providers SET status").
		WithArgs(model.ProviderApproved, "p-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := st.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateProviderStatus(context.Background(), "p-1", model.ProviderApproved)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WithTx_RollsBackOnError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectRollback()

	boom := eris.New("boom")
	err := st.WithTx(context.Background(), func(tx Tx) error {
		return boom
	})
	assert.True(t, eris.Is(err, boom))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateEntryModeration_NotFound(t *testing.T) {
	st, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("UPDATE fee_entries SET visibility").
		WithArgs(model.VisibilityPublic, model.ModerationApproved, at, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := st.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateEntryModeration(context.Background(), "missing", model.VisibilityPublic, model.ModerationApproved, at)
	})
	assert.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertDispute_Duplicate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO disputes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := st.WithTx(context.Background(), func(tx Tx) error {
		return tx.InsertDispute(context.Background(), &model.Dispute{
			ID:      "d-1",
			EntryID: "e-1",
			Status:  model.DisputeStatusPending,
		})
	})
	assert.True(t, eris.Is(err, ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ActiveSchemaVersion(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT version FROM industry_schemas").
		WithArgs("legal").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(3))

	v, err := st.ActiveSchemaVersion(context.Background(), "legal")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	require.NoError(t, mock.ExpectationsWereMet())
}
