package transactions

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewRepository(gormDB), mock
}

func TestCompareAndSetStatusReportsWinner(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "transactions" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.CompareAndSetStatus(context.Background(), id, enums.TransactionStatusPending, enums.TransactionStatusSuccess, nil)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatusLosesWhenStatusMoved(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE "transactions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.CompareAndSetStatus(context.Background(), uuid.New(), enums.TransactionStatusPending, enums.TransactionStatusFailed, map[string]any{"failure_reason": "declined"})
	require.NoError(t, err)
	require.False(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGatewayOrderIDRejectsTerminalRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE "transactions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetGatewayOrderID(context.Background(), uuid.New(), "order_abc")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRecordAttemptFailureSkipsClosedTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE "transactions" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.RecordAttemptFailure(context.Background(), uuid.New(), "card declined")
	require.NoError(t, err)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryWrapsDriverErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	cause := errors.New("connection reset")

	mock.ExpectExec(`UPDATE "transactions" SET`).WillReturnError(cause)

	err := repo.RecordSettlementFailure(context.Background(), uuid.New(), "boom")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.ErrorIs(t, err, cause)
}

func TestFindByIDMapsMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
