package service

import (
	"context"
	"database/sql"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/akarpov/ledger-service/internal/models"
	"github.com/akarpov/ledger-service/internal/repository"
	"github.com/akarpov/ledger-service/internal/token"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *token.Service, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	tokens := token.NewService("test-secret", time.Hour)
	svc := NewService(repository.NewRepository(db), tokens, nil, log)
	return svc, mock, tokens, func() { db.Close() }
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func expectUserByEmail(mock sqlmock.Sqlmock, email, hash string) {
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash"}).
		AddRow(int64(1), "test", email, hash)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash")).
		WithArgs(email).
		WillReturnRows(rows)
}

func expectTransactions(mock sqlmock.Sqlmock, userID int64, txs ...models.Transaction) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "timestamp"})
	for _, tx := range txs {
		rows.AddRow(tx.ID, userID, tx.Type, tx.Amount.String(), time.Now())
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, type, amount, timestamp")).
		WithArgs(userID).
		WillReturnRows(rows)
}

func TestLogin_Success(t *testing.T) {
	svc, mock, tokens, closeDB := newTestService(t)
	defer closeDB()

	expectUserByEmail(mock, "test@example.com", hashOf(t, "1234"))

	tok, user, err := svc.Login(context.Background(), "test@example.com", "1234")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	userID, err := tokens.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectUserByEmail(mock, "test@example.com", hashOf(t, "1234"))

	_, _, err := svc.Login(context.Background(), "test@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "1234")

	// Indistinguishable from a wrong password.
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_EmptyFields(t *testing.T) {
	svc, _, _, closeDB := newTestService(t)
	defer closeDB()

	var vErr *ValidationError
	_, _, err := svc.Login(context.Background(), "", "1234")
	require.ErrorAs(t, err, &vErr)

	_, _, err = svc.Login(context.Background(), "test@example.com", "")
	require.ErrorAs(t, err, &vErr)
}

func TestCreateTransaction_Validation(t *testing.T) {
	svc, _, _, closeDB := newTestService(t)
	defer closeDB()

	cases := []struct {
		name   string
		txType string
		amount string
	}{
		{"bad type", "transfer", "10"},
		{"zero amount", models.TypeDeposit, "0"},
		{"negative amount", models.TypeDeposit, "-5"},
		{"over bound", models.TypeDeposit, "100000.01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var vErr *ValidationError
			_, err := svc.CreateTransaction(context.Background(), 1, tc.txType, decimal.RequireFromString(tc.amount))
			require.ErrorAs(t, err, &vErr)
		})
	}
}

func TestCreateTransaction_AtBound(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(int64(1), models.TypeDeposit, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(10), time.Now()))

	id, err := svc.CreateTransaction(context.Background(), 1, models.TypeDeposit, decimal.NewFromInt(100000))
	require.NoError(t, err)
	require.Equal(t, int64(10), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_WithdrawInsufficientBalance(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 1, models.Transaction{ID: 1, Type: models.TypeDeposit, Amount: decimal.NewFromInt(100)})

	var vErr *ValidationError
	_, err := svc.CreateTransaction(context.Background(), 1, models.TypeWithdraw, decimal.NewFromInt(150))
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "amount", vErr.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_WithdrawWithinBalance(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 1, models.Transaction{ID: 1, Type: models.TypeDeposit, Amount: decimal.NewFromInt(500)})
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(int64(1), models.TypeWithdraw, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(2), time.Now()))

	id, err := svc.CreateTransaction(context.Background(), 1, models.TypeWithdraw, decimal.NewFromInt(500))
	require.NoError(t, err)
	require.Equal(t, int64(2), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransactionAmount_Success(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 1, models.Transaction{ID: 5, Type: models.TypeDeposit, Amount: decimal.NewFromInt(500)})
	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(sqlmock.AnyArg(), int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.UpdateTransactionAmount(context.Background(), 1, 5, decimal.NewFromInt(700))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransactionAmount_NotOwned(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	// The caller's ledger does not contain the target: absent and foreign
	// look the same, and no UPDATE is ever issued.
	expectTransactions(mock, 2)

	err := svc.UpdateTransactionAmount(context.Background(), 2, 5, decimal.NewFromInt(700))
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransactionAmount_WithdrawRejected(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 1, models.Transaction{ID: 5, Type: models.TypeWithdraw, Amount: decimal.NewFromInt(50)})

	var vErr *ValidationError
	err := svc.UpdateTransactionAmount(context.Background(), 1, 5, decimal.NewFromInt(70))
	require.ErrorAs(t, err, &vErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransactionAmount_NegativeResultRejected(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	// deposit 500, withdraw 400; shrinking the deposit to 100 would fold
	// to -300.
	expectTransactions(mock, 1,
		models.Transaction{ID: 5, Type: models.TypeDeposit, Amount: decimal.NewFromInt(500)},
		models.Transaction{ID: 6, Type: models.TypeWithdraw, Amount: decimal.NewFromInt(400)},
	)

	var vErr *ValidationError
	err := svc.UpdateTransactionAmount(context.Background(), 1, 5, decimal.NewFromInt(100))
	require.ErrorAs(t, err, &vErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTransaction_Success(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 1, models.Transaction{ID: 5, Type: models.TypeWithdraw, Amount: decimal.NewFromInt(50)})
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions")).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.DeleteTransaction(context.Background(), 1, 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTransaction_NotOwned(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 2)

	err := svc.DeleteTransaction(context.Background(), 2, 5)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTransaction_DepositBackingWithdrawalsRejected(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	expectTransactions(mock, 1,
		models.Transaction{ID: 5, Type: models.TypeDeposit, Amount: decimal.NewFromInt(500)},
		models.Transaction{ID: 6, Type: models.TypeWithdraw, Amount: decimal.NewFromInt(400)},
	)

	var vErr *ValidationError
	err := svc.DeleteTransaction(context.Background(), 1, 5)
	require.ErrorAs(t, err, &vErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_UserVanished(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash")).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Snapshot(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshot_Success(t *testing.T) {
	svc, mock, _, closeDB := newTestService(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash"}).
			AddRow(int64(1), "test", "test@example.com", "$2a$10$hash"))
	expectTransactions(mock, 1,
		models.Transaction{ID: 1, Type: models.TypeDeposit, Amount: decimal.NewFromInt(500)},
		models.Transaction{ID: 2, Type: models.TypeWithdraw, Amount: decimal.NewFromInt(120)},
	)

	snap, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "test@example.com", snap.User.Email)
	require.True(t, snap.Balance.Equal(decimal.NewFromInt(380)))
	require.Len(t, snap.Transactions, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
