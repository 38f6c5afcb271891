package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	decrementStockSQL = "UPDATE vouchers SET stock = stock - 1 WHERE id = ? AND stock > 0"
	insertOrderSQL    = "INSERT INTO voucher_orders (id, voucher_id, user_id, create_time) VALUES (?,?,?,?)"
)

func newTestStore(t *testing.T) (*FulfillmentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFulfillmentStore(db, NewVoucherRepo(db), NewOrderRepo(db)), mock
}

func TestMaterializeOrder_Commits(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(decrementStockSQL)).
		WithArgs(uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertOrderSQL)).
		WithArgs(int64(111222333), uint64(10), uint64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.MaterializeOrder(context.Background(), 10, 100, 111222333)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeOrder_StockExhaustedRollsBack(t *testing.T) {
	store, mock := newTestStore(t)

	// Zero rows matched: the durable counter is already at zero.  The
	// transaction must roll back and no order row may be written.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(decrementStockSQL)).
		WithArgs(uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.MaterializeOrder(context.Background(), 10, 100, 111222333)
	assert.ErrorIs(t, err, ErrStockExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeOrder_InsertFailureRollsBack(t *testing.T) {
	store, mock := newTestStore(t)

	insertErr := errors.New("duplicate entry for key PRIMARY")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(decrementStockSQL)).
		WithArgs(uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertOrderSQL)).
		WithArgs(int64(111222333), uint64(10), uint64(100), sqlmock.AnyArg()).
		WillReturnError(insertErr)
	mock.ExpectRollback()

	err := store.MaterializeOrder(context.Background(), 10, 100, 111222333)
	assert.ErrorIs(t, err, insertErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeOrder_CommitFailure(t *testing.T) {
	store, mock := newTestStore(t)

	commitErr := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(decrementStockSQL)).
		WithArgs(uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertOrderSQL)).
		WithArgs(int64(111222333), uint64(10), uint64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(commitErr)

	err := store.MaterializeOrder(context.Background(), 10, 100, 111222333)
	assert.ErrorIs(t, err, commitErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderExists(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM voucher_orders WHERE id=? LIMIT 1")).
		WithArgs(int64(111222333)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := store.OrderExists(context.Background(), 111222333)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderExists_NoRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM voucher_orders WHERE id=? LIMIT 1")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := store.OrderExists(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, exists)
}
