package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderRepoMock(t *testing.T) (*OrderRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOrderRepo(db), mock
}

func TestOrderGetByID(t *testing.T) {
	repo, mock := newOrderRepoMock(t)

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id,voucher_id,user_id,create_time FROM voucher_orders").
		WithArgs(int64(111222333)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "voucher_id", "user_id", "create_time"}).
			AddRow(int64(111222333), uint64(10), uint64(100), created))

	o, err := repo.GetByID(context.Background(), 111222333)
	require.NoError(t, err)
	assert.Equal(t, int64(111222333), o.ID)
	assert.Equal(t, uint64(10), o.VoucherID)
	assert.Equal(t, uint64(100), o.UserID)
	assert.Equal(t, created, o.CreateTime)
}

func TestOrderGetByID_NotFound(t *testing.T) {
	repo, mock := newOrderRepoMock(t)

	mock.ExpectQuery("SELECT id,voucher_id,user_id,create_time FROM voucher_orders").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "voucher_id", "user_id", "create_time"}))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderListByUser(t *testing.T) {
	repo, mock := newOrderRepoMock(t)

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id,voucher_id,user_id,create_time FROM voucher_orders WHERE user_id=\\? ORDER BY id DESC").
		WithArgs(uint64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "voucher_id", "user_id", "create_time"}).
			AddRow(int64(2), uint64(11), uint64(100), created).
			AddRow(int64(1), uint64(10), uint64(100), created))

	orders, err := repo.ListByUser(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(2), orders[0].ID, "newest first")
	assert.Equal(t, int64(1), orders[1].ID)
}

func TestOrderListByUser_Empty(t *testing.T) {
	repo, mock := newOrderRepoMock(t)

	mock.ExpectQuery("SELECT id,voucher_id,user_id,create_time FROM voucher_orders WHERE user_id=\\?").
		WithArgs(uint64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "voucher_id", "user_id", "create_time"}))

	orders, err := repo.ListByUser(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
