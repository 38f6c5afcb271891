package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/voucher-flash-sale/internal/model"
)

// ErrVoucherNotFound is returned when a voucher id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrVoucherNotFound = errors.New("voucher not found")

// VoucherRepo provides data access to the vouchers table.  Stock kept
// here is the durable counter; the Redis counter the admission gate
// decrements is seeded from this row and the two are reconciled by the
// fulfillment worker's conditional decrement.
type VoucherRepo struct {
	DB *sql.DB
}

// NewVoucherRepo returns a VoucherRepo bound to the provided database.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{DB: db} }

// Create inserts a voucher and returns its ID.
func (r *VoucherRepo) Create(ctx context.Context, v *model.Voucher) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO vouchers (title, stock, begin_time, end_time) VALUES (?,?,?,?)",
		v.Title, v.Stock, v.BeginTime.UTC(), v.EndTime.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a voucher by id.
func (r *VoucherRepo) GetByID(ctx context.Context, id uint64) (model.Voucher, error) {
	var v model.Voucher
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,title,stock,begin_time,end_time,created_at,updated_at FROM vouchers WHERE id=? LIMIT 1",
		id).Scan(&v.ID, &v.Title, &v.Stock, &v.BeginTime, &v.EndTime, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrVoucherNotFound
	}
	return v, err
}

// DecrementStockTx conditionally takes one unit of stock inside the
// caller's transaction.  The WHERE stock > 0 clause is what keeps the
// counter from going negative under concurrent workers: when it matches
// zero rows the stock is already exhausted and the caller must abort.
func (r *VoucherRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, voucherID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE vouchers SET stock = stock - 1 WHERE id = ? AND stock > 0",
		voucherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
