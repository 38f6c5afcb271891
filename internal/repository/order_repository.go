package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/voucher-flash-sale/internal/model"
)

// ErrOrderNotFound is returned when an order id has no row yet.  For a
// freshly admitted order this simply means fulfillment has not caught
// up; handlers translate it into a 404 and clients poll again.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepo provides data access to the voucher_orders table.  Rows are
// written exactly once by the fulfillment worker and never mutated.
type OrderRepo struct {
	DB *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// ExistsByID reports whether an order row with the given id exists.
// The fulfillment worker calls this before materializing an entry so a
// redelivered entry (crash between commit and acknowledge) is detected
// and acknowledged instead of inserted twice.
func (r *OrderRepo) ExistsByID(ctx context.Context, orderID int64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM voucher_orders WHERE id=? LIMIT 1", orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts the order row inside the caller's transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.VoucherOrder) error {
	if o.CreateTime.IsZero() {
		o.CreateTime = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO voucher_orders (id, voucher_id, user_id, create_time) VALUES (?,?,?,?)",
		o.ID, o.VoucherID, o.UserID, o.CreateTime)
	return err
}

// GetByID fetches an order by id.
func (r *OrderRepo) GetByID(ctx context.Context, orderID int64) (model.VoucherOrder, error) {
	var o model.VoucherOrder
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,voucher_id,user_id,create_time FROM voucher_orders WHERE id=? LIMIT 1",
		orderID).Scan(&o.ID, &o.VoucherID, &o.UserID, &o.CreateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrOrderNotFound
	}
	return o, err
}

// ListByUser returns the user's orders, newest first.  Order ids embed
// their creation second in the high bits, so sorting by id is sorting
// by time.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.VoucherOrder, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,voucher_id,user_id,create_time FROM voucher_orders WHERE user_id=? ORDER BY id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.VoucherOrder
	for rows.Next() {
		var o model.VoucherOrder
		if err := rows.Scan(&o.ID, &o.VoucherID, &o.UserID, &o.CreateTime); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
