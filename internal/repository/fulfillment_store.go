package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/voucher-flash-sale/internal/model"
)

// ErrStockExhausted is returned by MaterializeOrder when the conditional
// stock decrement matches zero rows.  The admission gate is the primary
// guard, so hitting this after acceptance is an anomaly: the caller must
// leave the entry unacknowledged rather than drop the order silently.
var ErrStockExhausted = errors.New("stock exhausted in system of record")

// FulfillmentStore is the fulfillment worker's view of the system of
// record: an idempotency check plus the single transaction that turns
// an accepted queue entry into a durable order.
type FulfillmentStore struct {
	db       *sql.DB
	vouchers *VoucherRepo
	orders   *OrderRepo
}

// NewFulfillmentStore returns a FulfillmentStore over the shared pool.
func NewFulfillmentStore(db *sql.DB, vouchers *VoucherRepo, orders *OrderRepo) *FulfillmentStore {
	return &FulfillmentStore{db: db, vouchers: vouchers, orders: orders}
}

// OrderExists reports whether the order id is already materialized.
func (s *FulfillmentStore) OrderExists(ctx context.Context, orderID int64) (bool, error) {
	return s.orders.ExistsByID(ctx, orderID)
}

// MaterializeOrder commits the accepted order: the conditional stock
// decrement and the order insert run in one transaction so the row only
// ever exists alongside a successful decrement.  ErrStockExhausted
// aborts the transaction without creating an order.
func (s *FulfillmentStore) MaterializeOrder(ctx context.Context, voucherID, userID uint64, orderID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fulfillment tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	ok, err := s.vouchers.DecrementStockTx(ctx, tx, voucherID)
	if err != nil {
		return fmt.Errorf("decrement stock for voucher %d: %w", voucherID, err)
	}
	if !ok {
		return fmt.Errorf("voucher %d: %w", voucherID, ErrStockExhausted)
	}
	order := &model.VoucherOrder{
		ID:         orderID,
		VoucherID:  voucherID,
		UserID:     userID,
		CreateTime: time.Now().UTC(),
	}
	if err := s.orders.CreateTx(ctx, tx, order); err != nil {
		return fmt.Errorf("insert order %d: %w", orderID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order %d: %w", orderID, err)
	}
	committed = true
	return nil
}
