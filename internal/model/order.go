package model

import "time"

// VoucherOrder is a row in the `voucher_orders` table.  The ID is not
// auto-incremented by the database: it is generated up front by the
// sequence generator so the caller can be given the order id at
// admission time, before the row exists.  At most one order may exist
// per (voucher, user) pair, and a row is immutable once created.
//
// Fields:
//  ID         – globally unique, time-sortable order id.
//  VoucherID  – voucher that was purchased.
//  UserID     – buyer.
//  CreateTime – when the order was durably materialized.
type VoucherOrder struct {
	ID         int64     // voucher_orders.id
	VoucherID  uint64    // voucher_orders.voucher_id
	UserID     uint64    // voucher_orders.user_id
	CreateTime time.Time // voucher_orders.create_time
}
