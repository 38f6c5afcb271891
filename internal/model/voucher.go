package model

import "time"

// Voucher represents a discount voucher offered in a flash sale, as
// stored in the `vouchers` table.  Stock is seeded before the sale
// opens and only ever decreases.  The Redis stock counter used by the
// admission gate is derived from this row when the voucher is created;
// the row itself is the durable source of truth and is decremented a
// second time, defensively, when an order is materialized.
//
// Fields:
//  ID        – primary key identifier of the voucher.
//  Title     – human readable description of the deal.
//  Stock     – remaining units; never observed negative.
//  BeginTime – instant the sale window opens (UTC).
//  EndTime   – instant the sale window closes (UTC).
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Voucher struct {
	ID        uint64    // vouchers.id
	Title     string    // vouchers.title
	Stock     int64     // vouchers.stock
	BeginTime time.Time // vouchers.begin_time
	EndTime   time.Time // vouchers.end_time
	CreatedAt time.Time // vouchers.created_at
	UpdatedAt time.Time // vouchers.updated_at
}
