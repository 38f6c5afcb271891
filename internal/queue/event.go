// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderFulfilledEvent is published after an accepted order has been
// durably committed to the system of record.  It carries enough for
// downstream consumers to log, notify, or feed analytics without
// querying the primary database.
type OrderFulfilledEvent struct {
	OrderID     int64  `json:"order_id"`
	VoucherID   uint64 `json:"voucher_id"`
	UserID      uint64 `json:"user_id"`
	EntryID     string `json:"entry_id"`
	FulfilledAt string `json:"fulfilled_at"`
}
