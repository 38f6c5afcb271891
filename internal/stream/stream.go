// Package stream models the durable hand-off log between the admission
// gate and the fulfillment worker: an append-only, ordered sequence of
// accepted orders with consumer-group semantics.  One group shares a
// read cursor; an entry is delivered to exactly one member at a time and
// stays on the group's pending list until acknowledged, so nothing is
// lost across worker restarts.
package stream

import (
	"context"
	"time"
)

// Entry is one accepted order handed off for fulfillment.  ID is the
// log-assigned, monotonically increasing entry id; the rest are the
// order fields written by the admission gate.  Entries are never
// mutated, only appended and acknowledged.
type Entry struct {
	ID        string
	VoucherID uint64
	UserID    uint64
	OrderID   int64
}

// Log is the read/write contract of the hand-off log, independent of
// the concrete store.  ReadNew blocks up to the given duration when the
// stream has nothing new (cooperative wait, not a spin loop) and
// returns an empty slice on timeout.  ReadPending re-reads entries that
// were delivered to this group but never acknowledged, oldest first,
// starting after the given entry id ("0" means from the earliest).  Ack
// removes an entry from the group's pending list.
type Log interface {
	Append(ctx context.Context, voucherID, userID uint64, orderID int64) (string, error)
	ReadNew(ctx context.Context, count int64, block time.Duration) ([]Entry, error)
	ReadPending(ctx context.Context, after string, count int64) ([]Entry, error)
	Ack(ctx context.Context, id string) error
}
