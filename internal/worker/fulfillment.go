// Package worker contains the background consumer that materializes
// accepted orders.  It reads entries from the durable hand-off log one
// at a time, re-validates under a per-user lock, commits the order to
// MySQL and only then acknowledges the entry.  Each attempt walks
// Reading -> Locking -> Writing -> Acknowledging; a timeout on the read
// or a transient failure on the write drops back to Idle with the entry
// still pending, so it is redelivered rather than lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/iliyamo/voucher-flash-sale/internal/lock"
	"github.com/iliyamo/voucher-flash-sale/internal/repository"
	"github.com/iliyamo/voucher-flash-sale/internal/stream"
)

// lockKeyPrefix namespaces the per-user fulfillment locks in Redis.
const lockKeyPrefix = "lock:order:"

// errorBackoff is how long the pending drain waits after a failed
// attempt before retrying, to avoid hammering a struggling store.
const errorBackoff = 20 * time.Millisecond

// OrderStore is the worker's view of the system of record.  Implemented
// by repository.FulfillmentStore; faked in tests.
type OrderStore interface {
	OrderExists(ctx context.Context, orderID int64) (bool, error)
	MaterializeOrder(ctx context.Context, voucherID, userID uint64, orderID int64) error
}

// Locker is the per-user mutual exclusion guard.  Implemented by
// lock.Locker; acquisition failure with lock.ErrBusy is treated as an
// anomaly since the admission gate already serializes per user.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// Worker is the fulfillment consumer.  One Worker processes entries
// strictly one at a time; horizontal scale comes from running more
// instances with distinct consumer names in the same group.
type Worker struct {
	Log     stream.Log
	Store   OrderStore
	Locks   Locker
	LockTTL time.Duration
	Block   time.Duration // how long ReadNew blocks when the stream is empty

	// Notify, when set, is called after an entry has been durably
	// committed and acknowledged.  Best effort; failures are the
	// callback's problem and never affect acknowledgment.
	Notify func(ctx context.Context, e stream.Entry)
}

// Run consumes entries until ctx is cancelled.  Before touching live
// traffic it drains the group's pending list: entries delivered before
// a crash but never acknowledged must be re-processed first, oldest
// first, or the exactly-once materialization guarantee is gone.  An
// error during live handling also triggers a drain pass, mirroring the
// redelivery-first posture of the recovery path.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("fulfillment-worker: starting, draining pending entries")
	w.drainPending(ctx)
	for ctx.Err() == nil {
		entries, err := w.Log.ReadNew(ctx, 1, w.Block)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("fulfillment-worker: read failed: %v", err)
			w.drainPending(ctx)
			continue
		}
		if len(entries) == 0 {
			continue // blocking read timed out; nothing to do
		}
		if err := w.handle(ctx, entries[0]); err != nil {
			log.Printf("fulfillment-worker: entry %s: %v", entries[0].ID, err)
			w.drainPending(ctx)
		}
	}
	log.Printf("fulfillment-worker: stopped")
}

// drainPending re-processes every entry still on this consumer's
// pending list.  Entries that fail again are logged and skipped over
// (they stay pending for operator inspection) so one poisoned entry
// cannot wedge recovery forever.
func (w *Worker) drainPending(ctx context.Context) {
	after := "0"
	for ctx.Err() == nil {
		entries, err := w.Log.ReadPending(ctx, after, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("fulfillment-worker: pending read failed: %v", err)
			time.Sleep(errorBackoff)
			continue
		}
		if len(entries) == 0 {
			return // pending list drained
		}
		e := entries[0]
		if err := w.handle(ctx, e); err != nil {
			log.Printf("fulfillment-worker: pending entry %s left unacknowledged: %v", e.ID, err)
			after = e.ID // step past it, keep it pending
			time.Sleep(errorBackoff)
		}
	}
}

// handle runs one lock-write-acknowledge attempt.  A non-nil return
// means the entry was NOT acknowledged and remains pending.  The work
// runs on a context detached from cancellation so a shutdown lets an
// in-flight attempt finish instead of stranding a locked entry.
func (w *Worker) handle(ctx context.Context, e stream.Entry) error {
	hctx := context.WithoutCancel(ctx)

	key := lockKeyPrefix + strconv.FormatUint(e.UserID, 10)
	token, err := w.Locks.Acquire(hctx, key, w.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			// The gate admits each user at most once per voucher, so a
			// busy lock here means a replay or a bug, not contention.
			return fmt.Errorf("anomaly: user %d lock busy during fulfillment: %w", e.UserID, err)
		}
		return fmt.Errorf("acquire lock for user %d: %w", e.UserID, err)
	}
	defer func() {
		if err := w.Locks.Release(hctx, key, token); err != nil {
			log.Printf("fulfillment-worker: release lock %s: %v", key, err)
		}
	}()

	// Redelivery of an already-materialized order (crash between commit
	// and acknowledge) must be a no-op, never a second order.
	exists, err := w.Store.OrderExists(hctx, e.OrderID)
	if err != nil {
		return fmt.Errorf("check order %d: %w", e.OrderID, err)
	}
	if exists {
		log.Printf("fulfillment-worker: order %d already materialized, acknowledging replay", e.OrderID)
		return w.Log.Ack(hctx, e.ID)
	}

	if err := w.Store.MaterializeOrder(hctx, e.VoucherID, e.UserID, e.OrderID); err != nil {
		if errors.Is(err, repository.ErrStockExhausted) {
			return fmt.Errorf("anomaly: accepted order %d rejected by system of record: %w", e.OrderID, err)
		}
		return fmt.Errorf("materialize order %d: %w", e.OrderID, err)
	}

	if err := w.Log.Ack(hctx, e.ID); err != nil {
		// The order is committed; redelivery will be caught by the
		// OrderExists check above.
		return fmt.Errorf("ack entry %s after commit: %w", e.ID, err)
	}

	if w.Notify != nil {
		w.Notify(hctx, e)
	}
	return nil
}
