// Package admission decides, synchronously and atomically, whether an
// order request is accepted.  The whole decision runs as one Lua script
// on Redis: stock check, duplicate-order check, stock decrement and the
// append of the accepted entry onto the hand-off stream are indivisible
// under concurrent callers, which removes the check-then-act race a
// plain read-modify-write would have.  The gate never touches MySQL;
// durability is deferred to the fulfillment worker.
package admission

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Verdict is the tri-state outcome of an admission attempt.  The values
// mirror the integer codes returned by the script: 0 accepted, 1 out of
// stock, 2 duplicate order.
type Verdict int

const (
	Accepted Verdict = iota
	OutOfStock
	DuplicateOrder
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case OutOfStock:
		return "out of stock"
	case DuplicateOrder:
		return "duplicate order"
	}
	return "verdict(" + strconv.Itoa(int(v)) + ")"
}

const (
	stockKeyPrefix = "seckill:stock:"
	orderKeyPrefix = "seckill:order:"
)

// admitScript performs the whole admission in one atomic unit:
//  1. stock <= 0 (or not seeded)        -> 1, no side effects
//  2. user already in the ordered set   -> 2, no side effects
//  3. otherwise decrement stock, record the user, append the queue
//     entry with the caller-supplied order id -> 0
var admitScript = redis.NewScript(`
local voucher_id = ARGV[1]
local user_id = ARGV[2]
local order_id = ARGV[3]
local stock_key = 'seckill:stock:' .. voucher_id
local order_key = 'seckill:order:' .. voucher_id

local stock = tonumber(redis.call('GET', stock_key))
if stock == nil or stock <= 0 then
    return 1
end
if redis.call('SISMEMBER', order_key, user_id) == 1 then
    return 2
end
redis.call('INCRBY', stock_key, -1)
redis.call('SADD', order_key, user_id)
redis.call('XADD', KEYS[1], '*', 'voucherId', voucher_id, 'userId', user_id, 'orderId', order_id)
return 0
`)

// Gate runs admission checks against the shared Redis instance and
// appends accepted entries to the configured hand-off stream.
type Gate struct {
	rdb       *redis.Client
	streamKey string
}

// NewGate returns a Gate appending accepted orders to streamKey.
func NewGate(rdb *redis.Client, streamKey string) *Gate {
	return &Gate{rdb: rdb, streamKey: streamKey}
}

// Admit runs the admission script for one order request.  A non-nil
// error means the verdict is unknown and the caller should retry; no
// partial state is ever left behind on error because the script runs
// whole or not at all on the server.
func (g *Gate) Admit(ctx context.Context, voucherID, userID uint64, orderID int64) (Verdict, error) {
	res, err := admitScript.Run(ctx, g.rdb, []string{g.streamKey},
		strconv.FormatUint(voucherID, 10),
		strconv.FormatUint(userID, 10),
		strconv.FormatInt(orderID, 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("admission script: %w", err)
	}
	switch res {
	case 0:
		return Accepted, nil
	case 1:
		return OutOfStock, nil
	case 2:
		return DuplicateOrder, nil
	}
	return 0, fmt.Errorf("admission script returned unknown code %d", res)
}

// SeedStock writes the voucher's stock counter so the gate can admit
// against it.  Called when an admin creates or republishes a voucher,
// before the sale window opens.  Outside the window the counter is
// simply absent or zero, which the script reports as out of stock.
func (g *Gate) SeedStock(ctx context.Context, voucherID uint64, stock int64) error {
	key := stockKeyPrefix + strconv.FormatUint(voucherID, 10)
	if err := g.rdb.Set(ctx, key, stock, 0).Err(); err != nil {
		return fmt.Errorf("seed stock %s: %w", key, err)
	}
	return nil
}

// Stock reads the remaining admission counter for a voucher.  Used by
// the admin surface for visibility; a missing key reads as zero.
func (g *Gate) Stock(ctx context.Context, voucherID uint64) (int64, error) {
	key := stockKeyPrefix + strconv.FormatUint(voucherID, 10)
	n, err := g.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// OrderedBy reports whether the user is already recorded in the
// voucher's ordered-by set.
func (g *Gate) OrderedBy(ctx context.Context, voucherID, userID uint64) (bool, error) {
	key := orderKeyPrefix + strconv.FormatUint(voucherID, 10)
	return g.rdb.SIsMember(ctx, key, strconv.FormatUint(userID, 10)).Result()
}
