package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLog implements Log on a Redis stream read through a consumer
// group.  Multiple worker instances may share the same group name; each
// should pass its own consumer name.
type RedisLog struct {
	rdb      *redis.Client
	key      string // stream key, e.g. "stream.orders"
	group    string // consumer group, e.g. "g1"
	consumer string // this member's name within the group, e.g. "c1"
}

// NewRedisLog returns a RedisLog for the given stream and group.
func NewRedisLog(rdb *redis.Client, key, group, consumer string) *RedisLog {
	return &RedisLog{rdb: rdb, key: key, group: group, consumer: consumer}
}

// EnsureGroup creates the consumer group (and the stream itself, via
// MKSTREAM) if it does not exist yet.  Re-creating an existing group is
// not an error; Redis reports BUSYGROUP and we carry on.
func (l *RedisLog) EnsureGroup(ctx context.Context) error {
	err := l.rdb.XGroupCreateMkStream(ctx, l.key, l.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", l.group, l.key, err)
	}
	return nil
}

// Append adds an entry with a server-assigned id and returns that id.
// The admission gate normally appends from inside its Lua script; this
// method exists for operational backfill and for tests.
func (l *RedisLog) Append(ctx context.Context, voucherID, userID uint64, orderID int64) (string, error) {
	id, err := l.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: l.key,
		Values: map[string]interface{}{
			"voucherId": strconv.FormatUint(voucherID, 10),
			"userId":    strconv.FormatUint(userID, 10),
			"orderId":   strconv.FormatInt(orderID, 10),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", l.key, err)
	}
	return id, nil
}

// ReadNew delivers up to count entries that no group member has seen
// yet, blocking up to the given duration when the stream is empty.  A
// timeout is not an error; it returns an empty slice.
func (l *RedisLog) ReadNew(ctx context.Context, count int64, block time.Duration) ([]Entry, error) {
	res, err := l.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    l.group,
		Consumer: l.consumer,
		Streams:  []string{l.key, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read new from %s: %w", l.key, err)
	}
	return collect(res)
}

// ReadPending re-delivers entries already assigned to this consumer but
// not yet acknowledged, with ids greater than `after`.  Pass "0" to
// start from the earliest pending entry.  An empty result means the
// pending list is drained.
func (l *RedisLog) ReadPending(ctx context.Context, after string, count int64) ([]Entry, error) {
	if after == "" {
		after = "0"
	}
	res, err := l.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    l.group,
		Consumer: l.consumer,
		Streams:  []string{l.key, after},
		Count:    count,
		Block:    -1, // pending reads never block; zero would mean block forever
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending from %s: %w", l.key, err)
	}
	return collect(res)
}

// Ack removes the entry from the group's pending list.  Only called
// after the order has been durably committed (or detected as already
// committed), which is what makes delivery at-least-once.
func (l *RedisLog) Ack(ctx context.Context, id string) error {
	if err := l.rdb.XAck(ctx, l.key, l.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", id, l.key, err)
	}
	return nil
}

// collect flattens an XREADGROUP reply into entries.  A malformed
// message surfaces as an error and stays pending for inspection.
func collect(streams []redis.XStream) ([]Entry, error) {
	var out []Entry
	for _, s := range streams {
		for _, m := range s.Messages {
			e, err := parseEntry(m)
			if err != nil {
				return out, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// parseEntry decodes the field map written by the admission script.
func parseEntry(m redis.XMessage) (Entry, error) {
	e := Entry{ID: m.ID}
	var err error
	if e.VoucherID, err = fieldUint(m, "voucherId"); err != nil {
		return e, err
	}
	if e.UserID, err = fieldUint(m, "userId"); err != nil {
		return e, err
	}
	raw, ok := m.Values["orderId"].(string)
	if !ok {
		return e, fmt.Errorf("entry %s: missing orderId", m.ID)
	}
	if e.OrderID, err = strconv.ParseInt(raw, 10, 64); err != nil {
		return e, fmt.Errorf("entry %s: orderId %q: %w", m.ID, raw, err)
	}
	return e, nil
}

func fieldUint(m redis.XMessage, name string) (uint64, error) {
	raw, ok := m.Values[name].(string)
	if !ok {
		return 0, fmt.Errorf("entry %s: missing %s", m.ID, name)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("entry %s: %s %q: %w", m.ID, name, raw, err)
	}
	return n, nil
}
