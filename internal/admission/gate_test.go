package admission

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStream = "stream.orders"

func newTestGate(t *testing.T) (*Gate, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGate(rdb, testStream), mr, rdb
}

func TestAdmit_Accepted(t *testing.T) {
	g, _, rdb := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.SeedStock(ctx, 10, 5))

	v, err := g.Admit(ctx, 10, 100, 111222333)
	require.NoError(t, err)
	assert.Equal(t, Accepted, v)

	// One indivisible step: stock down, user recorded, entry appended.
	stock, err := g.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)

	ordered, err := g.OrderedBy(ctx, 10, 100)
	require.NoError(t, err)
	assert.True(t, ordered)

	msgs, err := rdb.XRange(ctx, testStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "10", msgs[0].Values["voucherId"])
	assert.Equal(t, "100", msgs[0].Values["userId"])
	assert.Equal(t, "111222333", msgs[0].Values["orderId"])
}

func TestAdmit_OutOfStock(t *testing.T) {
	g, _, rdb := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.SeedStock(ctx, 10, 0))

	v, err := g.Admit(ctx, 10, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutOfStock, v)

	// Rejection leaves no side effects behind.
	ordered, err := g.OrderedBy(ctx, 10, 100)
	require.NoError(t, err)
	assert.False(t, ordered)
	n, err := rdb.XLen(ctx, testStream).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdmit_UnseededVoucherIsOutOfStock(t *testing.T) {
	g, _, _ := newTestGate(t)

	v, err := g.Admit(context.Background(), 99, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutOfStock, v)
}

func TestAdmit_DuplicateOrder(t *testing.T) {
	// Scenario: stock 5, the same user submits twice.  The first is
	// accepted, the second rejected, and stock moves only once.
	g, _, rdb := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.SeedStock(ctx, 10, 5))

	v, err := g.Admit(ctx, 10, 100, 1)
	require.NoError(t, err)
	require.Equal(t, Accepted, v)

	v, err = g.Admit(ctx, 10, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, DuplicateOrder, v)

	stock, err := g.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)

	n, err := rdb.XLen(ctx, testStream).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "the duplicate must not be enqueued")
}

func TestAdmit_LastUnitRace(t *testing.T) {
	// Scenario: stock 1, two different users race.  Exactly one wins.
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.SeedStock(ctx, 10, 1))

	verdicts := make([]Verdict, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Admit(ctx, 10, uint64(100+i), int64(i+1))
			require.NoError(t, err)
			verdicts[i] = v
		}()
	}
	wg.Wait()

	accepted := 0
	for _, v := range verdicts {
		if v == Accepted {
			accepted++
		} else {
			assert.Equal(t, OutOfStock, v)
		}
	}
	assert.Equal(t, 1, accepted)

	stock, err := g.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, stock, "stock is never observed negative")
}

func TestAdmit_NeverOversells(t *testing.T) {
	// Stock N with more than N distinct buyers: at most N acceptances,
	// and every acceptance has a matching queue entry.
	g, _, rdb := newTestGate(t)
	ctx := context.Background()
	const stock = 5
	const buyers = 20
	require.NoError(t, g.SeedStock(ctx, 10, stock))

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < buyers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Admit(ctx, 10, uint64(1000+i), int64(i+1))
			require.NoError(t, err)
			if v == Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, accepted)
	n, err := rdb.XLen(ctx, testStream).Result()
	require.NoError(t, err)
	assert.EqualValues(t, stock, n)

	final, err := g.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, final)
}

func TestAdmit_VouchersAreIsolated(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.SeedStock(ctx, 10, 1))
	require.NoError(t, g.SeedStock(ctx, 11, 1))

	// Ordering voucher 10 does not mark the user for voucher 11.
	v, err := g.Admit(ctx, 10, 100, 1)
	require.NoError(t, err)
	require.Equal(t, Accepted, v)

	v, err = g.Admit(ctx, 11, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, Accepted, v)
}

func TestStock_MissingKeyReadsZero(t *testing.T) {
	g, _, _ := newTestGate(t)
	n, err := g.Stock(context.Background(), 404)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "out of stock", OutOfStock.String())
	assert.Equal(t, "duplicate order", DuplicateOrder.String())
	assert.Equal(t, "verdict("+strconv.Itoa(9)+")", Verdict(9).String())
}
