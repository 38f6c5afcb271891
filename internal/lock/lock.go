// Package lock implements a lease-based mutual exclusion lock on Redis.
// Acquisition is a single SET NX EX attempt; the lease expires on its own
// so a crashed holder cannot block a key forever.  Release presents the
// token returned by Acquire and only deletes the key when it still holds
// that token, so a holder whose lease already expired cannot release a
// lock that has since been granted to someone else.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned by Acquire when the key is held by another owner.
// Acquire never retries internally; callers choose their own policy.
var ErrBusy = errors.New("lock held by another owner")

// ErrNotOwner is returned by Release when the stored token does not
// match, meaning the lease expired and the key was reassigned.
var ErrNotOwner = errors.New("lock token does not match holder")

// releaseScript deletes the key only if it still stores the caller's
// token.  The compare and the delete must be one atomic step, otherwise
// the lease could expire between them and we would delete a stranger's lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker acquires and releases leases on a shared Redis instance.
type Locker struct {
	rdb *redis.Client
}

// New returns a Locker bound to the provided Redis client.
func New(rdb *redis.Client) *Locker { return &Locker{rdb: rdb} }

// Acquire attempts to take the lock once and returns the holder token on
// success.  ErrBusy means another holder currently owns the key; any
// other error is a transport failure.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token, err := randomToken(16)
	if err != nil {
		return "", err
	}
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock acquire %s: %w", key, err)
	}
	if !ok {
		return "", ErrBusy
	}
	return token, nil
}

// Release frees the lock if token still owns it.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("lock release %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotOwner
	}
	return nil
}

// randomToken generates a random hexadecimal string of n*2 characters.
// crypto/rand keeps tokens unguessable so no client can forge a release.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
