package service

import (
	"context"
	"sync"
	"time"

	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

// StoreTx serializes all mutations for one application. Decisions for the same
// application must observe each other, so every write path runs under the
// application's lock; decisions for different applications proceed in
// parallel.
type StoreTx interface {
	RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error
}

// numTxShards spreads per-application locks across shards so unrelated
// applications rarely contend. 128 keeps the array cheap while making
// collisions unlikely at committee scale.
const numTxShards = 128

// defaultTxTimeout bounds how long a decision transaction may hold its lock.
const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory StoreTx: a mutex per shard, selected by a hash of
// the application ID.
type ShardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx builds an in-memory transaction runner. Pass a zero timeout to
// use the default.
func NewShardedTx(timeout time.Duration) *ShardedTx {
	return &ShardedTx{timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := int(hashTxKey(appID.String()) % numTxShards)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashTxKey uses FNV-1a for even shard distribution.
func hashTxKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
