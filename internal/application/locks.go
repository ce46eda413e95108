package application

import "sync"

const lockShards = 64

// shardedLocks serializes reconciliation per external CI id so that two
// concurrent deliveries for the same id cannot race between the
// find-existing read and the create write. Ids sharing a shard serialize
// with each other, which is harmless.
type shardedLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *shardedLocks) lock(id int64) func() {
	m := &l.shards[uint64(id)%lockShards]
	m.Lock()
	return m.Unlock
}
