package bucket

import (
	"strconv"
	"sync"

	"github.com/agenthands/amane/pkg/core"
)

const lockShards = 256

// KeyLocks serializes operations on the same object identifier inside one
// process. Distinct identifiers may share a shard. A nil *KeyLocks never
// blocks.
type KeyLocks struct {
	shards [lockShards]sync.RWMutex
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{}
}

// Lock takes the exclusive lock for id and returns its release func.
func (l *KeyLocks) Lock(id core.ObjectID) func() {
	if l == nil {
		return func() {}
	}
	mu := &l.shards[shardOf(id)]
	mu.Lock()
	return mu.Unlock
}

// RLock takes the shared lock for id and returns its release func.
func (l *KeyLocks) RLock(id core.ObjectID) func() {
	if l == nil {
		return func() {}
	}
	mu := &l.shards[shardOf(id)]
	mu.RLock()
	return mu.RUnlock
}

// shardOf uses the first byte of the key digest, which is already uniform.
func shardOf(id core.ObjectID) int {
	s := string(id)
	start := len(s) - 64
	if start < 0 || start+2 > len(s) {
		return 0
	}
	v, err := strconv.ParseUint(s[start:start+2], 16, 8)
	if err != nil {
		return 0
	}
	return int(v) % lockShards
}
