package keyspace

import (
	"sync"
	"time"

	"github.com/eternalApril/distkv/internal/value"
)

// shard is one RWMutex-guarded partition of the keyspace. Single-key
// Keyspace methods route the key to exactly one shard and hold only that
// shard's lock. Keys, DBSize, Snapshot and SweepExpired visit the shards
// one at a time; Restore is the only operation that holds every shard's
// lock at once.
type shard struct {
	mu   sync.RWMutex
	data map[string]*value.Value
}

func newShard() *shard {
	return &shard{data: make(map[string]*value.Value)}
}

// lookup returns the non-expired value at key, or nil if the key is
// missing or expired. An expired entry is lazily removed: lookup's own
// shared lock is released and re-acquired exclusively, and the entry is
// double-checked before deletion to tolerate a racing writer.
func (s *shard) lookup(key string, now time.Time) *value.Value {
	s.mu.RLock()
	v, ok := s.data[key]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	if !v.Expired(now) {
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok = s.data[key]
	if !ok {
		return nil
	}
	if v.Expired(time.Now()) {
		delete(s.data, key)
		return nil
	}
	return v
}

// lookupExclusive is lookup's counterpart for call sites that already
// hold the exclusive lock (mutators resolving their own target key).
func (s *shard) lookupExclusive(key string, now time.Time) *value.Value {
	v, ok := s.data[key]
	if !ok {
		return nil
	}
	if v.Expired(now) {
		delete(s.data, key)
		return nil
	}
	return v
}
