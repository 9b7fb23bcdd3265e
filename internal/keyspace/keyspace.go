// Package keyspace implements the concurrent, typed key-value mapping at
// the heart of distkv: the storage engine (component C2 of the design).
// It owns TTL bookkeeping, lazy expiration, and the string/list/set typed
// operations; it never touches the wire protocol.
package keyspace

import (
	"container/list"
	"hash/fnv"
	"math/bits"
	"time"

	"github.com/pkg/errors"

	"github.com/eternalApril/distkv/internal/value"
)

// ErrWrongType is returned when a typed mutator is applied to a key whose
// current Value holds a different variant. The target Value is left
// untouched.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// Keyspace is a concurrent key -> Value map split into shards to bound
// write contention. Sharding is an in-process concurrency optimization
// only; from the outside it behaves as one logical keyspace.
type Keyspace struct {
	shards []*shard
	mask   uint32
}

// New creates a Keyspace with shardCount shards. shardCount must be a
// power of two no greater than 64.
func New(shardCount uint) (*Keyspace, error) {
	if bits.OnesCount(shardCount) != 1 {
		return nil, errors.New("shard count must be a power of 2")
	}
	if shardCount > 64 {
		return nil, errors.New("shard count must be less than or equal to 64")
	}

	ks := &Keyspace{
		shards: make([]*shard, shardCount),
		mask:   uint32(shardCount - 1),
	}
	for i := range ks.shards {
		ks.shards[i] = newShard()
	}
	return ks, nil
}

func (ks *Keyspace) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck
	return ks.shards[h.Sum32()&ks.mask]
}

// ---- string ops ----

// Set unconditionally replaces the Value at key with a fresh String
// Value, clearing any prior expiry.
func (ks *Keyspace) Set(key string, val []byte) {
	s := ks.shardFor(key)
	cp := make([]byte, len(val))
	copy(cp, val)

	s.mu.Lock()
	s.data[key] = value.NewString(cp)
	s.mu.Unlock()
}

// Get returns the String payload at key, or ok=false if the key is
// missing, expired, or holds a different variant.
func (ks *Keyspace) Get(key string) (val []byte, ok bool) {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil || v.Kind != value.KindString {
		return nil, false
	}
	return v.Str, true
}

// ---- generic ops ----

// Del removes key, reporting whether it was present.
func (ks *Keyspace) Del(key string) bool {
	s := ks.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		return true
	}
	return false
}

// Exists reports whether key is present and non-expired.
func (ks *Keyspace) Exists(key string) bool {
	return ks.shardFor(key).lookup(key, time.Now()) != nil
}

// Expire sets key's expiration to now + seconds. It reports whether key
// existed (non-expired) at call time. seconds <= 0 is permitted and
// makes the key immediately expired.
func (ks *Keyspace) Expire(key string, seconds int64) bool {
	s := ks.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.lookupExclusive(key, now)
	if v == nil {
		return false
	}
	v.ExpiresAt = now.Add(time.Duration(seconds) * time.Second)
	return true
}

// TTL returns the remaining lifetime in seconds, rounded up to a whole
// second: -1 if key exists without an expiry, -2 if key is missing or
// expired.
func (ks *Keyspace) TTL(key string) int64 {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil {
		return -2
	}
	if v.ExpiresAt.IsZero() {
		return -1
	}
	remaining := int64((time.Until(v.ExpiresAt) + time.Second - 1) / time.Second)
	if remaining <= 0 {
		return -2
	}
	return remaining
}

// Keys returns the set of non-expired keys across all shards.
func (ks *Keyspace) Keys() []string {
	now := time.Now()
	var out []string
	for _, s := range ks.shards {
		s.mu.RLock()
		for k, v := range s.data {
			if !v.Expired(now) {
				out = append(out, k)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// DBSize returns the number of non-expired keys.
func (ks *Keyspace) DBSize() int64 {
	now := time.Now()
	var n int64
	for _, s := range ks.shards {
		s.mu.RLock()
		for _, v := range s.data {
			if !v.Expired(now) {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// ---- list ops ----

func (ks *Keyspace) push(key string, val []byte, front bool) (int64, error) {
	s := ks.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookupExclusive(key, now)
	if v == nil {
		v = value.NewList()
		s.data[key] = v
	} else if v.Kind != value.KindList {
		return 0, ErrWrongType
	}

	cp := make([]byte, len(val))
	copy(cp, val)
	if front {
		v.List.PushFront(cp)
	} else {
		v.List.PushBack(cp)
	}
	return int64(v.List.Len()), nil
}

// LPush prepends val to the list at key, creating it if missing.
func (ks *Keyspace) LPush(key string, val []byte) (int64, error) {
	return ks.push(key, val, true)
}

// RPush appends val to the list at key, creating it if missing.
func (ks *Keyspace) RPush(key string, val []byte) (int64, error) {
	return ks.push(key, val, false)
}

func (ks *Keyspace) pop(key string, front bool) ([]byte, bool) {
	s := ks.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookupExclusive(key, now)
	if v == nil || v.Kind != value.KindList || v.List.Len() == 0 {
		return nil, false
	}

	var elem *list.Element
	if front {
		elem = v.List.Front()
	} else {
		elem = v.List.Back()
	}
	v.List.Remove(elem)
	return elem.Value.([]byte), true
}

// LPop removes and returns the head of the list at key. ok is false on a
// missing key, an empty list, or a wrong-typed key.
func (ks *Keyspace) LPop(key string) ([]byte, bool) {
	return ks.pop(key, true)
}

// RPop removes and returns the tail of the list at key. ok is false on a
// missing key, an empty list, or a wrong-typed key.
func (ks *Keyspace) RPop(key string) ([]byte, bool) {
	return ks.pop(key, false)
}

// LRange returns the [start, stop] slice of the list at key using
// Redis-style index normalization (negative indices count from the tail,
// bounds are clamped). ok is false if key is missing or holds a
// different variant; a present list always reports ok=true, even when
// the normalized range is empty.
func (ks *Keyspace) LRange(key string, start, stop int64) (items [][]byte, ok bool) {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil || v.Kind != value.KindList {
		return nil, false
	}

	n := int64(v.List.Len())
	if n == 0 {
		return [][]byte{}, true
	}

	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop > n-1 {
		stop = n - 1
	}
	if start > stop || start > n-1 || stop < 0 {
		return [][]byte{}, true
	}

	items = make([][]byte, 0, stop-start+1)
	var i int64
	for e := v.List.Front(); e != nil; e = e.Next() {
		if i > stop {
			break
		}
		if i >= start {
			items = append(items, e.Value.([]byte))
		}
		i++
	}
	return items, true
}

// LLen returns the length of the list at key, 0 on missing or wrong type.
func (ks *Keyspace) LLen(key string) int64 {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil || v.Kind != value.KindList {
		return 0
	}
	return int64(v.List.Len())
}

// ---- set ops ----

// SAdd inserts member into the set at key, creating it if missing.
// added is true iff member was newly inserted.
func (ks *Keyspace) SAdd(key, member string) (added bool, err error) {
	s := ks.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookupExclusive(key, now)
	if v == nil {
		v = value.NewSet()
		s.data[key] = v
	} else if v.Kind != value.KindSet {
		return false, ErrWrongType
	}

	if _, exists := v.Set[member]; exists {
		return false, nil
	}
	v.Set[member] = struct{}{}
	return true, nil
}

// SRem removes member from the set at key. removed is true iff member
// was present.
func (ks *Keyspace) SRem(key, member string) (removed bool, err error) {
	s := ks.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookupExclusive(key, now)
	if v == nil {
		return false, nil
	}
	if v.Kind != value.KindSet {
		return false, ErrWrongType
	}
	if _, exists := v.Set[member]; !exists {
		return false, nil
	}
	delete(v.Set, member)
	return true, nil
}

// SIsMember reports whether member belongs to the set at key. It is a
// pure predicate: missing key or wrong type reports false, never an error.
func (ks *Keyspace) SIsMember(key, member string) bool {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil || v.Kind != value.KindSet {
		return false
	}
	_, ok := v.Set[member]
	return ok
}

// SMembers returns the full membership of the set at key, in unspecified
// order. ok is false on a missing key or a wrong-typed key.
func (ks *Keyspace) SMembers(key string) (members []string, ok bool) {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil || v.Kind != value.KindSet {
		return nil, false
	}
	members = make([]string, 0, len(v.Set))
	for m := range v.Set {
		members = append(members, m)
	}
	return members, true
}

// SCard returns the cardinality of the set at key, 0 on missing/wrong type.
func (ks *Keyspace) SCard(key string) int64 {
	v := ks.shardFor(key).lookup(key, time.Now())
	if v == nil || v.Kind != value.KindSet {
		return 0
	}
	return int64(len(v.Set))
}
