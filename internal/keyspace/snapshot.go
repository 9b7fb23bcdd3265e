package keyspace

import (
	"container/list"
	"time"

	"github.com/eternalApril/distkv/internal/value"
)

// Entry is a self-contained, race-free copy of one key's Value, suitable
// for serialization by a persistence collaborator. Unlike value.Value it
// never aliases the live container/list.List or map used by the
// keyspace, so it remains valid after Snapshot returns.
type Entry struct {
	Key       string
	Kind      value.Kind
	ExpiresAt time.Time
	Str       []byte
	List      [][]byte
	Set       []string
}

func snapshotValue(key string, v *value.Value) Entry {
	e := Entry{Key: key, Kind: v.Kind, ExpiresAt: v.ExpiresAt}
	switch v.Kind {
	case value.KindString:
		e.Str = append([]byte(nil), v.Str...)
	case value.KindList:
		e.List = make([][]byte, 0, v.List.Len())
		for el := v.List.Front(); el != nil; el = el.Next() {
			e.List = append(e.List, append([]byte(nil), el.Value.([]byte)...))
		}
	case value.KindSet:
		e.Set = make([]string, 0, len(v.Set))
		for m := range v.Set {
			e.Set = append(e.Set, m)
		}
	}
	return e
}

// Snapshot returns a point-in-time copy of every (key, Value) pair,
// including expired ones — the caller filters those out if desired. Each
// shard is copied under its own read lock, so the snapshot as a whole is
// not a single linearizable instant, but each entry within it is
// internally consistent.
func (ks *Keyspace) Snapshot() []Entry {
	var out []Entry
	for _, s := range ks.shards {
		s.mu.RLock()
		for k, v := range s.data {
			out = append(out, snapshotValue(k, v))
		}
		s.mu.RUnlock()
	}
	return out
}

// Restore replaces the keyspace's contents while holding every shard's
// lock, so no single-key operation can observe a mix of old and new
// state. Keys, DBSize and Snapshot lock one shard at a time, so one of
// them running alongside Restore can see some shards before it and
// others after it. Restore takes the shard locks in a fixed ascending
// order, so concurrent Restore calls cannot deadlock each other.
func (ks *Keyspace) Restore(entries []Entry) {
	for _, s := range ks.shards {
		s.mu.Lock()
	}
	defer func() {
		for _, s := range ks.shards {
			s.mu.Unlock()
		}
	}()

	for _, s := range ks.shards {
		s.data = make(map[string]*value.Value)
	}

	for _, e := range entries {
		v := &value.Value{Kind: e.Kind, ExpiresAt: e.ExpiresAt}
		switch e.Kind {
		case value.KindString:
			v.Str = append([]byte(nil), e.Str...)
		case value.KindList:
			v.List = restoreList(e.List)
		case value.KindSet:
			v.Set = make(map[string]struct{}, len(e.Set))
			for _, m := range e.Set {
				v.Set[m] = struct{}{}
			}
		default:
			continue
		}
		ks.shardFor(e.Key).data[e.Key] = v
	}
}

func restoreList(items [][]byte) *list.List {
	l := list.New()
	for _, it := range items {
		l.PushBack(append([]byte(nil), it...))
	}
	return l
}
