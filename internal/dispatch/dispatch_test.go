package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalApril/distkv/internal/keyspace"
	"github.com/eternalApril/distkv/internal/resp"
)

func newTestEngine(t *testing.T) (*Engine, *keyspace.Keyspace) {
	ks, err := keyspace.New(1)
	require.NoError(t, err)
	return NewEngine(), ks
}

func argv(strs ...string) [][]byte {
	out := make([][]byte, len(strs))
	for i, s := range strs {
		out[i] = []byte(s)
	}
	return out
}

func TestPingAndUnknownAndQuit(t *testing.T) {
	e, ks := newTestEngine(t)

	v, closed := e.Execute(ks, "PING", argv())
	assert.Equal(t, byte(resp.TypeBulkString), v.Type)
	assert.Equal(t, "PONG", string(v.String))
	assert.False(t, closed)

	v, closed = e.Execute(ks, "quit", argv())
	assert.Equal(t, "Goodbye", string(v.String))
	assert.True(t, closed)

	v, closed = e.Execute(ks, "NOSUCHCMD", argv())
	assert.Equal(t, byte(resp.TypeError), v.Type)
	assert.False(t, closed)
}

func TestArityMismatch(t *testing.T) {
	e, ks := newTestEngine(t)

	v, _ := e.Execute(ks, "SET", argv("onlyone"))
	assert.Equal(t, byte(resp.TypeError), v.Type)
	assert.Equal(t, resp.InvalidArgs().String, v.String)
}

func TestSetGetDel(t *testing.T) {
	e, ks := newTestEngine(t)

	v, _ := e.Execute(ks, "SET", argv("k", "v"))
	assert.Equal(t, "OK", string(v.String))

	v, _ = e.Execute(ks, "GET", argv("k"))
	assert.Equal(t, "v", string(v.String))

	v, _ = e.Execute(ks, "GET", argv("missing"))
	assert.True(t, v.IsNull)

	v, _ = e.Execute(ks, "DEL", argv("k"))
	assert.Equal(t, "1", string(v.String))

	v, _ = e.Execute(ks, "DEL", argv("k"))
	assert.Equal(t, "0", string(v.String))
}

func TestExpireAndTTL(t *testing.T) {
	e, ks := newTestEngine(t)
	e.Execute(ks, "SET", argv("k", "v"))

	v, _ := e.Execute(ks, "EXPIRE", argv("k", "notanumber"))
	assert.Equal(t, byte(resp.TypeError), v.Type)

	v, _ = e.Execute(ks, "EXPIRE", argv("k", "100"))
	assert.Equal(t, "1", string(v.String))

	v, _ = e.Execute(ks, "TTL", argv("k"))
	assert.Equal(t, "100", string(v.String))

	v, _ = e.Execute(ks, "TTL", argv("nosuchkey"))
	assert.Equal(t, "-2", string(v.String))
}

func TestListCommandsAndWrongType(t *testing.T) {
	e, ks := newTestEngine(t)

	v, _ := e.Execute(ks, "RPUSH", argv("l", "a"))
	assert.Equal(t, "1", string(v.String))
	v, _ = e.Execute(ks, "RPUSH", argv("l", "b"))
	assert.Equal(t, "2", string(v.String))
	v, _ = e.Execute(ks, "LPUSH", argv("l", "z"))
	assert.Equal(t, "3", string(v.String))

	v, _ = e.Execute(ks, "LRANGE", argv("l", "0", "-1"))
	require.Equal(t, byte(resp.TypeArray), v.Type)
	require.Len(t, v.Array, 3)
	assert.Equal(t, "z", string(v.Array[0].String))
	assert.Equal(t, "b", string(v.Array[2].String))

	v, _ = e.Execute(ks, "LLEN", argv("l"))
	assert.Equal(t, "3", string(v.String))

	v, _ = e.Execute(ks, "LPOP", argv("l"))
	assert.Equal(t, "z", string(v.String))

	v, _ = e.Execute(ks, "LPOP", argv("nosuchlist"))
	assert.True(t, v.IsNull)

	v, _ = e.Execute(ks, "LRANGE", argv("nosuchlist", "0", "-1"))
	assert.True(t, v.IsNull)

	e.Execute(ks, "SET", argv("str", "x"))
	v, _ = e.Execute(ks, "LPUSH", argv("str", "y"))
	assert.Equal(t, "WRONGTYPE Operation against a key holding the wrong kind of value", string(v.String))

	v, _ = e.Execute(ks, "LPOP", argv("str"))
	assert.True(t, v.IsNull)
}

func TestSetCommandsAndWrongType(t *testing.T) {
	e, ks := newTestEngine(t)

	v, _ := e.Execute(ks, "SADD", argv("s", "m1"))
	assert.Equal(t, "1", string(v.String))
	v, _ = e.Execute(ks, "SADD", argv("s", "m1"))
	assert.Equal(t, "0", string(v.String))

	v, _ = e.Execute(ks, "SISMEMBER", argv("s", "m1"))
	assert.Equal(t, "1", string(v.String))
	v, _ = e.Execute(ks, "SISMEMBER", argv("s", "nope"))
	assert.Equal(t, "0", string(v.String))

	v, _ = e.Execute(ks, "SCARD", argv("s"))
	assert.Equal(t, "1", string(v.String))

	v, _ = e.Execute(ks, "SREM", argv("s", "m1"))
	assert.Equal(t, "1", string(v.String))

	v, _ = e.Execute(ks, "SMEMBERS", argv("nosuchset"))
	assert.True(t, v.IsNull)

	e.Execute(ks, "SET", argv("str", "x"))
	v, _ = e.Execute(ks, "SADD", argv("str", "m"))
	assert.Equal(t, byte(resp.TypeError), v.Type)

	v, _ = e.Execute(ks, "SISMEMBER", argv("str", "m"))
	assert.Equal(t, "0", string(v.String))
}
