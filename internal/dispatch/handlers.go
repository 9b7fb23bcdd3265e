package dispatch

import (
	"strconv"

	"github.com/eternalApril/distkv/internal/keyspace"
	"github.com/eternalApril/distkv/internal/resp"
)

func cmdPing(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return resp.BulkStringFrom("PONG")
}

func cmdQuit(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return resp.BulkStringFrom("Goodbye")
}

func cmdSet(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	ks.Set(string(args[0]), args[1])
	return resp.OK()
}

func cmdGet(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	v, ok := ks.Get(string(args[0]))
	if !ok {
		return resp.NilBulk()
	}
	return resp.BulkString(v)
}

func cmdDel(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return boolResult(ks.Del(string(args[0])))
}

func cmdExists(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return boolResult(ks.Exists(string(args[0])))
}

func cmdExpire(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	seconds, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return resp.Error("value is not an integer")
	}
	return boolResult(ks.Expire(string(args[0]), seconds))
}

func cmdTTL(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return intResult(ks.TTL(string(args[0])))
}

func cmdKeys(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return resp.ArrayFromStrings(ks.Keys())
}

func cmdDBSize(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return intResult(ks.DBSize())
}

func cmdLPush(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	n, err := ks.LPush(string(args[0]), args[1])
	if err != nil {
		return resp.WrongType()
	}
	return intResult(n)
}

func cmdRPush(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	n, err := ks.RPush(string(args[0]), args[1])
	if err != nil {
		return resp.WrongType()
	}
	return intResult(n)
}

func cmdLPop(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	v, ok := ks.LPop(string(args[0]))
	if !ok {
		return resp.NilBulk()
	}
	return resp.BulkString(v)
}

func cmdRPop(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	v, ok := ks.RPop(string(args[0]))
	if !ok {
		return resp.NilBulk()
	}
	return resp.BulkString(v)
}

func cmdLRange(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	start, err1 := strconv.ParseInt(string(args[1]), 10, 64)
	stop, err2 := strconv.ParseInt(string(args[2]), 10, 64)
	if err1 != nil || err2 != nil {
		return resp.Error("value is not an integer")
	}
	items, ok := ks.LRange(string(args[0]), start, stop)
	if !ok {
		return resp.NilBulk()
	}
	return resp.Array(items)
}

func cmdLLen(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return intResult(ks.LLen(string(args[0])))
}

func cmdSAdd(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	added, err := ks.SAdd(string(args[0]), string(args[1]))
	if err != nil {
		return resp.WrongType()
	}
	return boolResult(added)
}

func cmdSRem(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	removed, err := ks.SRem(string(args[0]), string(args[1]))
	if err != nil {
		return resp.WrongType()
	}
	return boolResult(removed)
}

func cmdSIsMember(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return boolResult(ks.SIsMember(string(args[0]), string(args[1])))
}

func cmdSMembers(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	members, ok := ks.SMembers(string(args[0]))
	if !ok {
		return resp.NilBulk()
	}
	return resp.ArrayFromStrings(members)
}

func cmdSCard(ks *keyspace.Keyspace, args [][]byte) resp.Value {
	return intResult(ks.SCard(string(args[0])))
}

func boolResult(b bool) resp.Value {
	if b {
		return resp.BulkStringFrom("1")
	}
	return resp.BulkStringFrom("0")
}

func intResult(n int64) resp.Value {
	return resp.BulkStringFrom(strconv.FormatInt(n, 10))
}
