// Package dispatch implements the command dispatcher (component C4): it
// validates arity against a fixed table, routes a parsed request to the
// matching keyspace operation, and maps that operation's outcome onto a
// wire response.
package dispatch

import (
	"strings"

	"github.com/eternalApril/distkv/internal/keyspace"
	"github.com/eternalApril/distkv/internal/resp"
)

// CommandFunc executes one command against ks using args (the request's
// arguments, excluding the command token itself).
type CommandFunc func(ks *keyspace.Keyspace, args [][]byte) resp.Value

// Command pairs a handler with its exact required argument count.
type Command struct {
	Arity   int
	Handler CommandFunc
}

// Engine is the command registry: uppercase command name to Command.
type Engine struct {
	commands map[string]Command
}

// NewEngine builds an Engine pre-populated with the full command surface.
func NewEngine() *Engine {
	e := &Engine{commands: make(map[string]Command)}
	e.register("PING", 0, cmdPing)
	e.register("QUIT", 0, cmdQuit)
	e.register("SET", 2, cmdSet)
	e.register("GET", 1, cmdGet)
	e.register("DEL", 1, cmdDel)
	e.register("EXISTS", 1, cmdExists)
	e.register("EXPIRE", 2, cmdExpire)
	e.register("TTL", 1, cmdTTL)
	e.register("KEYS", 0, cmdKeys)
	e.register("DBSIZE", 0, cmdDBSize)
	e.register("LPUSH", 2, cmdLPush)
	e.register("RPUSH", 2, cmdRPush)
	e.register("LPOP", 1, cmdLPop)
	e.register("RPOP", 1, cmdRPop)
	e.register("LRANGE", 3, cmdLRange)
	e.register("LLEN", 1, cmdLLen)
	e.register("SADD", 2, cmdSAdd)
	e.register("SREM", 2, cmdSRem)
	e.register("SISMEMBER", 2, cmdSIsMember)
	e.register("SMEMBERS", 1, cmdSMembers)
	e.register("SCARD", 1, cmdSCard)
	return e
}

func (e *Engine) register(name string, arity int, fn CommandFunc) {
	e.commands[name] = Command{Arity: arity, Handler: fn}
}

// Execute dispatches name/args against ks, returning the response to send
// and whether the connection should close after it (QUIT only).
func (e *Engine) Execute(ks *keyspace.Keyspace, name string, args [][]byte) (resp.Value, bool) {
	if name == "" {
		return resp.Error("unknown command"), false
	}

	upper := strings.ToUpper(name)
	cmd, ok := e.commands[upper]
	if !ok {
		return resp.Error("unknown command"), false
	}
	if len(args) != cmd.Arity {
		return resp.InvalidArgs(), false
	}

	v := cmd.Handler(ks, args)
	return v, upper == "QUIT"
}
