// Package server implements the connection server (component C5): the
// TCP acceptor loop and the per-connection read/dispatch/write worker.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/eternalApril/distkv/internal/dispatch"
	"github.com/eternalApril/distkv/internal/keyspace"
	"github.com/eternalApril/distkv/internal/resp"
)

// Server owns the listening socket and the pool of per-connection workers.
type Server struct {
	ks       *keyspace.Keyspace
	engine   *dispatch.Engine
	logger   *zap.Logger
	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a Server dispatching against ks.
func New(ks *keyspace.Keyspace, engine *dispatch.Engine, logger *zap.Logger) *Server {
	return &Server{ks: ks, engine: engine, logger: logger}
}

// listenConfig enables SO_REUSEADDR so a restarted server can rebind a
// port still draining TIME_WAIT connections from a prior instance.
var listenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

// Listen binds address and starts the acceptor loop in a background
// goroutine, returning once the socket is bound.
func (s *Server) Listen(ctx context.Context, address string) error {
	l, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return err
	}
	s.listener = l

	go s.acceptLoop()
	return nil
}

// Addr reports the bound listener address; useful for tests that bind to
// port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept error", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	peer := NewPeer(conn)
	if s.logger.Core().Enabled(zap.DebugLevel) {
		s.logger.Debug("client connected", zap.String("addr", peer.RemoteAddr()))
	}
	defer func() {
		peer.Close() //nolint:errcheck
		if s.logger.Core().Enabled(zap.DebugLevel) {
			s.logger.Debug("client disconnected", zap.String("addr", peer.RemoteAddr()))
		}
	}()

	for {
		line, err := peer.ReadLine()
		if err != nil {
			if err != io.EOF {
				s.logger.Warn("read error", zap.Error(err))
			}
			return
		}

		req := resp.ParseRequest(line)
		if req.Command == "" {
			continue
		}

		result, shouldClose := s.engine.Execute(s.ks, req.Command, req.Args)
		if err := peer.Send(result); err != nil {
			s.logger.Error("write error", zap.Error(err))
			return
		}
		if shouldClose {
			return
		}
	}
}

// Shutdown stops accepting new connections. It does not wait for
// in-flight workers; callers should follow it with Wait.
func (s *Server) Shutdown() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Wait blocks until all in-flight connection workers have exited.
func (s *Server) Wait() {
	s.wg.Wait()
}
