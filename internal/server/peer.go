package server

import (
	"bufio"
	"net"
	"sync"

	"github.com/eternalApril/distkv/internal/resp"
)

// Peer represents a connected client: a line-oriented reader over the
// connection paired with a synchronized RESP-frame writer.
type Peer struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	writer *resp.Encoder
}

// NewPeer wraps conn for line-based command reading and response writing.
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: resp.NewEncoder(conn),
	}
}

// ReadLine reads up to and including the next '\n', returning the line
// with its trailing "\r\n" or "\n" stripped.
func (p *Peer) ReadLine() ([]byte, error) {
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}

// Send encodes and writes v to the client.
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Write(v)
}

// Close terminates the underlying connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}

// RemoteAddr reports the peer's network address for logging.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}
