package server

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/distkv/internal/dispatch"
	"github.com/eternalApril/distkv/internal/keyspace"
)

func startTestServer(t *testing.T) (*Server, net.Addr) {
	t.Helper()
	ks, err := keyspace.New(4)
	if err != nil {
		t.Fatalf("keyspace.New: %v", err)
	}
	s := New(ks, dispatch.NewEngine(), zap.NewNop())
	if err := s.Listen(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() {
		s.Shutdown() //nolint:errcheck
		s.Wait()
	})
	return s, s.Addr()
}

func dialLine(t *testing.T, addr net.Addr) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck
	return conn, bufio.NewReader(conn)
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return line
}

func TestSetGetDelRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)
	conn, r := dialLine(t, addr)

	sendLine(t, conn, "SET foo bar")
	if got := readFrame(t, r); got != "+OK\r\n" {
		t.Fatalf("SET reply = %q", got)
	}

	sendLine(t, conn, "GET foo")
	if got := readFrame(t, r); got != "$3\r\n" {
		t.Fatalf("GET header = %q", got)
	}
	if got := readFrame(t, r); got != "bar\r\n" {
		t.Fatalf("GET payload = %q", got)
	}

	sendLine(t, conn, "DEL foo")
	if got := readFrame(t, r); got != "$1\r\n" {
		t.Fatalf("DEL header = %q", got)
	}
	readFrame(t, r) // "1\r\n"

	sendLine(t, conn, "GET foo")
	if got := readFrame(t, r); got != "$-1\r\n" {
		t.Fatalf("GET after DEL = %q", got)
	}
}

func TestListAndSetScenario(t *testing.T) {
	_, addr := startTestServer(t)
	conn, r := dialLine(t, addr)

	sendLine(t, conn, "RPUSH mylist a")
	readFrame(t, r)
	readFrame(t, r)
	sendLine(t, conn, "RPUSH mylist b")
	readFrame(t, r)
	readFrame(t, r)
	sendLine(t, conn, "LLEN mylist")
	readFrame(t, r)
	if got := readFrame(t, r); got != "2\r\n" {
		t.Fatalf("LLEN = %q", got)
	}

	sendLine(t, conn, "SADD myset x")
	readFrame(t, r)
	if got := readFrame(t, r); got != "1\r\n" {
		t.Fatalf("SADD = %q", got)
	}
	sendLine(t, conn, "SISMEMBER myset x")
	readFrame(t, r)
	if got := readFrame(t, r); got != "1\r\n" {
		t.Fatalf("SISMEMBER = %q", got)
	}
}

func TestWrongTypeScenario(t *testing.T) {
	_, addr := startTestServer(t)
	conn, r := dialLine(t, addr)

	sendLine(t, conn, "SET k v")
	readFrame(t, r)

	sendLine(t, conn, "LPUSH k v2")
	if got := readFrame(t, r); got != "-WRONGTYPE Operation against a key holding the wrong kind of value\r\n" {
		t.Fatalf("LPUSH on string = %q", got)
	}
}

func TestQuitClosesConnection(t *testing.T) {
	_, addr := startTestServer(t)
	conn, r := dialLine(t, addr)

	sendLine(t, conn, "QUIT")
	readFrame(t, r)
	readFrame(t, r)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected connection to be closed after QUIT")
	}
}

func TestConcurrentConnectionsEachSee(t *testing.T) {
	_, addr := startTestServer(t)

	const workers = 4
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			conn, r := dialLine(t, addr)
			for i := 0; i < perWorker; i++ {
				key := "k-" + strconv.Itoa(w) + "-" + strconv.Itoa(i)
				sendLine(t, conn, "SET "+key+" v")
				readFrame(t, r)
			}
		}(w)
	}
	wg.Wait()

	conn, r := dialLine(t, addr)
	sendLine(t, conn, "DBSIZE")
	readFrame(t, r)
	got := strings.TrimSuffix(readFrame(t, r), "\r\n")
	want := strconv.Itoa(workers * perWorker)
	if got != want {
		t.Fatalf("DBSIZE = %q, want %q", got, want)
	}
}
