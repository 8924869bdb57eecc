package server

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/cachemir/cachemir/pkg/cache"
)

func newPipeSession(t *testing.T) (net.Conn, func()) {
	t.Helper()

	srv := New(cache.New(cache.NoLimit()), Options{}, nil)

	serverSide, clientSide := net.Pipe()
	srv.wg.Add(1)
	go srv.handleConn(serverSide)

	return clientSide, func() {
		_ = clientSide.Close()
	}
}

func sendCommand(t *testing.T, conn net.Conn, cmd string, readUntil string) string {
	t.Helper()
	if _, err := conn.Write([]byte(cmd)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := bufio.NewReader(conn)
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		b.WriteString(line)
		if strings.HasSuffix(b.String(), readUntil) {
			return b.String()
		}
	}
}

func TestServerSetGetDelete(t *testing.T) {
	conn, stop := newPipeSession(t)
	defer stop()

	resp := sendCommand(t, conn, "set a 12 0 3\r\nfoo\r\n", "\r\n")
	if resp != "STORED\r\n" {
		t.Fatalf("unexpected set response: %q", resp)
	}

	resp = sendCommand(t, conn, "get a\r\n", "END\r\n")
	if resp != "VALUE a 12 3\r\nfoo\r\nEND\r\n" {
		t.Fatalf("unexpected get response: %q", resp)
	}

	resp = sendCommand(t, conn, "delete a\r\n", "\r\n")
	if resp != "DELETED\r\n" {
		t.Fatalf("unexpected delete response: %q", resp)
	}
}

func TestServerUnknownCommand(t *testing.T) {
	conn, stop := newPipeSession(t)
	defer stop()

	resp := sendCommand(t, conn, "bogus\r\n", "\r\n")
	if resp != "ERROR\r\n" {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestServerQuitClosesConnection(t *testing.T) {
	conn, stop := newPipeSession(t)
	defer stop()

	if _, err := conn.Write([]byte("quit\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed after quit")
	}
}

func TestServerFastModeAlwaysErrors(t *testing.T) {
	srv := New(cache.New(cache.NoLimit()), Options{Fast: true}, nil)
	serverSide, clientSide := net.Pipe()
	srv.wg.Add(1)
	go srv.handleConn(serverSide)
	defer clientSide.Close()

	resp := sendCommand(t, clientSide, "get anything\r\n", "\r\n")
	if resp != "ERROR\r\n" {
		t.Fatalf("fast mode should always reply ERROR, got %q", resp)
	}
}

func TestSplitAtCRLF(t *testing.T) {
	line, rest := splitAtCRLF([]byte("get foo\r\nget bar\r\n"))
	if string(line) != "get foo" || string(rest) != "get bar\r\n" {
		t.Fatalf("unexpected split: line=%q rest=%q", line, rest)
	}

	line, rest = splitAtCRLF([]byte("partial"))
	if string(line) != "partial" || rest != nil {
		t.Fatalf("unexpected split with no CRLF: line=%q rest=%q", line, rest)
	}
}
