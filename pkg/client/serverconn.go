package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// serverConn is one live TCP connection to one server endpoint. It holds
// exactly one outstanding request at a time — a second call blocks on mu
// until the first's response has been read — matching the single-slot
// pending-handler contract. Callers wanting concurrent throughput against
// one endpoint should hold multiple serverConns rather than multiplex this
// one, per the client's pooling note.
type serverConn struct {
	addr    string
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *zap.Logger

	mu sync.Mutex
}

func dialServerConn(addr string, timeout time.Duration, delay bool, logger *zap.Logger) (*serverConn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if !delay {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
	}

	sc := &serverConn{
		addr:    addr,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
		tracer:  otel.Tracer("client"),
		logger:  logger,
	}
	sc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: addr,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return sc, nil
}

// execute serializes fn against this connection's single pending slot,
// applies the connection's deadline, and routes the call through the
// per-endpoint circuit breaker so a consistently failing endpoint trips
// open instead of being hammered with further requests. Each round trip
// gets its own span, named after the canonical command, with the key and
// result status as attributes, mirroring the server's per-command span in
// protocol.Interpreter.Execute.
func (sc *serverConn) execute(verb, key string, fn func() (interface{}, error)) (interface{}, error) {
	_, span := sc.tracer.Start(context.Background(), "executeCommand."+verb, trace.WithAttributes(
		attribute.String("verb", verb),
		attribute.String("key", key),
		attribute.String("address", sc.addr),
	))
	defer span.End()

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.conn.SetDeadline(time.Now().Add(sc.timeout)); err != nil {
		span.SetAttributes(attribute.String("status", "error"))
		return nil, err
	}

	result, err := sc.breaker.Execute(fn)
	if err != nil {
		var ne net.Error
		if ok := asNetError(err, &ne); ok && ne.Timeout() {
			span.SetAttributes(attribute.String("status", "timeout"))
			return nil, ErrTimeout
		}
		span.SetAttributes(attribute.String("status", "error"))
		return nil, err
	}
	span.SetAttributes(attribute.String("status", "ok"))
	return result, nil
}

func (sc *serverConn) readLine() (string, error) {
	line, err := sc.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Get fetches key. found is false if the server reported "END" (key
// absent or expired).
func (sc *serverConn) Get(key string) (value []byte, flags uint32, found bool, err error) {
	result, err := sc.execute("get", key, func() (interface{}, error) {
		if _, err := fmt.Fprintf(sc.conn, "get %s\r\n", key); err != nil {
			return nil, err
		}
		header, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		if header == "END" {
			return getResult{}, nil
		}
		if translated := translateError(header); translated != nil {
			return nil, translated
		}

		_, parsedFlags, n, parseErr := parseValueHeader(header)
		if parseErr != nil {
			return nil, parseErr
		}
		buf := make([]byte, n+2) // payload + trailing CRLF
		if _, err := io.ReadFull(sc.reader, buf); err != nil {
			return nil, err
		}
		if _, err := sc.readLine(); err != nil { // consumes the terminating END
			return nil, err
		}
		return getResult{value: buf[:n], flags: parsedFlags, found: true}, nil
	})
	if err != nil {
		return nil, 0, false, err
	}
	r := result.(getResult)
	return r.value, r.flags, r.found, nil
}

type getResult struct {
	value []byte
	flags uint32
	found bool
}

func parseValueHeader(line string) (key string, flags uint32, bytes int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "VALUE" {
		return "", 0, 0, fmt.Errorf("malformed VALUE header: %q", line)
	}
	f, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed flags in VALUE header: %q", line)
	}
	n, err := strconv.Atoi(fields[3])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed byte count in VALUE header: %q", line)
	}
	return fields[1], uint32(f), n, nil
}

// store issues set/add/replace/append/prepend. append and prepend ignore
// exptime and flags on the wire (framed as 0) per the protocol.
func (sc *serverConn) store(verb, key string, value []byte, exptimeSeconds int64, flags uint32) (bool, error) {
	result, err := sc.execute(verb, key, func() (interface{}, error) {
		if _, err := fmt.Fprintf(sc.conn, "%s %s %d %d %d\r\n", verb, key, flags, exptimeSeconds, len(value)); err != nil {
			return nil, err
		}
		if _, err := sc.conn.Write(value); err != nil {
			return nil, err
		}
		if _, err := sc.conn.Write([]byte("\r\n")); err != nil {
			return nil, err
		}
		line, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		if translated := translateError(line); translated != nil {
			return nil, translated
		}
		return line == "STORED", nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (sc *serverConn) Delete(key string) (bool, error) {
	result, err := sc.execute("delete", key, func() (interface{}, error) {
		if _, err := fmt.Fprintf(sc.conn, "delete %s\r\n", key); err != nil {
			return nil, err
		}
		line, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		if translated := translateError(line); translated != nil {
			return nil, translated
		}
		return line == "DELETED", nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

type incrResult struct {
	value int64
	found bool
}

func (sc *serverConn) incrDecr(verb, key string, delta int64) (int64, bool, error) {
	result, err := sc.execute(verb, key, func() (interface{}, error) {
		if _, err := fmt.Fprintf(sc.conn, "%s %s %d\r\n", verb, key, delta); err != nil {
			return nil, err
		}
		line, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		if line == "NOT_FOUND" {
			return incrResult{}, nil
		}
		if translated := translateError(line); translated != nil {
			return nil, translated
		}
		v, parseErr := strconv.ParseInt(line, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("malformed %s response %q: %w", verb, line, parseErr)
		}
		return incrResult{value: v, found: true}, nil
	})
	if err != nil {
		return 0, false, err
	}
	r := result.(incrResult)
	return r.value, r.found, nil
}

func (sc *serverConn) Touch(key string, exptimeSeconds int64) (bool, error) {
	result, err := sc.execute("touch", key, func() (interface{}, error) {
		if _, err := fmt.Fprintf(sc.conn, "touch %s %d\r\n", key, exptimeSeconds); err != nil {
			return nil, err
		}
		line, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		if translated := translateError(line); translated != nil {
			return nil, translated
		}
		return line == "TOUCHED", nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (sc *serverConn) Stats() (map[string]string, error) {
	result, err := sc.execute("stats", "", func() (interface{}, error) {
		if _, err := fmt.Fprint(sc.conn, "stats\r\n"); err != nil {
			return nil, err
		}
		out := map[string]string{}
		for {
			line, err := sc.readLine()
			if err != nil {
				return nil, err
			}
			if line == "END" {
				return out, nil
			}
			fields := strings.SplitN(line, " ", 3)
			if len(fields) == 3 && fields[0] == "STATS" {
				out[fields[1]] = fields[2]
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]string), nil
}

func (sc *serverConn) Version() (string, error) {
	result, err := sc.execute("version", "", func() (interface{}, error) {
		if _, err := fmt.Fprint(sc.conn, "version\r\n"); err != nil {
			return nil, err
		}
		line, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		return strings.TrimPrefix(line, "VERSION "), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (sc *serverConn) Flush() error {
	_, err := sc.execute("flush", "", func() (interface{}, error) {
		if _, err := fmt.Fprint(sc.conn, "flush\r\n"); err != nil {
			return nil, err
		}
		line, err := sc.readLine()
		if err != nil {
			return nil, err
		}
		return nil, translateError(line)
	})
	return err
}

func (sc *serverConn) Close() error {
	return sc.conn.Close()
}

// translateError maps a non-success status line to a Go error, or returns
// nil if line isn't an error status at all.
func translateError(line string) error {
	switch {
	case line == "CLIENT_ERROR "+ErrNonNumeric.Error():
		return ErrNonNumeric
	case strings.HasPrefix(line, "CLIENT_ERROR "):
		return fmt.Errorf("%s", line)
	case strings.HasPrefix(line, "SERVER_ERROR "):
		return fmt.Errorf("%s", line)
	case line == "ERROR":
		return ErrServerProtocol
	default:
		return nil
	}
}

func asNetError(err error, target *net.Error) bool {
	ne, ok := err.(net.Error)
	if ok {
		*target = ne
	}
	return ok
}
