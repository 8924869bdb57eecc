// Package server implements the memcached ASCII TCP server: it accepts
// connections, owns the shared Cache, and spawns one protocol.Parser plus
// protocol.Interpreter per connection.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/cachemir/cachemir/pkg/cache"
	"github.com/cachemir/cachemir/pkg/protocol"
)

// eot is the byte a client sends to request an immediate, silent close
// (Ctrl-D / end-of-transmission), matching memcached's own EOT handling.
const eot byte = 0x04

// Options configures a Server's listening and per-connection behavior.
type Options struct {
	// Port to bind, default 11211.
	Port int
	// Delay, when true, leaves Nagle's algorithm enabled. By default the
	// server disables it on every accepted connection for low latency.
	Delay bool
	// Fast, when true, makes every connection reply the literal
	// "ERROR\r\n" to any input without touching the cache or the parser —
	// a load-testing mode for measuring pure socket throughput.
	Fast bool
}

func (o Options) port() int {
	if o.Port == 0 {
		return 11211
	}
	return o.Port
}

// Server owns one Cache and a listening socket, and serves the memcached
// ASCII protocol to any number of concurrent connections.
type Server struct {
	cache  *cache.Cache
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	listener  net.Listener
	closed    bool
	readyCh   chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Server bound to c. It does not start listening until Serve
// is called.
func New(c *cache.Cache, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cache:   c,
		opts:    opts,
		logger:  logger,
		readyCh: make(chan struct{}),
	}
}

// Ready is closed once the Server has successfully bound its listening
// socket, so callers can synchronize startup in tests.
func (s *Server) Ready() <-chan struct{} {
	return s.readyCh
}

// Addr returns the bound address, or "" before Serve has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve binds the listening socket and accepts connections until ctx is
// canceled or a fatal accept error occurs. It blocks until the accept loop
// exits.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.port()))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.readyCh) })

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				s.logger.Warn("temporary accept error", zap.Error(err))
				continue
			}
			s.logger.Error("accept error", zap.Error(err))
			return err
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections. In-flight connections are left to
// finish and close on their own.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Wait blocks until every in-flight connection handler has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if !s.opts.Delay {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
	}

	ctx := context.Background()
	parser := protocol.NewParser(protocol.NewInterpreter(s.cache))

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("connection read error", zap.Error(err))
			}
			return
		}

		segment := buf[:n]
		if len(segment) > 0 && segment[0] == eot {
			return
		}

		if s.opts.Fast {
			if _, werr := conn.Write([]byte("ERROR\r\n")); werr != nil {
				return
			}
			continue
		}

		line, rest := splitAtCRLF(segment)
		if s.dispatch(ctx, conn, parser, line) {
			return
		}
		if len(rest) > 0 && s.dispatch(ctx, conn, parser, rest) {
			return
		}
	}
}

// dispatch feeds one segment to the parser and writes its response, if
// any. It reports whether the connection should now be closed (the parser
// returned the quit sentinel, or the write failed).
func (s *Server) dispatch(ctx context.Context, conn net.Conn, parser *protocol.Parser, segment []byte) (closeConn bool) {
	response := parser.Feed(ctx, segment)
	if response == "quit" {
		return true
	}
	if response == "" {
		return false
	}
	if _, err := conn.Write([]byte(response + "\r\n")); err != nil {
		s.logger.Debug("connection write error", zap.Error(err))
		return true
	}
	return false
}

// splitAtCRLF splits segment at its first "\r\n", matching the contract
// the Line Parser expects: a header line with its terminator already
// removed, plus whatever (if anything) arrived immediately after it in the
// same read.
func splitAtCRLF(segment []byte) (line, rest []byte) {
	idx := bytes.Index(segment, []byte("\r\n"))
	if idx < 0 {
		return segment, nil
	}
	return segment[:idx], segment[idx+2:]
}
