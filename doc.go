// Package cachemir provides a memcached-compatible in-memory caching
// solution: an ASCII-protocol TCP server, a client SDK, and an embeddable
// in-process cache for callers who don't need a network hop at all.
//
// Cachemir is designed for horizontal scaling via client-side endpoint
// selection (weighted-random by default, consistent-hash ring as an
// opt-in), offering high performance through a line-oriented text
// protocol compatible with existing memcached clients and tooling.
//
// # Architecture Overview
//
// Cachemir consists of several key components:
//
//   - Server: TCP server speaking the memcached ASCII protocol
//   - Client SDK: endpoint-aware client library with pluggable routing
//   - Cache Engine: in-memory record store with count/size-based eviction
//   - Protocol: line-oriented ASCII protocol parser and interpreter
//   - Hash: weighted-random selector and consistent-hash ring
//   - Configuration: flexible configuration through flags and environment variables
//
// # Quick Start
//
// Server:
//
//	import "github.com/cachemir/cachemir/internal/server"
//	import "github.com/cachemir/cachemir/pkg/cache"
//	import "github.com/cachemir/cachemir/pkg/config"
//
//	cfg := config.LoadServerConfig()
//	c := cache.New(cache.ByMaxRecords(cfg.MaxRecords))
//	srv := server.New(c, server.Options{Port: cfg.Port}, nil)
//	log.Fatal(srv.Serve(context.Background()))
//
// Client:
//
//	import "github.com/cachemir/cachemir/pkg/client"
//
//	c, err := client.New([]string{"localhost:11211", "localhost:11212"})
//	defer c.Close()
//
//	c.Set("user:123", []byte("john_doe"), 0, 0)
//	value, flags, found, err := c.Get("user:123")
//
// # Supported Operations
//
// Storage:
//   - get, set, add, replace, append, prepend, delete
//
// Counters:
//   - incr, decr (clamped at 0, non-numeric values are rejected)
//
// Expiration and diagnostics:
//   - touch, flush, flush_all, stats, version, verbosity
//
// # Scaling and Distribution
//
// Cachemir uses client-side endpoint selection for horizontal scaling:
//
//   - Weighted-random dispatch by default — no stable key placement,
//     but honors caller-supplied per-endpoint weights exactly
//   - Optional consistent-hash ring for stable key placement when that
//     matters more than weighting
//   - No inter-node communication required
//   - No automatic cross-endpoint retry: a failed request surfaces to
//     the caller rather than silently failing over
//
// # Configuration
//
// Server configuration via flags or environment variables:
//
//	./cachemir-server -port 11211 -max-records 100000
//	# or
//	CACHEMIR_PORT=11211 CACHEMIR_MAX_RECORDS=100000 ./cachemir-server
//
// Client configuration:
//
//	cfg := &config.ClientConfig{
//		Endpoints: []string{"server1:11211", "server2:11211"},
//		TimeoutMs: 3000,
//	}
//
// # Package Structure
//
//   - pkg/client: client SDK with weighted and consistent-hash routing
//   - pkg/cache: in-memory cache engine, embeddable in-process
//   - pkg/protocol: ASCII command syntaxes, line parser, interpreter
//   - pkg/hash: weighted selector and consistent-hash ring
//   - pkg/config: configuration management
//   - internal/server: TCP server implementation
//   - cmd/server: server executable
//   - cmd/client-example: example client usage
//
// For detailed documentation of individual packages, see their respective godoc pages.
package cachemir
