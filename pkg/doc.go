// Package cachemir provides the core components for a memcached-compatible
// caching system.
//
// This package serves as a documentation entry point for the project's
// public API. The actual implementation lives in the sibling packages
// under pkg/ and in internal/server; this file brings together an overview
// of how they fit together.
//
// # Overview
//
// Cachemir is an in-memory caching system exposing the memcached ASCII
// protocol over TCP, plus a client SDK and an embeddable in-process cache
// for callers who want the same storage semantics without a network hop.
// Horizontal scaling is client-side: a Client picks an endpoint per
// request by weighted-random draw (default) or consistent hash (opt-in).
//
// # Key Features
//
//   - Memcached-ASCII-compatible wire protocol
//   - Weighted-random and consistent-hash endpoint selection
//   - Two-phase eviction: by record count, then by memory size
//   - Flat byte-slice values with flags and absolute-ms expiration
//   - Thread-safe operations throughout
//   - Structured logging and distributed tracing hooks
//
// # Architecture Components
//
// Client SDK (pkg/client):
//   - One persistent connection per endpoint
//   - Single-slot pending-request semantics per connection
//   - Per-endpoint circuit breaker
//   - No automatic cross-endpoint retry
//
// Cache Engine (pkg/cache):
//   - In-memory record store: value, flags, absolute expiration in ms
//   - Count- and/or size-based eviction, collapsed via singleflight
//   - Atomic lifetime counter of total items ever stored
//   - Thread-safe, lock-protected record map
//
// Command Syntaxes and Interpreter (pkg/protocol):
//   - Static verb-to-syntax dispatch table
//   - Pure, socket-agnostic line/payload parser state machine
//   - Interpreter translates parsed commands into Cache calls and
//     formats the matching wire response
//
// Hash (pkg/hash):
//   - WeightedSelector: weighted-random endpoint draw, weights honored
//     exactly as given, no renormalization
//   - ConsistentHash: virtual-node ring for stable key placement
//
// Configuration (pkg/config):
//   - Server and client configuration management
//   - Command-line flags and environment variables
//   - Validation and defaults
//
// Server (internal/server):
//   - TCP server with concurrent connection handling
//   - Splits raw reads at the first CRLF and feeds segments to a
//     per-connection Parser
//   - Graceful shutdown support
//
// # Usage Examples
//
// Basic client usage:
//
//	import "github.com/cachemir/cachemir/pkg/client"
//
//	c, err := client.New([]string{"server1:11211", "server2:11211"})
//	defer c.Close()
//
//	err = c.Set("user:123", []byte("john_doe"), 0, 0)
//	value, flags, found, err := c.Get("user:123")
//	deleted, err := c.Delete("user:123")
//
// Weighted endpoints:
//
//	c, err := client.NewWeighted(map[string]float64{
//		"server1:11211": 3,
//		"server2:11211": 1,
//	})
//
// Server setup:
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
// # Wire Operations
//
// Storage:
//   - get, set, add, replace, append, prepend, delete
//
// Counters:
//   - incr, decr — clamped at 0, CLIENT_ERROR on non-numeric values
//
// Expiration and diagnostics:
//   - touch, flush, flush_all, stats, version, verbosity
//
// # Scaling and Performance
//
// Horizontal Scaling:
//   - Client-side endpoint selection, no inter-node communication
//   - Add or remove endpoints without coordinating with the cluster
//   - No single point of failure in the routing layer
//
// # Thread Safety
//
// All components are designed for concurrent use:
//   - Client SDK is safe for concurrent use across goroutines
//   - Cache engine uses a read-write lock around its record map
//   - WeightedSelector and ConsistentHash support concurrent reads
//
// For detailed documentation of specific components, refer to their
// individual package documentation.
package cachemir
