// Package client provides a Go client SDK for a memcached-ASCII-protocol
// cache server.
//
// The client dials one connection per configured endpoint and by default
// dispatches each request to a weighted-random endpoint (see pkg/hash).
// Callers who need stable key placement across calls can opt into a
// consistent-hash ring instead. There is no automatic cross-endpoint
// retry: a failed request surfaces its error to the caller, who decides
// whether to retry against the same or a different endpoint.
//
// Basic Usage:
//
//	c, err := client.New([]string{"cache1:11211", "cache2:11211"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Set("user:123", []byte("john_doe"), 0, 0); err != nil {
//		log.Fatal(err)
//	}
//	value, flags, found, err := c.Get("user:123")
//
// Weighted Endpoints:
//
//	c, err := client.NewWeighted(map[string]float64{
//		"cache1:11211": 3,
//		"cache2:11211": 1,
//	})
//
// Consistent Routing:
//
//	c, err := client.New(addrs, client.WithConsistentRouting())
package client

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cachemir/cachemir/pkg/hash"
)

const defaultTimeout = 5 * time.Second

// Endpoint is one server address paired with its dispatch weight.
type Endpoint struct {
	Address string
	Weight  float64
}

type options struct {
	timeout  time.Duration
	delay    bool
	logger   *zap.Logger
	useRing  bool
	virtualN int
}

// Option configures a Client.
type Option func(*options)

// WithTimeout overrides the per-request connection deadline (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDelay disables TCP_NODELAY on client connections, trading latency
// for bandwidth efficiency under heavy pipelining. Off by default.
func WithDelay() Option {
	return func(o *options) { o.delay = true }
}

// WithLogger attaches a zap logger for connection-lifecycle events. If
// omitted, a no-op logger is used.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConsistentRouting switches endpoint selection from the default
// weighted-random strategy to a consistent-hash ring, giving stable key
// placement across calls at the cost of ignoring per-endpoint weights.
func WithConsistentRouting() Option {
	return func(o *options) { o.useRing = true }
}

// WithVirtualNodes sets the ring's virtual-node count when
// WithConsistentRouting is also supplied. Ignored otherwise.
func WithVirtualNodes(n int) Option {
	return func(o *options) { o.virtualN = n }
}

// Client dispatches memcached-protocol requests across a fixed set of
// server endpoints. It is safe for concurrent use.
type Client struct {
	mu    sync.RWMutex
	conns map[string]*serverConn

	selector *hash.WeightedSelector
	ring     *hash.ConsistentHash

	logger *zap.Logger
	opts   options
}

// New connects to addrs with equal dispatch weight.
func New(addrs []string, opts ...Option) (*Client, error) {
	entries := make([]hash.WeightedEntry, len(addrs))
	for i, a := range addrs {
		entries[i] = hash.WeightedEntry{Address: a, Weight: 1}
	}
	return newClient(entries, opts...)
}

// NewWeighted connects to the given address-to-weight map. Weights are
// honored exactly as given; see pkg/hash.WeightedSelector.
func NewWeighted(weights map[string]float64, opts ...Option) (*Client, error) {
	entries := make([]hash.WeightedEntry, 0, len(weights))
	for addr, w := range weights {
		entries = append(entries, hash.WeightedEntry{Address: addr, Weight: w})
	}
	return newClient(entries, opts...)
}

func newClient(entries []hash.WeightedEntry, optFns ...Option) (*Client, error) {
	o := options{timeout: defaultTimeout, logger: zap.NewNop(), virtualN: hash.DefaultVirtualNodes}
	for _, fn := range optFns {
		fn(&o)
	}

	c := &Client{
		conns:  make(map[string]*serverConn),
		logger: o.logger,
		opts:   o,
	}

	var mu sync.Mutex
	var g errgroup.Group
	live := make([]hash.WeightedEntry, 0, len(entries))

	for _, e := range entries {
		e := e
		g.Go(func() error {
			sc, err := dialServerConn(e.Address, o.timeout, o.delay, o.logger)
			if err != nil {
				o.logger.Warn("endpoint dial failed", zap.String("address", e.Address), zap.Error(err))
				return nil
			}
			mu.Lock()
			c.conns[e.Address] = sc
			live = append(live, e)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // individual dial errors are logged, not fatal

	if len(live) == 0 {
		return nil, ErrNoServers
	}

	c.selector = hash.NewWeightedSelector(live)
	if o.useRing {
		ring := hash.New(o.virtualN)
		for _, e := range live {
			ring.AddNode(e.Address)
		}
		c.ring = ring
	}
	return c, nil
}

// pick selects and returns the connection responsible for key.
func (c *Client) pick(key string) (*serverConn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var addr string
	if c.ring != nil {
		addr = c.ring.GetNode(key)
	} else {
		addr = c.selector.Pick()
	}
	if addr == "" {
		return nil, ErrNoServers
	}
	conn, ok := c.conns[addr]
	if !ok {
		return nil, fmt.Errorf("no connection for endpoint %s", addr)
	}
	return conn, nil
}

// Get retrieves key's value, flags, and whether it was found.
func (c *Client) Get(key string) (value []byte, flags uint32, found bool, err error) {
	conn, err := c.pick(key)
	if err != nil {
		return nil, 0, false, err
	}
	return conn.Get(key)
}

// Set unconditionally stores value under key with the given flags and
// expiration in seconds (0 = never expire).
func (c *Client) Set(key string, value []byte, flags uint32, exptimeSeconds int64) error {
	conn, err := c.pick(key)
	if err != nil {
		return err
	}
	stored, err := conn.store("set", key, value, exptimeSeconds, flags)
	if err != nil {
		return err
	}
	if !stored {
		return fmt.Errorf("set did not report STORED")
	}
	return nil
}

// Add stores value under key only if key does not already exist. Returns
// false (no error) if the key was already present.
func (c *Client) Add(key string, value []byte, flags uint32, exptimeSeconds int64) (bool, error) {
	conn, err := c.pick(key)
	if err != nil {
		return false, err
	}
	return conn.store("add", key, value, exptimeSeconds, flags)
}

// Replace stores value under key only if key already exists. Returns
// false (no error) if the key was absent.
func (c *Client) Replace(key string, value []byte, flags uint32, exptimeSeconds int64) (bool, error) {
	conn, err := c.pick(key)
	if err != nil {
		return false, err
	}
	return conn.store("replace", key, value, exptimeSeconds, flags)
}

// Append adds data to the end of key's existing value. Returns false (no
// error) if the key was absent.
func (c *Client) Append(key string, data []byte) (bool, error) {
	conn, err := c.pick(key)
	if err != nil {
		return false, err
	}
	return conn.store("append", key, data, 0, 0)
}

// Prepend adds data to the beginning of key's existing value. Returns
// false (no error) if the key was absent.
func (c *Client) Prepend(key string, data []byte) (bool, error) {
	conn, err := c.pick(key)
	if err != nil {
		return false, err
	}
	return conn.store("prepend", key, data, 0, 0)
}

// Delete removes key. Returns false (no error) if the key was absent.
func (c *Client) Delete(key string) (bool, error) {
	conn, err := c.pick(key)
	if err != nil {
		return false, err
	}
	return conn.Delete(key)
}

// Incr adds delta to key's integer value. found is false if the key was
// absent. Returns ErrNonNumeric if the stored value doesn't parse as an
// integer.
func (c *Client) Incr(key string, delta int64) (value int64, found bool, err error) {
	conn, err := c.pick(key)
	if err != nil {
		return 0, false, err
	}
	return conn.incrDecr("incr", key, delta)
}

// Decr subtracts delta from key's integer value, clamped at 0. found is
// false if the key was absent.
func (c *Client) Decr(key string, delta int64) (value int64, found bool, err error) {
	conn, err := c.pick(key)
	if err != nil {
		return 0, false, err
	}
	return conn.incrDecr("decr", key, delta)
}

// Touch updates key's expiration without altering its value. Returns
// false (no error) if the key was absent.
func (c *Client) Touch(key string, exptimeSeconds int64) (bool, error) {
	conn, err := c.pick(key)
	if err != nil {
		return false, err
	}
	return conn.Touch(key, exptimeSeconds)
}

// Stats queries every endpoint and returns one stats map per address. An
// endpoint that errors is omitted with its error logged, not returned,
// since stats is a diagnostic aggregate rather than a per-key operation.
func (c *Client) Stats() map[string]map[string]string {
	c.mu.RLock()
	conns := make(map[string]*serverConn, len(c.conns))
	for addr, sc := range c.conns {
		conns[addr] = sc
	}
	c.mu.RUnlock()

	out := make(map[string]map[string]string, len(conns))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for addr, sc := range conns {
		addr, sc := addr, sc
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := sc.Stats()
			if err != nil {
				c.logger.Warn("stats failed", zap.String("address", addr), zap.Error(err))
				return
			}
			mu.Lock()
			out[addr] = stats
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// Version returns the server version reported by key's endpoint.
func (c *Client) Version(key string) (string, error) {
	conn, err := c.pick(key)
	if err != nil {
		return "", err
	}
	return conn.Version()
}

// Flush clears the cache on key's endpoint immediately.
func (c *Client) Flush(key string) error {
	conn, err := c.pick(key)
	if err != nil {
		return err
	}
	return conn.Flush()
}

// Close closes every endpoint connection in parallel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var g errgroup.Group
	for _, sc := range c.conns {
		sc := sc
		g.Go(func() error {
			return sc.Close()
		})
	}
	return g.Wait()
}
