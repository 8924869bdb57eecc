// Package cache provides an in-memory, memcached-semantics key/value store.
//
// The cache holds a flat map of string key to Record (see record.go): an
// opaque byte value, an opaque flags word, and an absolute expiration
// timestamp. Every Cache operation documented in the memcached ASCII
// protocol — get, set, add, replace, append, prepend, delete, incr, decr,
// touch, stats, flush, flush_all, version, verbosity — has a direct method
// here, so the protocol Interpreter never reaches into the map itself.
//
// Example usage:
//
//	c := cache.New(cache.ByMaxRecords(10000))
//
//	c.Set("greeting", []byte("hello"), 0, 0)
//	if v, ok := c.Get("greeting"); ok {
//		fmt.Printf("greeting = %s\n", v)
//	}
//
// All operations are safe for concurrent use. The storing operations (set,
// add, replace, append, prepend), delete and touch schedule an asynchronous
// eviction purge after they return, so callers never pay the cost of
// eviction inline with their own request; incr, decr and flush do not.
package cache

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

func pid() int { return os.Getpid() }

// AppName and AppVersion compose the string returned by Version() and
// reported under the "version" stats key, matching the wire format
// "<appname>-<semver>".
const (
	AppName    = "cachemir"
	AppVersion = "2.0.0"
)

// LimitKind distinguishes the shapes a CacheLimit can take. This replaces
// the duck-typed "integer or options object" capacity argument with an
// explicit tagged variant.
type LimitKind int

const (
	// Unbounded disables both count- and size-based eviction.
	Unbounded LimitKind = iota
	// ByCount bounds the cache strictly by record count.
	ByCount
	// BySize bounds the cache strictly by approximate resident memory.
	BySize
	// ByCountAndSize applies both bounds; either one firing triggers a purge.
	ByCountAndSize
)

// CacheLimit describes the capacity bound(s) a Cache enforces.
type CacheLimit struct {
	Kind       LimitKind
	MaxRecords int
	MaxSizeMb  int
}

// ByMaxRecords bounds the cache to at most n records.
func ByMaxRecords(n int) CacheLimit { return CacheLimit{Kind: ByCount, MaxRecords: n} }

// ByMaxSizeMb bounds the cache to approximately n megabytes of resident memory.
func ByMaxSizeMb(n int) CacheLimit { return CacheLimit{Kind: BySize, MaxSizeMb: n} }

// ByBoth bounds the cache by both record count and resident memory.
func ByBoth(maxRecords, maxSizeMb int) CacheLimit {
	return CacheLimit{Kind: ByCountAndSize, MaxRecords: maxRecords, MaxSizeMb: maxSizeMb}
}

// NoLimit disables eviction entirely.
func NoLimit() CacheLimit { return CacheLimit{Kind: Unbounded} }

func (l CacheLimit) maxRecords() int {
	if l.Kind == ByCount || l.Kind == ByCountAndSize {
		return l.MaxRecords
	}
	return 0
}

func (l CacheLimit) maxSizeMb() int {
	if l.Kind == BySize || l.Kind == ByCountAndSize {
		return l.MaxSizeMb
	}
	return 0
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger attaches a structured logger. The default is a no-op logger,
// so embedding a Cache never forces a logging dependency on the caller.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithPort records the TCP port the owning server is bound to, purely for
// the "tcpport" stats key — the Cache itself never listens on anything.
func WithPort(port int) Option {
	return func(c *Cache) { c.port = port }
}

// WithRSSSampler overrides how the Cache samples its own resident memory
// for the size-based eviction phase, so that a caller such as a test need
// not depend on actual OS memory behavior.
func WithRSSSampler(sample func() int) Option {
	return func(c *Cache) { c.sampleRSSMb = sample }
}

// Cache is a thread-safe, in-memory store of Records with memcached
// eviction semantics: bounded by record count, by approximate memory size,
// or both.
type Cache struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // insertion order, for FIFO eviction

	limit CacheLimit

	totalItemsEver *atomic.Uint64
	purgeInFlight  singleflight.Group

	flushMu    sync.Mutex
	flushTimer *time.Timer

	port        int
	startedAt   time.Time
	logger      *zap.Logger
	sampleRSSMb func() int
}

// New creates a Cache bounded by limit. Pass cache.NoLimit() for an
// unbounded cache suitable for embedding.
func New(limit CacheLimit, opts ...Option) *Cache {
	c := &Cache{
		records:        make(map[string]*Record),
		limit:          limit,
		totalItemsEver: atomic.NewUint64(0),
		startedAt:      time.Now(),
		logger:         zap.NewNop(),
		sampleRSSMb:    defaultSampleRSSMb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultSampleRSSMb() int {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int(m.Sys / (1024 * 1024))
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Get returns the value stored at key, or ok=false if the key is absent
// or expired. A miss never triggers eviction.
func (c *Cache) Get(key string) (value []byte, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, found := c.records[key]
	if !found || !r.IsValid(nowMs()) {
		return nil, false
	}
	return r.Value, true
}

// GetRecord is like Get but returns the full Record, including flags and
// expiration.
func (c *Cache) GetRecord(key string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, found := c.records[key]
	if !found || !r.IsValid(nowMs()) {
		return nil, false
	}
	return r, true
}

// Set stores value at key unconditionally, overwriting any existing
// Record, and schedules an eviction purge. It always succeeds.
func (c *Cache) Set(key string, value []byte, expirationSeconds int64, flags uint32) bool {
	c.mu.Lock()
	if _, exists := c.records[key]; !exists {
		c.order = append(c.order, key)
	}
	c.records[key] = NewRecord(value, expirationSeconds, flags, nowMs())
	c.totalItemsEver.Inc()
	c.mu.Unlock()

	c.schedulePurge()
	return true
}

// Add stores value at key only if key is currently absent or expired.
func (c *Cache) Add(key string, value []byte, expirationSeconds int64, flags uint32) bool {
	c.mu.Lock()
	if r, exists := c.records[key]; exists && r.IsValid(nowMs()) {
		c.mu.Unlock()
		return false
	}
	if _, exists := c.records[key]; !exists {
		c.order = append(c.order, key)
	}
	c.records[key] = NewRecord(value, expirationSeconds, flags, nowMs())
	c.totalItemsEver.Inc()
	c.mu.Unlock()

	c.schedulePurge()
	return true
}

// Replace stores value at key only if key is currently present and valid.
func (c *Cache) Replace(key string, value []byte, expirationSeconds int64, flags uint32) bool {
	c.mu.Lock()
	r, exists := c.records[key]
	if !exists || !r.IsValid(nowMs()) {
		c.mu.Unlock()
		return false
	}
	c.records[key] = NewRecord(value, expirationSeconds, flags, nowMs())
	c.totalItemsEver.Inc()
	c.mu.Unlock()

	c.schedulePurge()
	return true
}

// Append adds data to the end of the existing value at key, leaving flags
// and expiration unchanged. It fails if key is absent or expired.
func (c *Cache) Append(key string, data []byte) bool {
	return c.concatenate(key, data, false)
}

// Prepend adds data to the front of the existing value at key, leaving
// flags and expiration unchanged. It fails if key is absent or expired.
func (c *Cache) Prepend(key string, data []byte) bool {
	return c.concatenate(key, data, true)
}

func (c *Cache) concatenate(key string, data []byte, front bool) bool {
	c.mu.Lock()
	r, exists := c.records[key]
	if !exists || !r.IsValid(nowMs()) {
		c.mu.Unlock()
		return false
	}
	var combined []byte
	if front {
		combined = make([]byte, 0, len(data)+len(r.Value))
		combined = append(combined, data...)
		combined = append(combined, r.Value...)
	} else {
		combined = make([]byte, 0, len(r.Value)+len(data))
		combined = append(combined, r.Value...)
		combined = append(combined, data...)
	}
	r.Value = combined
	c.mu.Unlock()

	c.schedulePurge()
	return true
}

// Delete removes key from the cache. It reports whether key was present.
// It also compacts order immediately so a later Set/Add re-adding the same
// key can't leave a stale duplicate behind for the count-based purge to
// trip over.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	_, exists := c.records[key]
	if exists {
		delete(c.records, key)
		c.compactOrderLocked()
	}
	c.mu.Unlock()

	if exists {
		c.schedulePurge()
	}
	return exists
}

// Incr adds delta to the integer value stored at key, clamping the result
// at 0. It returns ErrNonNumeric if the existing value cannot be parsed as
// a base-10 integer, and ok=false if key is absent or expired.
func (c *Cache) Incr(key string, delta int64) (newValue int64, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, exists := c.records[key]
	if !exists || !r.IsValid(nowMs()) {
		return 0, false, nil
	}

	current, parseErr := strconv.ParseInt(string(r.Value), 10, 64)
	if parseErr != nil {
		return 0, true, ErrNonNumeric
	}

	result := current + delta
	if result < 0 {
		result = 0
	}
	r.Value = []byte(strconv.FormatInt(result, 10))
	return result, true, nil
}

// Decr is Incr with a negated delta; the same clamping-at-zero semantics apply.
func (c *Cache) Decr(key string, delta int64) (newValue int64, ok bool, err error) {
	return c.Incr(key, -delta)
}

// Touch updates only the expiration of the Record at key, leaving its
// value and flags untouched. It reports whether key was present.
func (c *Cache) Touch(key string, expirationSeconds int64) bool {
	c.mu.Lock()
	r, exists := c.records[key]
	if exists && r.IsValid(nowMs()) {
		r.Touch(expirationSeconds, nowMs())
	} else {
		exists = false
	}
	c.mu.Unlock()

	if exists {
		c.schedulePurge()
	}
	return exists
}

// Flush empties the cache immediately.
func (c *Cache) Flush() bool {
	c.mu.Lock()
	c.records = make(map[string]*Record)
	c.order = nil
	c.mu.Unlock()
	return true
}

// FlushAll schedules a Flush after delaySeconds. A later call to FlushAll
// replaces any previously scheduled flush rather than stacking timers —
// the last call wins.
func (c *Cache) FlushAll(delaySeconds int64) bool {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	c.flushTimer = time.AfterFunc(time.Duration(delaySeconds)*time.Second, func() {
		c.Flush()
	})
	return true
}

// Version returns the application name and semantic version, formatted as
// "<appname>-<semver>".
func (c *Cache) Version() string {
	return AppName + "-" + AppVersion
}

// Verbosity is an accepted-and-ignored no-op, matching real memcached's
// behavior that verbosity only tunes server-side log chattiness, which
// this implementation controls directly via its logger's level.
func (c *Cache) Verbosity(_ int64) bool {
	return true
}

// Stats returns the exact key set the wire "stats" command reports,
// in a stable key order for deterministic test assertions.
func (c *Cache) Stats() []StatEntry {
	c.mu.RLock()
	curr := c.countValid()
	c.mu.RUnlock()

	maxBytes := int64(c.limit.maxSizeMb()) * 1024 * 1024

	return []StatEntry{
		{"pid", strconv.Itoa(pid())},
		{"uptime", strconv.Itoa(int(time.Since(c.startedAt).Seconds()))},
		{"time", strconv.FormatInt(time.Now().Unix(), 10)},
		{"version", c.Version()},
		{"curr_items", strconv.Itoa(curr)},
		{"total_items", strconv.FormatUint(c.totalItemsEver.Load(), 10)},
		{"bytes", strconv.Itoa(c.sampleRSSMb() * 1024 * 1024)},
		{"max_bytes", strconv.FormatInt(maxBytes, 10)},
		{"tcpport", strconv.Itoa(c.port)},
		{"num_threads", "1"},
		{"cas_enabled", "no"},
		{"evictions", "on"},
	}
}

// StatEntry is one name/value line of a "stats" response.
type StatEntry struct {
	Name  string
	Value string
}

func (c *Cache) countValid() int {
	now := nowMs()
	n := 0
	for _, r := range c.records {
		if r.IsValid(now) {
			n++
		}
	}
	return n
}

// schedulePurge kicks off an asynchronous eviction pass. Concurrent calls
// collapse onto a single in-flight sweep via singleflight, so a burst of
// mutations pays for one purge instead of one per mutation.
func (c *Cache) schedulePurge() {
	go func() {
		_, _, _ = c.purgeInFlight.Do("purge", func() (interface{}, error) {
			c.purge()
			return nil, nil
		})
	}()
}

// purge runs the two-phase eviction sweep described for the Cache: first
// trim by record count, then — if still over budget — trim by approximate
// memory size, preferring to evict expired records before live ones.
func (c *Cache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxRecords := c.limit.maxRecords(); maxRecords > 0 {
		c.purgeByCountLocked(maxRecords)
	}

	if maxSizeMb := c.limit.maxSizeMb(); maxSizeMb > 0 {
		c.purgeBySizeLocked(maxSizeMb)
	}
}

func (c *Cache) purgeByCountLocked(maxRecords int) {
	for len(c.records) >= maxRecords && len(c.order) > 0 {
		c.evictOldestLocked()
	}
}

func (c *Cache) purgeBySizeLocked(maxSizeMb int) {
	if c.sampleRSSMb() < maxSizeMb {
		return
	}

	now := nowMs()
	for _, key := range c.order {
		if r, exists := c.records[key]; exists && !r.IsValid(now) {
			delete(c.records, key)
		}
	}
	c.compactOrderLocked()

	// Re-read memory usage: the purge must not compare the same stale
	// sample twice, or the second phase could never fire.
	for c.sampleRSSMb() >= maxSizeMb && len(c.order) > 0 {
		c.evictOldestLocked()
	}
}

func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	key := c.order[0]
	c.order = c.order[1:]
	if _, exists := c.records[key]; exists {
		delete(c.records, key)
	}
}

func (c *Cache) compactOrderLocked() {
	kept := c.order[:0]
	for _, key := range c.order {
		if _, exists := c.records[key]; exists {
			kept = append(kept, key)
		}
	}
	c.order = kept
}
