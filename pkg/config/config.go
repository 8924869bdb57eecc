// Package config provides configuration management for the cache server and
// client components.
//
// The package supports configuration through multiple sources with the
// following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Default values (lowest priority)
//
// Server Configuration:
//   - Port binding and Nagle/fast-mode socket settings
//   - Record-count and memory-size eviction limits
//   - Logging configuration
//
// Client Configuration:
//   - Endpoint list
//   - Per-request timeout
//   - Consistent-hash routing opt-in
//
// Example server usage:
//
//	cfg := config.LoadServerConfig()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Example client usage:
//
//	cfg := config.LoadClientConfig()
//	cfg.Endpoints = []string{"cache1:11211", "cache2:11211"}
//
// Environment variables are prefixed with "CACHEMIR_" and use uppercase names.
// For example, the server port can be set with CACHEMIR_PORT=11211.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default server configuration constants.
const (
	DefaultServerPort      = 11211
	DefaultMaxRecords      = 0 // 0 means unbounded
	DefaultMaxSizeMb       = 0 // 0 means unbounded
	DefaultPurgeIntervalMs = 1000
)

// Default client configuration constants.
const (
	DefaultClientTimeoutMs = 5000
	DefaultVirtualNodes    = 150
)

// ServerConfig holds all configuration options for a cache server instance.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags: -port, -max-records, etc.
//  2. Environment variables: CACHEMIR_PORT, CACHEMIR_MAX_RECORDS, etc.
//  3. Default values
//
// Example:
//
//	cfg := &ServerConfig{
//		Port:       11211,
//		MaxRecords: 100000,
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
type ServerConfig struct {
	LogLevel   string // Log level: debug, info, warn, error (default: "info")
	Port       int    // TCP port to listen on (default: 11211)
	MaxRecords int    // Maximum record count before eviction, 0 = unbounded
	MaxSizeMb  int    // Maximum process memory in MB before eviction, 0 = unbounded
	Delay      bool   // Leave Nagle's algorithm enabled (default: false)
	Fast       bool   // Load-test mode: reply ERROR to everything without touching the cache
}

// ClientConfig holds all configuration options for a cache client instance.
//
// Configuration sources (in order of precedence):
//  1. Programmatic configuration
//  2. Environment variables: CACHEMIR_ENDPOINTS, CACHEMIR_TIMEOUT_MS, etc.
//  3. Default values
//
// Example:
//
//	cfg := &ClientConfig{
//		Endpoints: []string{"cache1:11211", "cache2:11211"},
//		TimeoutMs: 3000,
//	}
type ClientConfig struct {
	Endpoints         []string // Server addresses (default: ["localhost:11211"])
	TimeoutMs         int      // Per-request timeout in milliseconds (default: 5000)
	UseConsistentRing bool     // Route by consistent hash instead of weighted random
	VirtualNodes      int      // Virtual nodes per endpoint when using the ring (default: 150)
}

// LoadServerConfig creates a ServerConfig by loading values from command-line
// flags and environment variables, with sensible defaults.
//
// Command-line flags:
//
//	-port: Server port (default: 11211)
//	-max-records: Maximum record count (default: 0, unbounded)
//	-max-size-mb: Maximum total size in MB (default: 0, unbounded)
//	-delay: Leave Nagle's algorithm enabled (default: false)
//	-fast: Load-test mode (default: false)
//	-log-level: Log level (default: "info")
//
// Environment variables:
//
//	CACHEMIR_PORT, CACHEMIR_MAX_RECORDS, CACHEMIR_MAX_SIZE_MB, CACHEMIR_LOG_LEVEL
func LoadServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Port:       DefaultServerPort,
		MaxRecords: DefaultMaxRecords,
		MaxSizeMb:  DefaultMaxSizeMb,
		LogLevel:   "info",
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.IntVar(&cfg.MaxRecords, "max-records", cfg.MaxRecords, "Maximum record count before eviction (0 = unbounded)")
	flag.IntVar(&cfg.MaxSizeMb, "max-size-mb", cfg.MaxSizeMb, "Maximum process memory in MB before eviction (0 = unbounded)")
	flag.BoolVar(&cfg.Delay, "delay", cfg.Delay, "Leave Nagle's algorithm enabled")
	flag.BoolVar(&cfg.Fast, "fast", cfg.Fast, "Load-test mode: reply ERROR to everything")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if port := os.Getenv("CACHEMIR_PORT"); port != "" && !explicit["port"] {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if maxRecords := os.Getenv("CACHEMIR_MAX_RECORDS"); maxRecords != "" && !explicit["max-records"] {
		if mr, err := strconv.Atoi(maxRecords); err == nil {
			cfg.MaxRecords = mr
		}
	}
	if maxSizeMb := os.Getenv("CACHEMIR_MAX_SIZE_MB"); maxSizeMb != "" && !explicit["max-size-mb"] {
		if ms, err := strconv.Atoi(maxSizeMb); err == nil {
			cfg.MaxSizeMb = ms
		}
	}
	if logLevel := os.Getenv("CACHEMIR_LOG_LEVEL"); logLevel != "" && !explicit["log-level"] {
		cfg.LogLevel = logLevel
	}

	return cfg
}

// LoadClientConfig creates a ClientConfig by loading values from environment
// variables, with sensible defaults.
//
// Environment variables:
//
//	CACHEMIR_ENDPOINTS: Comma-separated list of server addresses
//	CACHEMIR_TIMEOUT_MS: Per-request timeout in milliseconds
//	CACHEMIR_VIRTUAL_NODES: Virtual nodes for consistent-hash routing
func LoadClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		Endpoints:    []string{"localhost:11211"},
		TimeoutMs:    DefaultClientTimeoutMs,
		VirtualNodes: DefaultVirtualNodes,
	}

	if endpoints := os.Getenv("CACHEMIR_ENDPOINTS"); endpoints != "" {
		cfg.Endpoints = strings.Split(endpoints, ",")
		for i, e := range cfg.Endpoints {
			cfg.Endpoints[i] = strings.TrimSpace(e)
		}
	}
	if timeoutMs := os.Getenv("CACHEMIR_TIMEOUT_MS"); timeoutMs != "" {
		if t, err := strconv.Atoi(timeoutMs); err == nil {
			cfg.TimeoutMs = t
		}
	}
	if virtualNodes := os.Getenv("CACHEMIR_VIRTUAL_NODES"); virtualNodes != "" {
		if vn, err := strconv.Atoi(virtualNodes); err == nil {
			cfg.VirtualNodes = vn
		}
	}

	return cfg
}

// Validate checks if the ServerConfig contains valid values.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - MaxRecords and MaxSizeMb must be non-negative
//   - LogLevel must be one of: debug, info, warn, error
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("max records must be non-negative: %d", c.MaxRecords)
	}
	if c.MaxSizeMb < 0 {
		return fmt.Errorf("max size mb must be non-negative: %d", c.MaxSizeMb)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Validate checks if the ClientConfig contains valid values.
//
// Validation rules:
//   - At least one endpoint must be specified
//   - All endpoint addresses must be non-empty and contain a colon
//   - TimeoutMs must be positive
//   - VirtualNodes must be positive
func (c *ClientConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint must be specified")
	}
	for _, e := range c.Endpoints {
		if e == "" {
			return fmt.Errorf("empty endpoint address")
		}
		if !strings.Contains(e, ":") {
			return fmt.Errorf("invalid endpoint address format: %s", e)
		}
	}
	if c.TimeoutMs < 1 {
		return fmt.Errorf("timeout must be positive: %d", c.TimeoutMs)
	}
	if c.VirtualNodes < 1 {
		return fmt.Errorf("virtual nodes must be positive: %d", c.VirtualNodes)
	}

	return nil
}
