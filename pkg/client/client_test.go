package client_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/cachemir/cachemir/internal/server"
	"github.com/cachemir/cachemir/pkg/cache"
	"github.com/cachemir/cachemir/pkg/client"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()

	// Options.Port 0 means the default port 11211, so reserve a free port
	// first to let several test servers run side by side.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	c := cache.New(cache.NoLimit())
	srv := server.New(c, server.Options{Port: port}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(done)
	}()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}

	return srv.Addr(), func() {
		cancel()
		_ = srv.Close()
		<-done
	}
}

func TestClientSetGetDelete(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if err := cl.Set("greeting", []byte("hello"), 7, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, flags, found, err := cl.Get("greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if string(value) != "hello" || flags != 7 {
		t.Fatalf("unexpected value/flags: %q %d", value, flags)
	}

	deleted, err := cl.Delete("greeting")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}

	_, _, found, err = cl.Get("greeting")
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if found {
		t.Fatal("expected not found after delete")
	}
}

func TestClientAddReplace(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	added, err := cl.Add("k1", []byte("v1"), 0, 0)
	if err != nil || !added {
		t.Fatalf("Add: added=%v err=%v", added, err)
	}
	added, err = cl.Add("k1", []byte("v2"), 0, 0)
	if err != nil || added {
		t.Fatalf("second Add should fail: added=%v err=%v", added, err)
	}

	replaced, err := cl.Replace("k1", []byte("v3"), 0, 0)
	if err != nil || !replaced {
		t.Fatalf("Replace: replaced=%v err=%v", replaced, err)
	}

	value, _, _, err := cl.Get("k1")
	if err != nil || string(value) != "v3" {
		t.Fatalf("expected v3, got %q err=%v", value, err)
	}
}

func TestClientAppendPrepend(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if err := cl.Set("buf", []byte("mid"), 0, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, err := cl.Append("buf", []byte("-end")); err != nil || !ok {
		t.Fatalf("Append: ok=%v err=%v", ok, err)
	}
	if ok, err := cl.Prepend("buf", []byte("start-")); err != nil || !ok {
		t.Fatalf("Prepend: ok=%v err=%v", ok, err)
	}

	value, _, _, err := cl.Get("buf")
	if err != nil || string(value) != "start-mid-end" {
		t.Fatalf("expected start-mid-end, got %q err=%v", value, err)
	}
}

func TestClientIncrDecr(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if err := cl.Set("counter", []byte("10"), 0, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, found, err := cl.Incr("counter", 5)
	if err != nil || !found || value != 15 {
		t.Fatalf("Incr: value=%d found=%v err=%v", value, found, err)
	}

	value, found, err = cl.Decr("counter", 100)
	if err != nil || !found || value != 0 {
		t.Fatalf("Decr should clamp at 0: value=%d found=%v err=%v", value, found, err)
	}
}

func TestClientIncrNonNumeric(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if err := cl.Set("word", []byte("notanumber"), 0, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, _, err = cl.Incr("word", 1)
	if err != client.ErrNonNumeric {
		t.Fatalf("expected ErrNonNumeric, got %v", err)
	}
}

func TestClientTouch(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	touched, err := cl.Touch("missing", 60)
	if err != nil || touched {
		t.Fatalf("Touch on missing key: touched=%v err=%v", touched, err)
	}

	if err := cl.Set("present", []byte("v"), 0, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	touched, err = cl.Touch("present", 60)
	if err != nil || !touched {
		t.Fatalf("Touch: touched=%v err=%v", touched, err)
	}
}

func TestClientVersionAndStats(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	cl, err := client.New([]string{addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	version, err := cl.Version("any-key")
	if err != nil || version == "" {
		t.Fatalf("Version: %q err=%v", version, err)
	}

	stats := cl.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected stats from 1 endpoint, got %d", len(stats))
	}
	if _, ok := stats[addr]["pid"]; !ok {
		t.Fatalf("expected pid in stats, got %v", stats[addr])
	}
}

func TestClientNoServersErrors(t *testing.T) {
	_, err := client.New([]string{"127.0.0.1:1"})
	if err != client.ErrNoServers {
		t.Fatalf("expected ErrNoServers, got %v", err)
	}
}

func TestClientWeightedDispatchUsesAllEndpoints(t *testing.T) {
	addr1, stop1 := startTestServer(t)
	defer stop1()
	addr2, stop2 := startTestServer(t)
	defer stop2()

	cl, err := client.NewWeighted(map[string]float64{addr1: 1, addr2: 1})
	if err != nil {
		t.Fatalf("NewWeighted: %v", err)
	}
	defer cl.Close()

	for i := 0; i < 20; i++ {
		if err := cl.Set("k", []byte("v"), 0, 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	stats := cl.Stats()
	for _, addr := range []string{addr1, addr2} {
		if n, _ := strconv.Atoi(stats[addr]["total_items"]); n == 0 {
			t.Fatalf("expected endpoint %s to receive at least one set, stats=%v", addr, stats[addr])
		}
	}
}
