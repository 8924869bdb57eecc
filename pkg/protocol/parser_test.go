package protocol

import (
	"context"
	"strings"
	"testing"

	"github.com/cachemir/cachemir/pkg/cache"
)

func newTestParser() *Parser {
	c := cache.New(cache.NoLimit())
	return NewParser(NewInterpreter(c))
}

// feedLines simulates the Server splitting input at CRLF and feeding one
// line (or payload segment) at a time, as spec section 4.5/4.6 describe.
func feedLines(p *Parser, lines ...string) []string {
	var responses []string
	for _, line := range lines {
		resp := p.Feed(context.Background(), []byte(line))
		if resp != "" {
			responses = append(responses, resp)
		}
	}
	return responses
}

func TestBasicSetGetDelete(t *testing.T) {
	p := newTestParser()

	if got := feedLines(p, "set foo 0 0 5", "hello"); len(got) != 1 || got[0] != "STORED" {
		t.Fatalf("set: %v", got)
	}
	if got := feedLines(p, "get foo"); len(got) != 1 || got[0] != "VALUE foo 0 5\r\nhello\r\nEND" {
		t.Fatalf("get: %v", got)
	}
	if got := feedLines(p, "delete foo"); len(got) != 1 || got[0] != "DELETED" {
		t.Fatalf("delete: %v", got)
	}
	if got := feedLines(p, "get foo"); len(got) != 1 || got[0] != "END" {
		t.Fatalf("get after delete: %v", got)
	}
}

func TestReplaceSemantics(t *testing.T) {
	p := newTestParser()

	if got := feedLines(p, "replace bar 0 0 1", "x"); got[0] != "NOT_STORED" {
		t.Fatalf("replace on empty cache: %v", got)
	}
	if got := feedLines(p, "add bar 0 0 1", "x"); got[0] != "STORED" {
		t.Fatalf("add on absent key: %v", got)
	}
	if got := feedLines(p, "add bar 0 0 1", "y"); got[0] != "NOT_STORED" {
		t.Fatalf("add on present key: %v", got)
	}
	if got := feedLines(p, "replace bar 0 0 1", "y"); got[0] != "STORED" {
		t.Fatalf("replace on present key: %v", got)
	}
}

func TestIncrDecrClamping(t *testing.T) {
	p := newTestParser()

	feedLines(p, "set n 0 0 2", "10")
	if got := feedLines(p, "incr n 5"); got[0] != "15" {
		t.Fatalf("incr: %v", got)
	}
	if got := feedLines(p, "decr n 20"); got[0] != "0" {
		t.Fatalf("decr clamp: %v", got)
	}
}

func TestIncrNonNumeric(t *testing.T) {
	p := newTestParser()

	feedLines(p, "set s 0 0 2", "ab")
	got := feedLines(p, "incr s 5")
	if got[0] != "CLIENT_ERROR cannot increment or decrement non-numeric value" {
		t.Fatalf("incr on non-numeric: %v", got)
	}
}

func TestTouchMissingThenPresent(t *testing.T) {
	p := newTestParser()

	if got := feedLines(p, "touch k 10"); got[0] != "NOT_FOUND" {
		t.Fatalf("touch on missing key: %v", got)
	}
	feedLines(p, "set k 0 0 1", "z")
	if got := feedLines(p, "touch k 10"); got[0] != "TOUCHED" {
		t.Fatalf("touch on present key: %v", got)
	}
}

func TestStatsShape(t *testing.T) {
	p := newTestParser()

	got := feedLines(p, "stats")
	if len(got) != 1 {
		t.Fatalf("expected one stats response, got %v", got)
	}
	if !strings.Contains(got[0], "version "+cache.AppName+"-"+cache.AppVersion) {
		t.Fatalf("stats missing version line: %q", got[0])
	}
	if !strings.HasSuffix(got[0], "END") {
		t.Fatalf("stats should terminate with END: %q", got[0])
	}
}

func TestPayloadSplitAcrossSegments(t *testing.T) {
	p := newTestParser()

	// "set foo 0 0 5\r\nhello\r\n" delivered as header line, then the
	// payload split across two segments with the terminator at the boundary.
	resp := p.Feed(context.Background(), []byte("set foo 0 0 5"))
	if resp != "" {
		t.Fatalf("expected no response mid-command, got %q", resp)
	}
	resp = p.Feed(context.Background(), []byte("hel"))
	if resp != "" {
		t.Fatalf("expected no response mid-payload, got %q", resp)
	}
	resp = p.Feed(context.Background(), []byte("lo\r\n"))
	if resp != "STORED" {
		t.Fatalf("expected STORED after final segment, got %q", resp)
	}

	resp = p.Feed(context.Background(), []byte("get foo"))
	if resp != "VALUE foo 0 5\r\nhello\r\nEND" {
		t.Fatalf("unexpected get response: %q", resp)
	}
}

func TestPayloadExceedsAdvertisedLength(t *testing.T) {
	p := newTestParser()

	p.Feed(context.Background(), []byte("set foo 0 0 3"))
	resp := p.Feed(context.Background(), []byte("toolong\r\n"))
	if resp != "CLIENT_ERROR bad data chunk" {
		t.Fatalf("expected bad data chunk error, got %q", resp)
	}

	// parser must have reset to header state and stay usable
	resp = p.Feed(context.Background(), []byte("get foo"))
	if resp != "END" {
		t.Fatalf("parser did not recover to header state: %q", resp)
	}
}

func TestUnknownVerbIsError(t *testing.T) {
	p := newTestParser()
	if got := p.Feed(context.Background(), []byte("frobnicate k")); got != "ERROR" {
		t.Fatalf("expected ERROR for unknown verb, got %q", got)
	}
}

func TestMissingRequiredTokenIsClientError(t *testing.T) {
	p := newTestParser()
	if got := p.Feed(context.Background(), []byte("get")); got != "CLIENT_ERROR bad command line format" {
		t.Fatalf("expected CLIENT_ERROR, got %q", got)
	}
}

func TestExtraTokensIsError(t *testing.T) {
	p := newTestParser()
	if got := p.Feed(context.Background(), []byte("get foo bar")); got != "ERROR" {
		t.Fatalf("expected ERROR for extra tokens, got %q", got)
	}
}

func TestQuitSentinel(t *testing.T) {
	p := newTestParser()
	if got := p.Feed(context.Background(), []byte("quit")); got != "quit" {
		t.Fatalf("expected quit sentinel, got %q", got)
	}
}

func TestThirtyDayExpirationBoundary(t *testing.T) {
	p := newTestParser()

	// 2592000 == 30 days, treated as relative; should not be immediately expired.
	feedLines(p, "set rel 0 2592000 1", "x")
	if got := feedLines(p, "get rel"); got[0] == "END" {
		t.Fatal("30-day boundary should be relative, not already expired")
	}
}
