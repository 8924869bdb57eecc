package protocol

import (
	"context"
	"strconv"
	"unicode"
)

type parserState int

const (
	stateHeader parserState = iota
	statePayload
)

// Parser is a per-connection streaming state machine. It knows nothing
// about sockets: the TCP Server feeds it one line at a time while in
// Header state, and one payload segment at a time while in Payload state,
// having already split incoming bytes at the first "\r\n" itself. This
// keeps the parser trivially testable with plain string/byte slices.
type Parser struct {
	interp *Interpreter

	state          parserState
	verb           string
	args           map[string]string
	bytesRemaining int
	buffer         []byte
}

// NewParser creates a Parser bound to interp for dispatching completed
// commands. Every connection gets its own Parser; the Interpreter (and the
// Cache it wraps) is shared.
func NewParser(interp *Interpreter) *Parser {
	return &Parser{interp: interp, state: stateHeader}
}

// Feed delivers the next segment to the parser: a full line while the
// parser is in Header state, or a payload chunk while in Payload state.
// It returns the wire response to write back, or "" if no response is due
// yet (mid-payload), or the sentinel "quit" if the connection should close.
func (p *Parser) Feed(ctx context.Context, segment []byte) string {
	if p.state == statePayload {
		return p.feedPayload(ctx, segment)
	}
	return p.feedHeader(ctx, string(segment))
}

func (p *Parser) feedHeader(ctx context.Context, line string) string {
	tokens := splitFields(line)
	if len(tokens) == 0 {
		return "ERROR"
	}

	verb := tokens[0]
	if verb == "quit" {
		return "quit"
	}

	syntax, ok := Table[verb]
	if !ok {
		return "ERROR"
	}

	rest := tokens[1:]
	args := make(map[string]string, len(syntax.Params))
	for i, param := range syntax.Params {
		if i < len(rest) {
			args[param.Name] = rest[i]
			continue
		}
		if param.Kind.required() {
			return "CLIENT_ERROR bad command line format"
		}
	}
	if len(rest) > len(syntax.Params) {
		return "ERROR"
	}

	if syntax.BytesParam != "" {
		n, parseErr := parsePayloadLength(args[syntax.BytesParam])
		if parseErr != nil {
			return "CLIENT_ERROR bad command line format"
		}
		if n > 0 {
			p.state = statePayload
			p.verb = verb
			p.args = args
			p.bytesRemaining = n
			p.buffer = p.buffer[:0]
			return ""
		}
	}

	return p.interp.Execute(ctx, verb, args, nil)
}

func (p *Parser) feedPayload(ctx context.Context, segment []byte) string {
	if len(segment) < p.bytesRemaining {
		p.buffer = append(p.buffer, segment...)
		p.bytesRemaining -= len(segment)
		return ""
	}

	trimmed := trimTrailingCRLF(segment)
	if len(trimmed) > p.bytesRemaining {
		p.resetToHeader()
		return "CLIENT_ERROR bad data chunk"
	}

	data := append(p.buffer, trimmed...)
	verb, args := p.verb, p.args
	p.resetToHeader()
	return p.interp.Execute(ctx, verb, args, data)
}

func (p *Parser) resetToHeader() {
	p.state = stateHeader
	p.verb = ""
	p.args = nil
	p.bytesRemaining = 0
	p.buffer = nil
}

func parsePayloadLength(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// trimTrailingCRLF strips one trailing "\n" and one trailing "\r" from s —
// never more than one of each — since a payload's own bytes might
// legitimately end in either character.
func trimTrailingCRLF(s []byte) []byte {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}

// splitFields is strings.Fields inlined here to avoid importing strings
// solely for whitespace splitting on the hot parse path.
func splitFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}
