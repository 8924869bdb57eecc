package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cachemir/cachemir/pkg/cache"
)

// Interpreter binds a parsed (verb, args, payload) triple to the
// corresponding Cache operation and formats its result as a wire response.
// The static Table in commands.go tells the Parser how to split the wire
// line into args; the Interpreter is the only place that knows what each
// verb's args mean to the Cache.
type Interpreter struct {
	cache  *cache.Cache
	tracer trace.Tracer
}

// NewInterpreter binds an Interpreter to the Cache it will dispatch against.
func NewInterpreter(c *cache.Cache) *Interpreter {
	return &Interpreter{cache: c, tracer: otel.Tracer("protocol")}
}

// Execute runs one command against the Cache and returns its wire response.
// payload is nil for commands without a data block.
func (i *Interpreter) Execute(ctx context.Context, verb string, args map[string]string, payload []byte) string {
	_, span := i.tracer.Start(ctx, "Interpreter.Execute", trace.WithAttributes(attribute.String("verb", verb)))
	defer span.End()

	switch verb {
	case "get":
		return i.get(args)
	case "set":
		return boolToken(i.cache.Set(args["key"], payload, atoi64(args["exptime"]), atou32(args["flags"])), "STORED", "NOT_STORED")
	case "add":
		return boolToken(i.cache.Add(args["key"], payload, atoi64(args["exptime"]), atou32(args["flags"])), "STORED", "NOT_STORED")
	case "replace":
		return boolToken(i.cache.Replace(args["key"], payload, atoi64(args["exptime"]), atou32(args["flags"])), "STORED", "NOT_STORED")
	case "append":
		return boolToken(i.cache.Append(args["key"], payload), "STORED", "NOT_STORED")
	case "prepend":
		return boolToken(i.cache.Prepend(args["key"], payload), "STORED", "NOT_STORED")
	case "delete":
		return boolToken(i.cache.Delete(args["key"]), "DELETED", "NOT_FOUND")
	case "incr":
		return i.incrDecr(args, false)
	case "decr":
		return i.incrDecr(args, true)
	case "touch":
		return boolToken(i.cache.Touch(args["key"], atoi64(args["exptime"])), "TOUCHED", "NOT_FOUND")
	case "stats":
		return renderStats(i.cache.Stats())
	case "flush":
		i.cache.Flush()
		return "OK"
	case "flush_all":
		delay := int64(0)
		if v, ok := args["delay"]; ok {
			delay = atoi64(v)
		}
		i.cache.FlushAll(delay)
		return "OK"
	case "version":
		return "VERSION " + i.cache.Version()
	case "verbosity":
		i.cache.Verbosity(atoi64(args["level"]))
		return "OK"
	default:
		return "ERROR"
	}
}

func (i *Interpreter) get(args map[string]string) string {
	key := args["key"]
	record, ok := i.cache.GetRecord(key)
	if !ok {
		return "END"
	}
	return fmt.Sprintf("VALUE %s %d %d\r\n%s\r\nEND", key, record.Flags, len(record.Value), record.Value)
}

func (i *Interpreter) incrDecr(args map[string]string, negate bool) string {
	key := args["key"]
	delta := atoi64(args["value"])
	if negate {
		delta = -delta
	}

	value, ok, err := i.cache.Incr(key, delta)
	if err == cache.ErrNonNumeric {
		return "CLIENT_ERROR " + err.Error()
	}
	if !ok {
		return "NOT_FOUND"
	}
	return strconv.FormatInt(value, 10)
}

func renderStats(entries []cache.StatEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("STATS ")
		b.WriteString(e.Name)
		b.WriteByte(' ')
		b.WriteString(e.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("END")
	return b.String()
}

func boolToken(ok bool, trueToken, falseToken string) string {
	if ok {
		return trueToken
	}
	return falseToken
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func atou32(s string) uint32 {
	n, _ := strconv.ParseUint(s, 10, 32)
	return uint32(n)
}
