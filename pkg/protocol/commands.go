// Package protocol implements the memcached ASCII wire protocol: a static
// table of command syntaxes (this file), a per-connection streaming line
// parser (parser.go), and an interpreter that binds parsed commands to
// Cache operations and formats their wire responses (interpreter.go).
package protocol

// ParamKind describes how a Line Parser should treat one positional token
// after a command's verb.
type ParamKind int

const (
	// String is a required token, taken verbatim.
	String ParamKind = iota
	// Number is a required base-10 integer token.
	Number
	// OptionalString may be omitted from the wire line.
	OptionalString
	// OptionalNumber may be omitted from the wire line.
	OptionalNumber
)

func (k ParamKind) required() bool {
	return k == String || k == Number
}

// Param names one positional token in a command's wire syntax.
type Param struct {
	Name string
	Kind ParamKind
}

// Syntax is the static, per-verb description of what follows a command's
// verb on the wire: its positional parameters, and — for storage
// commands — which parameter carries the payload's byte count.
type Syntax struct {
	Verb       string
	Params     []Param
	BytesParam string // name of the Param holding the payload length; "" if the command has no payload
}

// Table is the complete command set the server accepts, keyed by the verb
// exactly as it appears on the wire.
var Table = map[string]*Syntax{
	"get":       {Verb: "get", Params: []Param{{"key", String}}},
	"set":       storageSyntax("set"),
	"add":       storageSyntax("add"),
	"replace":   storageSyntax("replace"),
	"append":    storageSyntax("append"),
	"prepend":   storageSyntax("prepend"),
	"delete":    {Verb: "delete", Params: []Param{{"key", String}}},
	"incr":      {Verb: "incr", Params: []Param{{"key", String}, {"value", Number}}},
	"decr":      {Verb: "decr", Params: []Param{{"key", String}, {"value", Number}}},
	"touch":     {Verb: "touch", Params: []Param{{"key", String}, {"exptime", Number}}},
	"stats":     {Verb: "stats"},
	"flush":     {Verb: "flush"},
	"flush_all": {Verb: "flush_all", Params: []Param{{"delay", OptionalNumber}}},
	"version":   {Verb: "version"},
	"verbosity": {Verb: "verbosity", Params: []Param{{"level", Number}}},
	"quit":      {Verb: "quit"},
}

// storageSyntax builds the shared "key flags exptime bytes" wire shape used
// by set, add, replace, append, and prepend — the on-wire order matches
// real memcached even though append/prepend ignore flags and exptime.
func storageSyntax(verb string) *Syntax {
	return &Syntax{
		Verb: verb,
		Params: []Param{
			{"key", String},
			{"flags", Number},
			{"exptime", Number},
			{"bytes", Number},
		},
		BytesParam: "bytes",
	}
}
