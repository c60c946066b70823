// Package command assembles remote command lines token by token.
//
// Callers describe a command as static subcommand tokens plus typed
// arguments. Build renders each argument according to its kind and quotes
// every string exactly once; there is no way to pass a pre-assembled command
// line through this package.
package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the declared type of an argument value.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindEnum
	KindFlag
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindEnum:
		return "enum"
	case KindFlag:
		return "flag"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

var (
	// Static tokens, flag names and the binary name.
	tokenPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:/-]*$`)

	// Enum values are emitted unquoted, so their alphabet is restricted.
	enumPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
)

// Value is a typed argument value.
type Value struct {
	Kind Kind
	Raw  any
}

// String declares a free-form text value. It is always quoted.
func String(s string) Value { return Value{Kind: KindString, Raw: s} }

// Int declares an integer value.
func Int(n int) Value { return Value{Kind: KindInt, Raw: n} }

// Enum declares a value already checked against a fixed set of literals.
func Enum(s string) Value { return Value{Kind: KindEnum, Raw: s} }

// Float declares a floating point value.
func Float(f float64) Value { return Value{Kind: KindFloat, Raw: f} }

// Bool declares a switch: true renders --name, false drops the flag.
func Bool(b bool) Value { return Value{Kind: KindFlag, Raw: b} }

// Typed declares a value whose Go type is only known at runtime. Build
// rejects it if the type does not match the kind.
func Typed(kind Kind, v any) Value { return Value{Kind: kind, Raw: v} }

// Arg is one named flag or positional argument.
type Arg struct {
	// Name is the flag name without dashes; empty for positional arguments.
	Name string

	Value Value
}

// Descriptor describes one remote invocation before text assembly.
type Descriptor struct {
	// Name is a logical label used for logging, e.g. "course.create".
	Name string

	// Tokens are the static subcommand words, e.g. "post", "create".
	Tokens []string

	// Args are rendered after the tokens, in order.
	Args []Arg
}

// New starts a descriptor for the given subcommand tokens.
func New(name string, tokens ...string) *Descriptor {
	return &Descriptor{Name: name, Tokens: tokens}
}

// Flag appends a --name=value argument.
func (d *Descriptor) Flag(name string, v Value) *Descriptor {
	d.Args = append(d.Args, Arg{Name: name, Value: v})
	return d
}

// Arg appends a positional argument.
func (d *Descriptor) Arg(v Value) *Descriptor {
	d.Args = append(d.Args, Arg{Value: v})
	return d
}

// Switch appends a boolean --name flag.
func (d *Descriptor) Switch(name string, on bool) *Descriptor {
	return d.Flag(name, Bool(on))
}

// Clone returns a copy that can be extended without touching d.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{Name: d.Name}
	c.Tokens = append([]string(nil), d.Tokens...)
	c.Args = append([]Arg(nil), d.Args...)
	return c
}

// Label returns the logical name, falling back to the joined tokens.
func (d *Descriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return strings.Join(d.Tokens, " ")
}

// Build renders the descriptor as command text.
func (d *Descriptor) Build() (string, error) {
	if len(d.Tokens) == 0 {
		return "", &BuildError{Command: d.Label(), Reason: "no subcommand tokens"}
	}

	words := make([]string, 0, len(d.Tokens)+len(d.Args))
	for _, tok := range d.Tokens {
		if !tokenPattern.MatchString(tok) {
			return "", &BuildError{Command: d.Label(), Reason: fmt.Sprintf("invalid static token %q", tok)}
		}
		words = append(words, tok)
	}

	for i, arg := range d.Args {
		word, err := d.render(i, arg)
		if err != nil {
			return "", err
		}
		if word != "" {
			words = append(words, word)
		}
	}

	return strings.Join(words, " "), nil
}

func (d *Descriptor) render(pos int, arg Arg) (string, error) {
	argName := arg.Name
	if argName == "" {
		argName = fmt.Sprintf("#%d", pos)
	} else if !tokenPattern.MatchString(arg.Name) {
		return "", &BuildError{Command: d.Label(), Arg: arg.Name, Reason: "invalid flag name"}
	}

	fail := func(reason string, args ...any) (string, error) {
		return "", &BuildError{Command: d.Label(), Arg: argName, Reason: fmt.Sprintf(reason, args...)}
	}

	if arg.Value.Kind == 0 || arg.Value.Raw == nil {
		return fail("missing value")
	}

	var text string
	switch arg.Value.Kind {
	case KindString:
		s, ok := arg.Value.Raw.(string)
		if !ok {
			return fail("declared %s but got %T", arg.Value.Kind, arg.Value.Raw)
		}
		if arg.Name == "" && strings.HasPrefix(s, "-") {
			return fail("positional value %q would be read as a flag", s)
		}
		text = Quote(s)

	case KindInt:
		n, ok := arg.Value.Raw.(int)
		if !ok {
			return fail("declared %s but got %T", arg.Value.Kind, arg.Value.Raw)
		}
		text = strconv.Itoa(n)

	case KindFloat:
		f, ok := arg.Value.Raw.(float64)
		if !ok {
			return fail("declared %s but got %T", arg.Value.Kind, arg.Value.Raw)
		}
		text = strconv.FormatFloat(f, 'f', -1, 64)

	case KindEnum:
		s, ok := arg.Value.Raw.(string)
		if !ok {
			return fail("declared %s but got %T", arg.Value.Kind, arg.Value.Raw)
		}
		if !enumPattern.MatchString(s) {
			return fail("enum value %q contains characters outside [A-Za-z0-9_.-]", s)
		}
		text = s

	case KindFlag:
		on, ok := arg.Value.Raw.(bool)
		if !ok {
			return fail("declared %s but got %T", arg.Value.Kind, arg.Value.Raw)
		}
		if arg.Name == "" {
			return fail("switch must be named")
		}
		if !on {
			return "", nil
		}
		return "--" + arg.Name, nil

	default:
		return fail("unknown kind %d", arg.Value.Kind)
	}

	if arg.Name == "" {
		return text, nil
	}
	return "--" + arg.Name + "=" + text, nil
}
