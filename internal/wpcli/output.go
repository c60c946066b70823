package wpcli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Output is the interpreted result of one successful command.
type Output struct {
	// Raw is the trimmed standard output.
	Raw string

	// Value holds the decoded JSON value (map[string]any, []any, float64,
	// string, bool or nil) when Decoded is true, otherwise the raw text.
	Value any

	// Decoded reports whether Raw parsed as JSON.
	Decoded bool
}

// Decode interprets stdout as JSON. Empty or malformed output is kept as
// raw text with Decoded left false; it is never an error.
func Decode(stdout string) *Output {
	raw := strings.TrimSpace(stdout)
	if raw == "" || !gjson.Valid(raw) {
		return &Output{Raw: raw, Value: raw}
	}
	return &Output{Raw: raw, Value: gjson.Parse(raw).Value(), Decoded: true}
}

// Get looks up a gjson path in the decoded output. It returns a
// non-existent result when the output was not JSON.
func (o *Output) Get(path string) gjson.Result {
	if o == nil || !o.Decoded {
		return gjson.Result{}
	}
	return gjson.Get(o.Raw, path)
}

// Array returns the top-level elements of a decoded JSON array.
func (o *Output) Array() []gjson.Result {
	if o == nil || !o.Decoded {
		return nil
	}
	return gjson.Parse(o.Raw).Array()
}

// Int parses the output as a single integer, as printed by --porcelain.
func (o *Output) Int() (int, error) {
	if o == nil {
		return 0, fmt.Errorf("no output")
	}
	n, err := strconv.Atoi(strings.TrimSpace(o.Raw))
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %q", o.Raw)
	}
	return n, nil
}
