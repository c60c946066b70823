// Package validate gates untrusted input before it reaches a remote command.
//
// Every validator is a pure function of the input value, the parameter name
// used in error messages, and its constraint parameters. Validators never
// normalize a bad value into a good one: out-of-range input always fails.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Error reports a single rejected parameter.
type Error struct {
	// Param is the parameter name, e.g. "course_id" or "user_ids[3]".
	Param string

	// Constraint describes the rule that was violated.
	Constraint string

	// Got describes the received value.
	Got string
}

func (e *Error) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("%s %s", e.Param, e.Constraint)
	}
	return fmt.Sprintf("%s %s, got %s", e.Param, e.Constraint, e.Got)
}

// Errors collects every violation found in a collection of values.
type Errors struct {
	Param string
	Items []*Error
}

func (e *Errors) Error() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		parts[i] = item.Error()
	}
	return fmt.Sprintf("%s: %d invalid element(s): %s", e.Param, len(e.Items), strings.Join(parts, "; "))
}

// Unwrap exposes the individual violations to errors.As and errors.Is.
func (e *Errors) Unwrap() []error {
	errs := make([]error, len(e.Items))
	for i, item := range e.Items {
		errs[i] = item
	}
	return errs
}

func fail(name, constraint string, v any) *Error {
	return &Error{Param: name, Constraint: constraint, Got: describe(v)}
}

// describe renders a received value for an error message.
func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		if utf8.RuneCountInString(val) > 40 {
			return fmt.Sprintf("%q... (string)", string([]rune(val)[:40]))
		}
		return fmt.Sprintf("%q (string)", val)
	case bool:
		return fmt.Sprintf("%t (bool)", val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v (%T)", val, val)
	}
}

// toInt converts integer-typed values to int. Integral float64 values are
// accepted because JSON decoders produce them for every number.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case uint:
		if uint64(n) > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := toInt(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// PositiveInt requires an integer greater than zero.
func PositiveInt(v any, name string) (int, error) {
	n, ok := toInt(v)
	if !ok || n <= 0 {
		return 0, fail(name, "must be a positive integer", v)
	}
	return n, nil
}

// OptionalPositiveInt is PositiveInt that lets nil through as zero.
func OptionalPositiveInt(v any, name string) (int, error) {
	if v == nil {
		return 0, nil
	}
	return PositiveInt(v, name)
}

// String requires non-empty text of at most maxLen characters.
// A maxLen of zero disables the length check.
func String(v any, name string, maxLen int) (string, error) {
	return checkString(v, name, maxLen, false)
}

// OptionalString is String that accepts the empty string.
func OptionalString(v any, name string, maxLen int) (string, error) {
	return checkString(v, name, maxLen, true)
}

func checkString(v any, name string, maxLen int, allowEmpty bool) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fail(name, "must be a string", v)
	}
	if s == "" && !allowEmpty {
		return "", &Error{Param: name, Constraint: "cannot be empty"}
	}
	if maxLen > 0 {
		if n := utf8.RuneCountInString(s); n > maxLen {
			return "", &Error{
				Param:      name,
				Constraint: fmt.Sprintf("is too long (max %d characters)", maxLen),
				Got:        fmt.Sprintf("%d characters", n),
			}
		}
	}
	return s, nil
}

// IntRange requires an integer within [min, max] inclusive.
func IntRange(v any, name string, min, max int) (int, error) {
	n, ok := toInt(v)
	if !ok {
		return 0, fail(name, "must be an integer", v)
	}
	if n < min || n > max {
		return 0, fail(name, fmt.Sprintf("must be between %d and %d", min, max), v)
	}
	return n, nil
}

// Literal requires a string that exactly matches one of the allowed values.
func Literal(v any, name string, allowed ...string) (string, error) {
	s, ok := v.(string)
	if ok {
		for _, a := range allowed {
			if s == a {
				return s, nil
			}
		}
	}
	return "", fail(name, fmt.Sprintf("must be one of [%s]", strings.Join(allowed, " ")), v)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Slug requires a key made of lowercase letters, digits, dashes and
// underscores, such as a post type or taxonomy name.
func Slug(v any, name string, maxLen int) (string, error) {
	s, err := checkString(v, name, maxLen, false)
	if err != nil {
		return "", err
	}
	if !slugPattern.MatchString(s) {
		return "", fail(name, "must contain only a-z, 0-9, '-' and '_'", v)
	}
	return s, nil
}

// Float requires a finite number that is not below floor.
func Float(v any, name string, floor float64) (float64, error) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail(name, "must be a number", v)
	}
	if f < floor {
		return 0, fail(name, fmt.Sprintf("must be >= %v", floor), v)
	}
	return f, nil
}
