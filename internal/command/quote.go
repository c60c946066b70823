package command

import "strings"

// Quote returns s as a single POSIX shell word.
//
// The value is wrapped in single quotes, inside which the shell interprets
// nothing. Embedded single quotes are emitted as '\'' (close, escaped quote,
// reopen). The result always parses back to exactly one word equal to s,
// whatever s contains: quotes, backticks, $(), semicolons, newlines.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes every element and joins them with spaces.
func Join(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}

// Word returns s bare when it is a plain token (letters, digits and
// _ . : / -), otherwise quoted.
func Word(s string) string {
	if s != "" && tokenPattern.MatchString(s) {
		return s
	}
	return Quote(s)
}
