package wpcli

import (
	"fmt"
	"strings"
)

// RemoteCommandError reports a command that ran and exited non-zero.
type RemoteCommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error returns the remote diagnostic: stderr, or stdout when stderr is empty.
func (e *RemoteCommandError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(e.Stdout); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}
