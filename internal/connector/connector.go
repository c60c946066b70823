// Package connector defines the transport used to reach the host running the
// remote tool.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Connector is the interface for connecting to and executing commands on targets.
//
// A Connector owns at most one underlying connection. It is not safe for
// concurrent Execute calls; callers serialize access per Connector.
type Connector interface {
	// Connect establishes a connection to the target. It is a no-op when a
	// connection is already open.
	Connect(ctx context.Context) error

	// Execute runs a command line on the target and returns the result.
	// A non-zero exit status is reported in Result.ExitCode, not as an error.
	Execute(ctx context.Context, cmd string) (*Result, error)

	// Close terminates the connection. Calling Close twice is safe.
	Close() error

	// String returns a human-readable description of the connection.
	String() string
}

var (
	// ErrMissingHost indicates no host was configured.
	ErrMissingHost = errors.New("host is required")

	// ErrMissingUser indicates no principal was configured.
	ErrMissingUser = errors.New("user is required")

	// ErrNoCredential indicates neither a key path nor a password was configured.
	ErrNoCredential = errors.New("no credential configured: set a key path or a password")

	// ErrNotConnected is returned by Execute when Connect was never called.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError reports a failure to establish a session with the target.
type ConnectionError struct {
	Host string
	Port int
	User string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s@%s: %v", e.User, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
