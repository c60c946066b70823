// Package local provides a connector that runs the remote tool on this machine.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"runtime"

	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/connector"
)

// Connector executes command lines through a local shell.
type Connector struct {
	shell     string
	shellArgs []string
	runAs     string
}

// Option configures the local connector.
type Option func(*Connector)

// WithRunAs runs every command through sudo as the given user, typically the
// web server account that owns the site files.
func WithRunAs(user string) Option {
	return func(c *Connector) {
		c.runAs = user
	}
}

// WithShell sets a custom shell for command execution.
func WithShell(shell string, args ...string) Option {
	return func(c *Connector) {
		c.shell = shell
		c.shellArgs = args
	}
}

// New creates a new local connector.
func New(opts ...Option) *Connector {
	c := &Connector{
		shell:     "/bin/sh",
		shellArgs: []string{"-c"},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect checks that the platform and shell are usable.
func (c *Connector) Connect(ctx context.Context) error {
	switch runtime.GOOS {
	case "darwin", "linux", "freebsd":
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if _, err := exec.LookPath(c.shell); err != nil {
		return fmt.Errorf("shell %s not found: %w", c.shell, err)
	}
	return nil
}

// Execute runs a command line locally and returns the result.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	args := append(append([]string(nil), c.shellArgs...), c.wrap(cmd))
	execCmd := exec.CommandContext(ctx, c.shell, args...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("command interrupted: %w", ctxErr)
	}

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// wrap hands the whole line to a shell running as runAs.
func (c *Connector) wrap(cmd string) string {
	if c.runAs == "" {
		return cmd
	}
	return fmt.Sprintf("sudo -n -u %s -- %s", command.Quote(c.runAs), command.Join(c.shell, "-c", cmd))
}

// Close is a no-op for local connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	if c.runAs != "" {
		return fmt.Sprintf("local://%s@%s (as %s)", name, hostname, c.runAs)
	}
	return fmt.Sprintf("local://%s@%s", name, hostname)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
