// Package fakeconn provides an in-memory connector for tests that script
// remote replies by command line.
package fakeconn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eugenetaranov/wpbolt/internal/connector"
)

// Handler returns the result for one command line.
type Handler func(cmd string) (*connector.Result, error)

// Conn records every command and answers through a Handler.
type Conn struct {
	ConnectErr error

	mu       sync.Mutex
	handler  Handler
	rules    []rule
	commands []string
	connects int
	closes   int
	open     bool
	deadline time.Time
}

type rule struct {
	contains string
	result   *connector.Result
	err      error
}

// New returns a Conn whose unmatched commands succeed with empty output.
func New() *Conn {
	return &Conn{}
}

// On answers commands containing substr with stdout and exit code 0.
// Rules are checked in the order they were added.
func (c *Conn) On(substr, stdout string) *Conn {
	return c.OnResult(substr, &connector.Result{Stdout: stdout}, nil)
}

// OnFail answers commands containing substr with a non-zero exit.
func (c *Conn) OnFail(substr, stderr string) *Conn {
	return c.OnResult(substr, &connector.Result{Stderr: stderr, ExitCode: 1}, nil)
}

// OnResult answers commands containing substr with res or err.
func (c *Conn) OnResult(substr string, res *connector.Result, err error) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{contains: substr, result: res, err: err})
	return c
}

// SetHandler installs a handler consulted before any rule.
func (c *Conn) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	if !c.open {
		c.open = true
		c.connects++
	}
	return nil
}

func (c *Conn) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, connector.ErrNotConnected
	}
	c.commands = append(c.commands, cmd)
	c.deadline, _ = ctx.Deadline()
	h := c.handler
	rules := append([]rule(nil), c.rules...)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h != nil {
		return h(cmd)
	}
	for _, r := range rules {
		if strings.Contains(cmd, r.contains) {
			if r.err != nil {
				return nil, r.err
			}
			res := *r.result
			return &res, nil
		}
	}
	return &connector.Result{}, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		c.closes++
	}
	c.open = false
	return nil
}

func (c *Conn) String() string {
	return "fake://test"
}

// Commands returns every executed command line, in order.
func (c *Conn) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// Last returns the most recent command line, or "".
func (c *Conn) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.commands) == 0 {
		return ""
	}
	return c.commands[len(c.commands)-1]
}

// Deadline returns the context deadline seen by the most recent Execute.
func (c *Conn) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// Connects returns how many times the connector went from closed to open.
func (c *Conn) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

var _ connector.Connector = (*Conn)(nil)
