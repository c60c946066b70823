// Package wpcli runs command descriptors through the remote tool on a
// connected transport and decodes what comes back.
package wpcli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/connector"
	"github.com/eugenetaranov/wpbolt/internal/logging"
)

const (
	// DefaultBinary is the remote tool invoked for every command.
	DefaultBinary = "wp"

	// DefaultTimeout bounds a single round trip.
	DefaultTimeout = 30 * time.Second
)

// Format selects how output is requested and interpreted.
type Format int

const (
	// FormatJSON appends --format=json and decodes the output.
	FormatJSON Format = iota
	// FormatRaw requests no format and returns the text as-is.
	FormatRaw
	// FormatNone requests no format and discards the output.
	FormatNone
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatRaw:
		return "raw"
	case FormatNone:
		return "none"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Executor runs descriptors against a single connector. Calls are
// serialized: the underlying session is never used concurrently.
type Executor struct {
	conn       connector.Connector
	remotePath string
	binary     string
	timeout    time.Duration
	logger     *zerolog.Logger

	mu sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithRemotePath sets the directory commands run from (the site root).
func WithRemotePath(path string) Option {
	return func(e *Executor) {
		e.remotePath = path
	}
}

// WithBinary overrides the remote tool name or path.
func WithBinary(binary string) Option {
	return func(e *Executor) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-command audit lines. Without it
// the logger carried by each call's context is used.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = &logger
	}
}

// New creates an Executor on conn.
func New(conn connector.Connector, opts ...Option) *Executor {
	e := &Executor{
		conn:    conn,
		binary:  DefaultBinary,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Line returns the full command text Run would send for d.
func (e *Executor) Line(d *command.Descriptor, format Format) (string, error) {
	built, err := d.Build()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if e.remotePath != "" {
		b.WriteString("cd ")
		b.WriteString(command.Quote(e.remotePath))
		b.WriteString(" && ")
	}
	b.WriteString(command.Word(e.binary))
	b.WriteString(" ")
	b.WriteString(built)
	if format == FormatJSON {
		b.WriteString(" --format=json")
	}
	return b.String(), nil
}

// Run builds d, executes it and interprets the output according to format.
//
// A non-zero exit status is returned as *RemoteCommandError. Output that
// fails to decode as JSON is returned as raw text, never as an error.
func (e *Executor) Run(ctx context.Context, d *command.Descriptor, format Format) (*Output, error) {
	line, err := e.Line(d, format)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.conn.Connect(ctx); err != nil {
		return nil, err
	}

	logger := e.log(ctx)
	start := time.Now()
	res, err := e.conn.Execute(ctx, line)
	took := time.Since(start)

	if err != nil {
		logger.Warn().Str("cmd", d.Label()).Dur("took", took).Err(err).Msg("command did not complete")
		return nil, fmt.Errorf("%s: %w", d.Label(), err)
	}

	if res.ExitCode != 0 {
		logger.Warn().
			Str("cmd", d.Label()).
			Int("exit", res.ExitCode).
			Dur("took", took).
			Str("stderr", logging.Redact(strings.TrimSpace(res.Stderr))).
			Msg("command failed")
		return nil, &RemoteCommandError{
			Command:  d.Label(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}

	logger.Debug().
		Str("cmd", d.Label()).
		Str("line", logging.Redact(line)).
		Dur("took", took).
		Msg("command ok")

	switch format {
	case FormatNone:
		return &Output{}, nil
	case FormatJSON:
		return Decode(res.Stdout), nil
	default:
		return &Output{Raw: strings.TrimSpace(res.Stdout)}, nil
	}
}

func (e *Executor) log(ctx context.Context) zerolog.Logger {
	if e.logger != nil {
		return *e.logger
	}
	return logging.FromContext(ctx)
}

// Close closes the underlying connector.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.Close()
}

// String describes where commands run.
func (e *Executor) String() string {
	if e.remotePath == "" {
		return e.conn.String()
	}
	return e.conn.String() + ":" + e.remotePath
}
