// Package ssh provides the session-backed connector used to reach the remote
// site. One Connector owns one authenticated SSH client: it is dialled lazily
// on Connect, reused by every Execute, and torn down by Close.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	xssh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/wpbolt/internal/connector"
	"github.com/eugenetaranov/wpbolt/internal/logging"
)

const (
	// DefaultPort is used when Config.Port is unset.
	DefaultPort = 22

	// DefaultTimeout bounds the dial and handshake.
	DefaultTimeout = 30 * time.Second
)

// Config holds the session parameters.
type Config struct {
	Host string
	Port int
	User string

	// KeyPath selects key authentication. It takes precedence over Password.
	KeyPath string

	// KeyPassphrase decrypts an encrypted private key.
	KeyPassphrase string

	// Password selects password authentication when no key is configured.
	Password string

	// KnownHostsPath enables host key verification against that file.
	// When empty any host key is accepted.
	KnownHostsPath string

	// Timeout bounds the dial and handshake (default 30s).
	Timeout time.Duration
}

// Validate checks that the configuration is complete without touching the network.
func (c Config) Validate() error {
	if c.Host == "" {
		return connector.ErrMissingHost
	}
	if c.User == "" {
		return connector.ErrMissingUser
	}
	if c.KeyPath == "" && c.Password == "" {
		return connector.ErrNoCredential
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// DialFunc opens the raw transport connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Connector executes commands over a single persistent SSH client.
type Connector struct {
	cfg    Config
	logger zerolog.Logger
	dial   DialFunc

	mu     sync.Mutex
	client *xssh.Client
	dials  int
}

// Option configures the SSH connector.
type Option func(*Connector)

// WithLogger sets the logger used for connection events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithDialer replaces the TCP dialer, e.g. to go through a proxy.
func WithDialer(dial DialFunc) Option {
	return func(c *Connector) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// New validates cfg and returns an unconnected Connector.
func New(cfg Config, opts ...Option) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var d net.Dialer
	c := &Connector{
		cfg:    cfg,
		logger: logging.Component("ssh"),
		dial:   d.DialContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.KeyPath != "" && cfg.Password != "" {
		c.logger.Warn().Str("host", cfg.Host).Msg("both key path and password configured; using key authentication only")
	}

	return c, nil
}

// Connect dials and authenticates. It is a no-op when already connected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	auth, err := c.authMethods()
	if err != nil {
		return c.connErr(err)
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return c.connErr(err)
	}

	clientCfg := &xssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.cfg.Timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	addr := c.addr()
	start := time.Now()

	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return c.connErr(err)
	}

	// The handshake itself has no context; bound it with a deadline and
	// break it early on cancellation.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})

	sconn, chans, reqs, err := xssh.NewClientConn(conn, addr, clientCfg)
	stop()
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return c.connErr(err)
	}
	_ = conn.SetDeadline(time.Time{})

	c.client = xssh.NewClient(sconn, chans, reqs)
	c.dials++

	c.logger.Debug().
		Str("addr", addr).
		Str("user", c.cfg.User).
		Str("auth", c.authKind()).
		Dur("took", time.Since(start)).
		Msg("ssh session established")

	return nil
}

// Execute runs cmd in a new channel on the live client.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return nil, connector.ErrNotConnected
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh channel on %s: %w", c.addr(), err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(xssh.SIGKILL)
		_ = session.Close()
		return nil, fmt.Errorf("remote command interrupted: %w", ctx.Err())
	}

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *xssh.ExitError
		var missingErr *xssh.ExitMissingError
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitStatus()
		case errors.As(err, &missingErr):
			return nil, fmt.Errorf("remote command ended without exit status: %w", err)
		default:
			return nil, fmt.Errorf("failed to execute remote command: %w", err)
		}
	}

	return result, nil
}

// Close tears down the client. It always leaves the connector disconnected.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil
	c.logger.Debug().Str("addr", c.addr()).Msg("ssh session closed")
	return err
}

// Connected reports whether a client is currently held.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Dials returns how many handshakes this connector has completed.
func (c *Connector) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

// String returns a description of the connection.
func (c *Connector) String() string {
	return fmt.Sprintf("ssh://%s@%s", c.cfg.User, c.addr())
}

func (c *Connector) addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Connector) authKind() string {
	if c.cfg.KeyPath != "" {
		return "publickey"
	}
	return "password"
}

// authMethods returns exactly one credential strategy. Agent and default
// key discovery are never consulted.
func (c *Connector) authMethods() ([]xssh.AuthMethod, error) {
	if c.cfg.KeyPath != "" {
		signer, err := LoadPrivateKey(c.cfg.KeyPath, c.cfg.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		return []xssh.AuthMethod{xssh.PublicKeys(signer)}, nil
	}

	password := c.cfg.Password
	answer := func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
	return []xssh.AuthMethod{
		xssh.Password(password),
		xssh.KeyboardInteractive(answer),
	}, nil
}

func (c *Connector) hostKeyCallback() (xssh.HostKeyCallback, error) {
	if c.cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(c.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", c.cfg.KnownHostsPath, err)
		}
		return cb, nil
	}

	c.logger.Warn().Str("host", c.cfg.Host).Msg("no known_hosts file configured; host key is not verified")
	return xssh.InsecureIgnoreHostKey(), nil
}

func (c *Connector) connErr(err error) error {
	return &connector.ConnectionError{
		Host: c.cfg.Host,
		Port: c.cfg.Port,
		User: c.cfg.User,
		Err:  err,
	}
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
