package ssh

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/wpbolt/internal/connector"
	"github.com/eugenetaranov/wpbolt/internal/logging"
	"github.com/eugenetaranov/wpbolt/internal/testutil/sshtest"
)

func passwordConnector(t *testing.T, srv *sshtest.Server, password string) *Connector {
	t.Helper()
	c, err := New(Config{
		Host:     srv.Host,
		Port:     srv.Port,
		User:     "deploy",
		Password: password,
		Timeout:  5 * time.Second,
	}, WithLogger(logging.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewValidatesBeforeDialing(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing host", Config{User: "u", Password: "p"}, connector.ErrMissingHost},
		{"missing user", Config{Host: "h", Password: "p"}, connector.ErrMissingUser},
		{"no credential", Config{Host: "h", User: "u"}, connector.ErrNoCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialed := false
			_, err := New(tt.cfg, WithDialer(func(context.Context, string, string) (net.Conn, error) {
				dialed = true
				return nil, errors.New("unexpected dial")
			}))
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, dialed)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{Host: "wp.example.com", User: "deploy", Password: "x"}, WithLogger(logging.Nop()))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, c.cfg.Port)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Equal(t, "ssh://deploy@wp.example.com:22", c.String())
	assert.False(t, c.Connected())
}

func TestConnectPassword(t *testing.T) {
	srv := sshtest.Start(t, sshtest.WithPassword("deploy", "s3cret"))
	c := passwordConnector(t, srv, "s3cret")

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
	assert.Equal(t, 1, srv.Handshakes())
}

func TestConnectIsIdempotent(t *testing.T) {
	srv := sshtest.Start(t, sshtest.WithPassword("deploy", "s3cret"))
	c := passwordConnector(t, srv, "s3cret")

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx))

	assert.Equal(t, 1, srv.Handshakes())
	assert.Equal(t, 1, c.Dials())
}

func TestConnectBadPassword(t *testing.T) {
	srv := sshtest.Start(t, sshtest.WithPassword("deploy", "s3cret"))
	c := passwordConnector(t, srv, "wrong")

	err := c.Connect(context.Background())
	require.Error(t, err)

	var connErr *connector.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, srv.Host, connErr.Host)
	assert.Equal(t, srv.Port, connErr.Port)
	assert.Equal(t, "deploy", connErr.User)
	assert.False(t, c.Connected())
	assert.Equal(t, 0, srv.Handshakes())
}

func TestConnectUnreachable(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1", Port: 1, User: "deploy", Password: "x", Timeout: time.Second},
		WithLogger(logging.Nop()))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	var connErr *connector.ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestConnectPublicKey(t *testing.T) {
	dir := t.TempDir()
	keyPath, pub := sshtest.WriteClientKey(t, dir, "")
	srv := sshtest.Start(t, sshtest.WithAuthorizedKey("deploy", pub))

	c, err := New(Config{
		Host:    srv.Host,
		Port:    srv.Port,
		User:    "deploy",
		KeyPath: keyPath,
	}, WithLogger(logging.Nop()))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 1, srv.Handshakes())
}

func TestConnectKeyWinsOverPassword(t *testing.T) {
	dir := t.TempDir()
	keyPath, pub := sshtest.WriteClientKey(t, dir, "")
	// Server only knows the key; a password attempt would be rejected.
	srv := sshtest.Start(t, sshtest.WithAuthorizedKey("deploy", pub))

	c, err := New(Config{
		Host:     srv.Host,
		Port:     srv.Port,
		User:     "deploy",
		KeyPath:  keyPath,
		Password: "ignored",
	}, WithLogger(logging.Nop()))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
}

func TestConnectEncryptedKey(t *testing.T) {
	dir := t.TempDir()
	keyPath, pub := sshtest.WriteClientKey(t, dir, "hunter2")
	srv := sshtest.Start(t, sshtest.WithAuthorizedKey("deploy", pub))

	t.Run("without passphrase", func(t *testing.T) {
		c, err := New(Config{Host: srv.Host, Port: srv.Port, User: "deploy", KeyPath: keyPath},
			WithLogger(logging.Nop()))
		require.NoError(t, err)

		err = c.Connect(context.Background())
		assert.ErrorIs(t, err, ErrPassphraseRequired)
		assert.Equal(t, 0, srv.Handshakes())
	})

	t.Run("with passphrase", func(t *testing.T) {
		c, err := New(Config{Host: srv.Host, Port: srv.Port, User: "deploy", KeyPath: keyPath, KeyPassphrase: "hunter2"},
			WithLogger(logging.Nop()))
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.Connect(context.Background()))
	})
}

func TestLoadPrivateKeyErrors(t *testing.T) {
	_, err := LoadPrivateKey(filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorContains(t, err, "read private key")

	garbage := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0o600))
	_, err = LoadPrivateKey(garbage, "")
	assert.ErrorContains(t, err, "parse private key")
}

func TestConnectKnownHosts(t *testing.T) {
	srv := sshtest.Start(t, sshtest.WithPassword("deploy", "s3cret"))

	t.Run("trusted", func(t *testing.T) {
		path := srv.WriteKnownHosts(t, t.TempDir())
		c, err := New(Config{Host: srv.Host, Port: srv.Port, User: "deploy", Password: "s3cret", KnownHostsPath: path},
			WithLogger(logging.Nop()))
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.Connect(context.Background()))
	})

	t.Run("mismatch", func(t *testing.T) {
		other := sshtest.Start(t)
		path := other.WriteKnownHosts(t, t.TempDir())
		// Point the entry at srv's address but with other's key.
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		fixed := []byte(replaceAddr(string(data), other, srv))
		require.NoError(t, os.WriteFile(path, fixed, 0o600))

		c, err := New(Config{Host: srv.Host, Port: srv.Port, User: "deploy", Password: "s3cret", KnownHostsPath: path},
			WithLogger(logging.Nop()))
		require.NoError(t, err)

		err = c.Connect(context.Background())
		var connErr *connector.ConnectionError
		assert.True(t, errors.As(err, &connErr))
		assert.False(t, c.Connected())
	})

	t.Run("missing file", func(t *testing.T) {
		c, err := New(Config{Host: srv.Host, Port: srv.Port, User: "deploy", Password: "s3cret",
			KnownHostsPath: filepath.Join(t.TempDir(), "nope")}, WithLogger(logging.Nop()))
		require.NoError(t, err)

		assert.ErrorContains(t, c.Connect(context.Background()), "load known hosts")
	})
}

func TestExecute(t *testing.T) {
	srv := sshtest.Start(t,
		sshtest.WithPassword("deploy", "s3cret"),
		sshtest.WithHandler(func(cmd string) sshtest.Reply {
			switch cmd {
			case "ok":
				return sshtest.Reply{Stdout: "hello\n"}
			case "fail":
				return sshtest.Reply{Stdout: "partial", Stderr: "Error: nope", Exit: 1}
			default:
				return sshtest.Reply{NoExitStatus: true}
			}
		}),
	)
	c := passwordConnector(t, srv, "s3cret")
	ctx := context.Background()

	_, err := c.Execute(ctx, "ok")
	assert.ErrorIs(t, err, connector.ErrNotConnected)

	require.NoError(t, c.Connect(ctx))

	res, err := c.Execute(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)

	res, err = c.Execute(ctx, "fail")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "partial", res.Stdout)
	assert.Equal(t, "Error: nope", res.Stderr)

	_, err = c.Execute(ctx, "vanish")
	assert.ErrorContains(t, err, "without exit status")

	assert.Equal(t, []string{"ok", "fail", "vanish"}, srv.Commands())
	assert.Equal(t, 1, srv.Handshakes())
}

func TestExecuteCancelled(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	srv := sshtest.Start(t,
		sshtest.WithPassword("deploy", "s3cret"),
		sshtest.WithHandler(func(string) sshtest.Reply {
			<-block
			return sshtest.Reply{}
		}),
	)
	c := passwordConnector(t, srv, "s3cret")
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Execute(ctx, "sleep 60")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := sshtest.Start(t, sshtest.WithPassword("deploy", "s3cret"))
	c := passwordConnector(t, srv, "s3cret")

	assert.NoError(t, c.Close())

	require.NoError(t, c.Connect(context.Background()))
	_ = c.Close()
	assert.False(t, c.Connected())
	assert.NoError(t, c.Close())

	_, err := c.Execute(context.Background(), "ok")
	assert.ErrorIs(t, err, connector.ErrNotConnected)
}

func TestReconnectAfterClose(t *testing.T) {
	srv := sshtest.Start(t, sshtest.WithPassword("deploy", "s3cret"))
	c := passwordConnector(t, srv, "s3cret")
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Close())
	require.NoError(t, c.Connect(ctx))

	assert.Equal(t, 2, srv.Handshakes())
	assert.Equal(t, 2, c.Dials())
}

func replaceAddr(line string, from, to *sshtest.Server) string {
	fromAddr := "[" + from.Host + "]:" + strconv.Itoa(from.Port)
	toAddr := "[" + to.Host + "]:" + strconv.Itoa(to.Port)
	return strings.Replace(line, fromAddr, toAddr, 1)
}
