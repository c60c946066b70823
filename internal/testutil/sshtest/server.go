// Package sshtest runs an in-process SSH server for connector tests.
//
// The server accepts exec requests only and hands each command line to a
// Handler, so tests can script remote tool behaviour and assert on what was
// sent.
package sshtest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Reply is what the fake remote side returns for one command.
type Reply struct {
	Stdout string
	Stderr string
	Exit   int

	// NoExitStatus closes the channel without sending an exit status.
	NoExitStatus bool
}

// Handler produces the reply for an executed command line.
type Handler func(cmd string) Reply

// Server is a minimal SSH server bound to 127.0.0.1.
type Server struct {
	Host string
	Port int

	user       string
	password   string
	authorized ssh.PublicKey
	hostKey    ssh.Signer

	handlerMu sync.RWMutex
	handler   Handler

	handshakes atomic.Int32

	mu       sync.Mutex
	commands []string
	conns    []net.Conn

	ln net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithPassword accepts password authentication for user.
func WithPassword(user, password string) Option {
	return func(s *Server) {
		s.user = user
		s.password = password
	}
}

// WithAuthorizedKey accepts public key authentication for user with key.
func WithAuthorizedKey(user string, key ssh.PublicKey) Option {
	return func(s *Server) {
		s.user = user
		s.authorized = key
	}
}

// WithHandler sets the command handler. The default echoes nothing and exits 0.
func WithHandler(h Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// Start launches a server and stops it when the test ends.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	s := &Server{
		hostKey: hostKey,
		handler: func(string) Reply { return Reply{} },
	}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.ln = ln

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	s.Host = host
	s.Port, _ = strconv.Atoi(port)

	go s.acceptLoop()
	t.Cleanup(s.Close)

	return s
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey.PublicKey()
}

// Handshakes returns the number of successfully authenticated connections.
func (s *Server) Handshakes() int {
	return int(s.handshakes.Load())
}

// Commands returns every command line received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// SetHandler replaces the command handler.
func (s *Server) SetHandler(h Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handler = h
}

// DropConnections closes every accepted connection, simulating a network drop.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// Close stops the listener and drops all connections.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.DropConnections()
}

// WriteKnownHosts writes a known_hosts file trusting this server.
func (s *Server) WriteKnownHosts(t testing.TB, dir string) string {
	t.Helper()
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	line := knownhosts.Line([]string{addr}, s.HostKey())
	path := filepath.Join(dir, "known_hosts")
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}
	return path
}

func (s *Server) config() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{}
	if s.password != "" {
		cfg.PasswordCallback = func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == s.user && string(pass) == s.password {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		}
	}
	if s.authorized != nil {
		cfg.PublicKeyCallback = func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if c.User() == s.user && bytes.Equal(key.Marshal(), s.authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("key rejected")
		}
	}
	cfg.AddHostKey(s.hostKey)
	return cfg
}

func (s *Server) acceptLoop() {
	cfg := s.config()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn, cfg)
	}
}

func (s *Server) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	s.handshakes.Add(1)
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only session channels")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.session(ch, chReqs)
	}
}

func (s *Server) session(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		s.handlerMu.RLock()
		h := s.handler
		s.handlerMu.RUnlock()

		reply := h(payload.Command)
		_, _ = io.WriteString(ch, reply.Stdout)
		_, _ = io.WriteString(ch.Stderr(), reply.Stderr)
		if !reply.NoExitStatus {
			status := struct{ Status uint32 }{uint32(reply.Exit)}
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
		}
		return
	}
}

// WriteClientKey generates an ed25519 client key, writes it in OpenSSH
// format to dir and returns the path and the public half. A non-empty
// passphrase encrypts the file.
func WriteClientKey(t testing.TB, dir, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "wpbolt-test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "wpbolt-test", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshal client key: %v", err)
	}

	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write client key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("client public key: %v", err)
	}
	return path, sshPub
}
