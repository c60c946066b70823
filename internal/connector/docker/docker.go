// Package docker provides a connector for running the remote tool inside a
// Docker container through the Engine API.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/eugenetaranov/wpbolt/internal/connector"
)

// API is the subset of the Docker Engine client the connector needs.
type API interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	Close() error
}

// Connector executes commands inside a running container.
type Connector struct {
	container string
	user      string
	workdir   string
	env       map[string]string

	newAPI func() (API, error)

	mu  sync.Mutex
	api API
}

// Option configures the Docker connector.
type Option func(*Connector)

// WithUser sets the user for command execution.
func WithUser(user string) Option {
	return func(c *Connector) {
		c.user = user
	}
}

// WithWorkdir sets the working directory for command execution.
func WithWorkdir(dir string) Option {
	return func(c *Connector) {
		c.workdir = dir
	}
}

// WithEnv adds an environment variable for command execution.
func WithEnv(key, value string) Option {
	return func(c *Connector) {
		c.env[key] = value
	}
}

// WithAPI uses the given Engine client instead of one built from the environment.
func WithAPI(api API) Option {
	return func(c *Connector) {
		c.newAPI = func() (API, error) { return api, nil }
	}
}

// New creates a new Docker connector for the specified container.
func New(containerName string, opts ...Option) *Connector {
	c := &Connector{
		container: containerName,
		env:       make(map[string]string),
		newAPI: func() (API, error) {
			return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect opens the Engine client and verifies the container is running.
// It is a no-op once connected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return nil
	}

	api, err := c.newAPI()
	if err != nil {
		return fmt.Errorf("docker client: %w", err)
	}

	info, err := api.ContainerInspect(ctx, c.container)
	if err != nil {
		_ = api.Close()
		return fmt.Errorf("container '%s' not found or not accessible: %w", c.container, err)
	}
	if info.State == nil || !info.State.Running {
		_ = api.Close()
		return fmt.Errorf("container '%s' is not running", c.container)
	}

	c.api = api
	return nil
}

// Execute runs a command line inside the container via /bin/sh -c.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	c.mu.Lock()
	api := c.api
	c.mu.Unlock()

	if api == nil {
		return nil, connector.ErrNotConnected
	}

	created, err := api.ContainerExecCreate(ctx, c.container, c.execOptions(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in container: %w", err)
	}

	attach, err := api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copied <- err
	}()

	select {
	case err = <-copied:
		if err != nil {
			return nil, fmt.Errorf("failed to read exec output: %w", err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("command interrupted: %w", ctx.Err())
	}

	inspect, err := api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &connector.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

func (c *Connector) execOptions(cmd string) container.ExecOptions {
	opts := container.ExecOptions{
		User:         c.user,
		WorkingDir:   c.workdir,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"/bin/sh", "-c", cmd},
	}

	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts.Env = append(opts.Env, fmt.Sprintf("%s=%s", k, c.env[k]))
	}

	return opts
}

// Close releases the Engine client. Calling Close twice is safe.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api == nil {
		return nil
	}
	err := c.api.Close()
	c.api = nil
	return err
}

// String returns a description of the connection.
func (c *Connector) String() string {
	if c.user != "" {
		return fmt.Sprintf("docker://%s@%s", c.user, c.container)
	}
	return fmt.Sprintf("docker://%s", c.container)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
