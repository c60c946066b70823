// Package lms manages LearnDash courses, lessons, quizzes, groups and
// enrollments through the remote tool.
//
// Every exported operation validates its inputs before any command is
// built, so a rejected value never reaches the remote shell.
package lms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/logging"
	"github.com/eugenetaranov/wpbolt/internal/validate"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

// Limits applied to free-form input.
const (
	MaxTitleLen   = 200
	MaxContentLen = 50000
	MaxListLimit  = 500
)

// LearnDash post types.
const (
	PostTypeCourse = "sfwd-courses"
	PostTypeLesson = "sfwd-lessons"
	PostTypeQuiz   = "sfwd-quiz"
	PostTypeGroup  = "groups"
)

var (
	// Statuses accepted for created content.
	Statuses = []string{"publish", "draft", "private"}

	// PriceTypes are the LearnDash course access modes.
	PriceTypes = []string{"open", "free", "paynow", "subscribe", "closed"}
)

// Runner executes a descriptor on the site. *wpcli.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, d *command.Descriptor, format wpcli.Format) (*wpcli.Output, error)
}

// Manager issues LearnDash operations through a Runner.
type Manager struct {
	run    Runner
	logger zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New returns a Manager backed by run.
func New(run Runner, opts ...Option) *Manager {
	m := &Manager{
		run:    run,
		logger: logging.Component("lms"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// createPost creates a post of the given type and returns its ID.
func (m *Manager) createPost(ctx context.Context, label, postType, title, content, status string) (int, error) {
	d := command.New(label, "post", "create").
		Flag("post_type", command.Enum(postType)).
		Flag("post_title", command.String(title)).
		Flag("post_status", command.Enum(status))
	if content != "" {
		d.Flag("post_content", command.String(content))
	}
	d.Switch("porcelain", true)

	out, err := m.run.Run(ctx, d, wpcli.FormatRaw)
	if err != nil {
		return 0, err
	}
	id, err := out.Int()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	return id, nil
}

// unfinished wraps a failure that happened after the post itself was created,
// so callers can find and remove the half-configured post.
func unfinished(kind string, id int, err error) error {
	return fmt.Errorf("%s %d created but settings not saved: %w", kind, id, err)
}

// setMeta stores a plain post meta value.
func (m *Manager) setMeta(ctx context.Context, postID int, key string, value command.Value) error {
	d := command.New("post.meta.update", "post", "meta", "update").
		Arg(command.Int(postID)).
		Arg(command.String(key)).
		Arg(value)
	_, err := m.run.Run(ctx, d, wpcli.FormatNone)
	return err
}

// setSettings stores a LearnDash settings array (e.g. _sfwd-courses) as JSON,
// which the remote tool deserializes into a PHP array.
func (m *Manager) setSettings(ctx context.Context, postID int, key string, settings map[string]any) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	d := command.New("post.meta.update", "post", "meta", "update").
		Arg(command.Int(postID)).
		Arg(command.String(key)).
		Arg(command.String(string(payload))).
		Flag("format", command.Enum("json"))
	_, err = m.run.Run(ctx, d, wpcli.FormatNone)
	return err
}

// getSettings reads a settings array. A missing key yields an empty map.
func (m *Manager) getSettings(ctx context.Context, postID int, key string) (map[string]any, error) {
	d := command.New("post.meta.get", "post", "meta", "get").
		Arg(command.Int(postID)).
		Arg(command.String(key))

	out, err := m.run.Run(ctx, d, wpcli.FormatJSON)
	if err != nil {
		var remoteErr *wpcli.RemoteCommandError
		if errors.As(err, &remoteErr) && strings.TrimSpace(remoteErr.Stderr+remoteErr.Stdout) == "" {
			return map[string]any{}, nil
		}
		return nil, err
	}

	settings, ok := out.Value.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return settings, nil
}

// eval runs a PHP snippet built only from validated integers.
func (m *Manager) eval(ctx context.Context, label, php string) (*wpcli.Output, error) {
	d := command.New(label, "eval").Arg(command.String(php))
	return m.run.Run(ctx, d, wpcli.FormatRaw)
}

// bulkRunner returns a runner labelled for one operation.
func (m *Manager) bulkRunner(name, param string) *bulk.Runner {
	logger := m.logger.With().Str("operation", name).Logger()
	return &bulk.Runner{Name: name, Param: param, Logger: &logger}
}

func statusOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func phpIntArray(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "array(" + strings.Join(parts, ", ") + ")"
}

// requireAny fails when an update carries no fields.
func requireAny(name string, set ...bool) error {
	for _, s := range set {
		if s {
			return nil
		}
	}
	return &validate.Error{Param: name, Constraint: "requires at least one field to change"}
}
