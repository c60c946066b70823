// Package main is the entrypoint for the wpbolt CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	// Import operations to register them
	_ "github.com/eugenetaranov/wpbolt/internal/operation/enroll"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/groupadd"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/unenroll"

	"github.com/eugenetaranov/wpbolt/internal/config"
	"github.com/eugenetaranov/wpbolt/internal/connector"
	"github.com/eugenetaranov/wpbolt/internal/connector/docker"
	"github.com/eugenetaranov/wpbolt/internal/connector/local"
	"github.com/eugenetaranov/wpbolt/internal/connector/ssh"
	"github.com/eugenetaranov/wpbolt/internal/lms"
	"github.com/eugenetaranov/wpbolt/internal/logging"
	"github.com/eugenetaranov/wpbolt/internal/output"
	"github.com/eugenetaranov/wpbolt/internal/site"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configFile string
	debug      bool
	noColor    bool
	transport  string
	host       string
	user       string
	sitePath   string
)

// errFailed signals a run that already reported its failures.
var errFailed = errors.New("one or more targets failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			newOutput().Error("%v", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wpbolt",
	Short: "wpbolt - remote administration for WordPress and LearnDash sites",
	Long: `wpbolt manages a WordPress site running LearnDash through wp-cli.

Commands travel over SSH, docker exec or a local shell. Every argument is
validated and quoted before it leaves this machine, and bulk operations stop
after 5 consecutive failures.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default: ./wpbolt.yaml, ~/.config/wpbolt/wpbolt.yaml)")
	flags.BoolVarP(&debug, "debug", "d", false, "Enable debug output and logging")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&transport, "transport", "", "Override transport (ssh, docker, local)")
	flags.StringVar(&host, "host", "", "Override ssh.host")
	flags.StringVar(&user, "user", "", "Override ssh.user")
	flags.StringVar(&sitePath, "path", "", "Override wp.path, the WordPress root on the target")

	rootCmd.AddCommand(infoCmd, pluginsCmd, themesCmd, postsCmd, updatesCmd)
	rootCmd.AddCommand(courseCmd, lessonCmd, quizCmd, groupCmd)
	rootCmd.AddCommand(enrollCmd, unenrollCmd, studentsCmd)
	rootCmd.AddCommand(bulkCmd, runCmd, operationsCmd)
}

func newOutput() *output.Output {
	out := output.New(os.Stdout)
	out.SetColor(!noColor)
	out.SetDebug(debug)
	return out
}

// session bundles everything a command needs to talk to the site.
type session struct {
	cfg    *config.Config
	exec   *wpcli.Executor
	lms    *lms.Manager
	site   *site.Inspector
	out    *output.Output
	logger zerolog.Logger
}

func openSession() (*session, error) {
	loader := config.NewLoader()
	if configFile != "" {
		loader.SetConfigFile(configFile)
	}
	overrides := map[string]string{
		"transport": transport,
		"ssh.host":  host,
		"ssh.user":  user,
		"wp.path":   sitePath,
	}
	for key, val := range overrides {
		if val != "" {
			loader.Set(key, val)
		}
	}
	if debug {
		loader.Set("logging.level", "debug")
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  os.Stderr,
		NoColor: noColor,
	})
	logger := logging.Component("cli")
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("loaded config")
	}
	logger.Debug().Interface("settings", logging.RedactMap(loader.AllSettings())).Msg("effective config")

	conn, err := newConnector(cfg)
	if err != nil {
		return nil, err
	}

	exec := wpcli.New(conn,
		wpcli.WithRemotePath(cfg.WP.Path),
		wpcli.WithBinary(cfg.WP.Binary),
		wpcli.WithTimeout(cfg.WP.Timeout),
	)

	return &session{
		cfg:    cfg,
		exec:   exec,
		lms:    lms.New(exec, lms.WithLogger(logging.Component("lms"))),
		site:   site.New(exec),
		out:    newOutput(),
		logger: logger,
	}, nil
}

func (s *session) Close() {
	if err := s.exec.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("closing connection")
	}
}

func newConnector(cfg *config.Config) (connector.Connector, error) {
	switch cfg.Transport {
	case config.TransportSSH:
		return ssh.New(ssh.Config{
			Host:           cfg.SSH.Host,
			Port:           cfg.SSH.Port,
			User:           cfg.SSH.User,
			KeyPath:        cfg.SSH.KeyPath,
			KeyPassphrase:  cfg.SSH.KeyPassphrase,
			Password:       cfg.SSH.Password,
			KnownHostsPath: cfg.SSH.KnownHosts,
			Timeout:        cfg.SSH.Timeout,
		}, ssh.WithLogger(logging.Component("ssh")))

	case config.TransportDocker:
		var opts []docker.Option
		if cfg.Docker.User != "" {
			opts = append(opts, docker.WithUser(cfg.Docker.User))
		}
		return docker.New(cfg.Docker.Container, opts...), nil

	case config.TransportLocal:
		var opts []local.Option
		if cfg.Local.RunAs != "" {
			opts = append(opts, local.WithRunAs(cfg.Local.RunAs))
		}
		return local.New(opts...), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// withSession opens a session and a signal-aware context for fn.
func withSession(fn func(ctx context.Context, s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	ctx = logging.WithContext(ctx, s.logger)
	return fn(ctx, s)
}
