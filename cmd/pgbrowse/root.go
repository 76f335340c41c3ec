package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/pgbrowse/internal/app"
	"github.com/joacominatel/pgbrowse/internal/config"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/database/postgres"
	"github.com/joacominatel/pgbrowse/internal/logging"
	"github.com/joacominatel/pgbrowse/internal/router"
	"github.com/joacominatel/pgbrowse/internal/tui"
	"github.com/spf13/cobra"
)

const logFile = "pgbrowse.log"

// globalFlags are shared by every command.
type globalFlags struct {
	base     string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "pgbrowse",
		Short: "Browse PostgreSQL databases from the terminal",
		Long: `pgbrowse lists databases, lists tables, shows table contents and runs
ad-hoc SQL. Without a subcommand it starts the terminal UI.

The connection is a key/value descriptor such as
"host=localhost user=postgres". The target database is chosen per request.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.base, "base", "", "base connection descriptor (default: saved profile or local OS user)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	root.AddCommand(newQueryCmd(flags))
	root.AddCommand(newSuggestCmd(flags))

	return root
}

// session is a running router with the service in front of it.
type session struct {
	router  *router.Router
	service *app.Service
	errc    chan error
}

func startSession(ctx context.Context, base database.Descriptor, logger *slog.Logger) *session {
	manager := database.NewManager(postgres.NewDialer(logger), logger)
	r := router.New(manager, router.WithLogger(logger))

	s := &session{
		router:  r,
		service: app.NewService(r.Client(), base, logger),
		errc:    make(chan error, 1),
	}
	go func() { s.errc <- r.Run(ctx) }()
	return s
}

// close stops the router and reports why it stopped.
func (s *session) close() error {
	s.router.Client().Close()
	err := <-s.errc
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resolve loads config and picks the logger level and base descriptor.
func resolve(flags *globalFlags) (*config.Config, slog.Level, database.Descriptor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, 0, "", &app.ErrConfig{Cause: err}
	}

	levelName := flags.logLevel
	if levelName == "" {
		levelName = cfg.Preferences.LogLevel
	}
	level := logging.ParseLevel(levelName)

	if flags.base != "" {
		return cfg, level, database.Descriptor(flags.base), nil
	}
	base, err := app.DefaultBase(cfg, config.Keyring{})
	if err != nil {
		return nil, 0, "", err
	}
	return cfg, level, base, nil
}

func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	cfg, level, base, err := resolve(flags)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	dir, err := config.Dir()
	if err != nil {
		return &app.ErrConfig{Cause: err}
	}
	logger, closer, err := logging.OpenFile(filepath.Join(dir, logFile), level)
	if err != nil {
		return err
	}
	defer closer.Close()

	sess := startSession(cmd.Context(), base, logger)
	logger.Info("starting ui", slog.String("base", logging.Mask(base.String())))

	var initial database.Descriptor
	if flags.base != "" {
		initial = base
	}
	model := tui.NewModel(sess.service, sess.router, cfg, initial, logger)
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)

	_, runErr := p.Run()
	if err := sess.close(); err != nil {
		logger.Warn("router stopped with error", slog.Any("error", err))
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", runErr)
	}
	return nil
}
