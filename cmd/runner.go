package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/player"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, statusCommand, trackCommand, sessionCommand, queueCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config and applies --database and the log level.
//
// A missing file falls back to the embedded defaults so `setup config` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return ctx, err
	}

	if db := cmd.String("database"); db != "" {
		r.config.Database.Path = db
	}

	if err := shared.ApplyLogLevel(r.logger, r.config.Log.Level); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func (r *Runner) loadConfig(path string) error {
	r.configPath = path

	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
		r.config = config
		r.logger.Debug("config loaded", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug("config file not found, using defaults", "path", path)
	default:
		return err
	}
	return nil
}

// SetLogger replaces the logger, e.g. to keep log output off a full-screen UI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// store bundles the repositories opened from the configured database.
type store struct {
	db       *sql.DB
	sessions *repositories.SessionRepository
	queue    *repositories.QueueRepository
	tracks   *repositories.TrackRepository
}

func (s *store) Close() error {
	return s.db.Close()
}

// openStore opens the configured database and brings its schema up to date.
func (r *Runner) openStore() (*store, error) {
	path := r.config.Database.Path
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if path != ":memory:" {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &store{
		db:       db,
		sessions: repositories.NewSessionRepository(db),
		queue:    repositories.NewQueueRepository(db),
		tracks:   repositories.NewTrackRepository(db),
	}, nil
}

// engine builds a playback engine over st, publishing to bus.
func (r *Runner) engine(st *store, bus broadcast.Publisher) *player.Engine {
	return player.NewEngine(player.EngineOpts{
		Sessions:  st.sessions,
		Queue:     st.queue,
		Tracks:    st.tracks,
		Publisher: bus,
		Preroll:   time.Duration(r.config.Playback.PrerollMS) * time.Millisecond,
		Logger:    r.logger,
	})
}

// serverURL is --server when given, else the configured listen address.
func (r *Runner) serverURL(cmd *cli.Command) string {
	if base := cmd.String("server"); base != "" {
		return base
	}
	return (&url.URL{Scheme: "http", Host: r.config.Server.Addr()}).String()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
