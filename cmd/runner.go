package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/repositories"
	"github.com/desertthunder/trackify/internal/server"
	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
	"github.com/desertthunder/trackify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	spotify services.PlaylistAPI
	auth    server.AuthFlow
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer

	// Spotify and Auth override the real collaborators, for tests.
	Spotify services.PlaylistAPI
	Auth    server.AuthFlow
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
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		spotify: opts.Spotify,
		auth:    opts.Auth,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, trackCommand, listCommand, syncCommand,
		autoSyncCommand, dislikeCommand, untrackCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// stack is the full set of collaborators a command may need, built on demand
// so commands that never touch the database don't open one.
type stack struct {
	db        *sql.DB
	users     *repositories.UserRepository
	playlists *repositories.TrackedPlaylistRepository
	dislikes  *repositories.DislikedSongRepository
	history   *repositories.SyncedSongRepository
	auth      server.AuthFlow
	spotify   services.PlaylistAPI
	engine    *tasks.Engine
	scheduler *tasks.Scheduler
	tracker   *tasks.Tracker
	profile   *tasks.ProfileService
}

// close stops the scheduler and releases the database.
func (s *stack) close() {
	s.scheduler.Stop()
	s.db.Close()
}

func (r *Runner) buildStack() (*stack, error) {
	auth := r.auth
	if auth == nil {
		authenticator, err := services.NewAuthenticator(r.config.Credentials.Spotify)
		if err != nil {
			return nil, err
		}
		auth = authenticator
	}

	spotify := r.spotify
	if spotify == nil {
		spotify = services.NewSpotifyClient(http.DefaultClient, r.config.Sync.APITimeout())
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &stack{
		db:        db,
		users:     repositories.NewUserRepository(db),
		playlists: repositories.NewTrackedPlaylistRepository(db),
		dislikes:  repositories.NewDislikedSongRepository(db),
		history:   repositories.NewSyncedSongRepository(db),
		auth:      auth,
		spotify:   spotify,
	}
	s.engine = tasks.NewEngine(spotify, s.playlists, s.dislikes, s.history, r.config.Sync.ChunkSize(), r.logger)
	s.scheduler = tasks.NewScheduler(s.engine, s.playlists, s.users, auth, r.config.Sync.Interval(), r.logger)
	s.tracker = tasks.NewTracker(spotify, s.playlists, s.dislikes, s.history, s.scheduler, r.config.Sync.ChunkSize(), r.logger)
	s.profile = tasks.NewProfileService(spotify, s.playlists, s.scheduler, r.logger)
	return s, nil
}

// resolveUser picks the acting user: the --user flag when given, otherwise
// the only user in the store.
func (r *Runner) resolveUser(s *stack, cmd *cli.Command) (string, error) {
	if userID := cmd.String("user"); userID != "" {
		if _, err := s.users.Get(userID); err != nil {
			return "", err
		}
		return userID, nil
	}

	users, err := s.users.List()
	if err != nil {
		return "", err
	}
	switch len(users) {
	case 0:
		return "", fmt.Errorf("%w: no users yet, run `trackify auth login` first", shared.ErrNotFound)
	case 1:
		return users[0].ID, nil
	default:
		return "", fmt.Errorf("%w: multiple users in store, pass --user", shared.ErrMissingArgument)
	}
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Acting user's Spotify ID (defaults to the only stored user)",
	}
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// syncTimeout bounds one manual CLI sync pass.
const syncTimeout = 5 * time.Minute
