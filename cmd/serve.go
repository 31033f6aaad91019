package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/trackify/internal/server"
	"github.com/urfave/cli/v3"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the web service and the recurring sync scheduler",
		Action: r.Serve,
	}
}

// Serve runs the HTTP API and rebuilds persisted sync schedules. Blocks
// until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.scheduler.Restore(); err != nil {
		return err
	}

	api := server.NewAPI(server.APIConfig{
		Auth:      s.auth,
		Spotify:   s.spotify,
		Users:     s.users,
		Playlists: s.playlists,
		Tracker:   s.tracker,
		Scheduler: s.scheduler,
		Profile:   s.profile,
		Logger:    r.logger,
	})

	srv := server.NewServer(r.config.Server, api, r.logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(runCtx)
}
