package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackify/internal/formatter"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/shared"
	"github.com/urfave/cli/v3"
)

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Run one sync pass for a tracked playlist now",
		ArgsUsage: "<playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags:  []cli.Flag{userFlag()},
		Action: r.Sync,
	}
}

func autoSyncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "autosync",
		Usage:     "Enable or disable the recurring sync schedule for a tracked playlist",
		ArgsUsage: "<playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "off", Usage: "Disable instead of enable"},
		},
		Action: r.AutoSync,
	}
}

// Sync runs one reconciliation pass and prints the report.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	tp, _, err := r.ownedRecord(s, cmd)
	if err != nil {
		return err
	}

	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	report, err := s.scheduler.TriggerManualSync(syncCtx, tp.ID)
	if err != nil {
		return err
	}

	return r.writeBytes(formatter.FormatSyncReport(tp.Name, report))
}

// AutoSync flips the persisted schedule flag. The recurring jobs themselves
// run inside `trackify serve`, which rebuilds them from the store at start.
func (r *Runner) AutoSync(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	tp, _, err := r.ownedRecord(s, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("off") {
		if err := s.scheduler.DisableAutoSync(tp.ID); err != nil {
			return err
		}
		return r.writePlain("Auto-sync disabled for %q\n", tp.Name)
	}

	if _, err := s.scheduler.EnableAutoSync(tp.ID); err != nil {
		return err
	}
	return r.writePlain("Auto-sync enabled for %q, runs every %s while `trackify serve` is up\n",
		tp.Name, r.config.Sync.Interval())
}

// ownedRecord loads the record named on the command line and verifies the
// acting user owns it.
func (r *Runner) ownedRecord(s *stack, cmd *cli.Command) (*models.TrackedPlaylist, string, error) {
	id, err := recordID(cmd)
	if err != nil {
		return nil, "", err
	}

	userID, err := r.resolveUser(s, cmd)
	if err != nil {
		return nil, "", err
	}

	tp, err := s.playlists.Get(id)
	if err != nil {
		return nil, "", err
	}
	if tp.UserID != userID {
		return nil, "", fmt.Errorf("%w: playlist %d belongs to another user", shared.ErrPermissionDenied, id)
	}

	return tp, userID, nil
}

// accessToken resolves the user's stored refresh token into a fresh access
// token, persisting any rotation.
func (r *Runner) accessToken(ctx context.Context, s *stack, userID string) (string, error) {
	user, err := s.users.Get(userID)
	if err != nil {
		return "", err
	}

	pair, err := s.auth.Refresh(ctx, user.RefreshToken)
	if err != nil {
		return "", err
	}

	if pair.RefreshToken != "" && pair.RefreshToken != user.RefreshToken {
		if err := s.users.SetRefreshToken(userID, pair.RefreshToken); err != nil {
			r.logger.Warn("failed to persist rotated refresh token", "user", userID, "error", err)
		}
	}

	return pair.AccessToken, nil
}
