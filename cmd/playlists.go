package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/trackify/internal/formatter"
	"github.com/desertthunder/trackify/internal/shared"
	"github.com/urfave/cli/v3"
)

func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "track",
		Usage:     "Start tracking a source playlist",
		ArgsUsage: "<source-playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
		},
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Name for the tracked copy (defaults to the source's name plus \"Tracker\")",
			},
		},
		Action: r.Track,
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List tracked playlists",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
			&cli.BoolFlag{Name: "csv", Usage: "Output as CSV"},
		},
		Action: r.List,
	}
}

func dislikeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "dislike",
		Usage:     "Permanently exclude a track from a tracked playlist",
		ArgsUsage: "<playlist-id> <track-uri>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
			&cli.StringArg{Name: "uri"},
		},
		Flags:  []cli.Flag{userFlag()},
		Action: r.Dislike,
	}
}

func untrackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "untrack",
		Usage:     "Stop tracking a playlist and delete the copy",
		ArgsUsage: "<playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags:  []cli.Flag{userFlag()},
		Action: r.Untrack,
	}
}

// Track starts tracking a source playlist for the acting user.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	sourceID := cmd.StringArg("source")
	if sourceID == "" {
		return fmt.Errorf("%w: source playlist ID", shared.ErrMissingArgument)
	}

	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	userID, err := r.resolveUser(s, cmd)
	if err != nil {
		return err
	}

	token, err := r.accessToken(ctx, s, userID)
	if err != nil {
		return err
	}

	tp, err := s.tracker.Track(ctx, token, userID, sourceID, cmd.String("name"))
	if err != nil {
		return err
	}

	return r.writePlain("Tracking %s as %q (record %d, copy %s)\n", sourceID, tp.Name, tp.ID, tp.TrackedPlaylistID)
}

// List shows the acting user's tracked playlists, purging records whose
// copies were deleted on the platform.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	userID, err := r.resolveUser(s, cmd)
	if err != nil {
		return err
	}

	token, err := r.accessToken(ctx, s, userID)
	if err != nil {
		return err
	}

	records, err := s.profile.ListTracked(ctx, token, userID)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		data, err := formatter.ToJSON(records)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	case cmd.Bool("csv"):
		data, err := formatter.ExportToCSV(records)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	default:
		return r.writeBytes(formatter.FormatTrackedPlaylists(records))
	}
}

// Dislike excludes a track from a tracked playlist and removes it from the copy.
func (r *Runner) Dislike(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: track URI", shared.ErrMissingArgument)
	}

	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	tp, userID, err := r.ownedRecord(s, cmd)
	if err != nil {
		return err
	}

	token, err := r.accessToken(ctx, s, userID)
	if err != nil {
		return err
	}

	if err := s.tracker.Dislike(ctx, token, tp, uri); err != nil {
		return err
	}

	return r.writePlain("Excluded %s from %q\n", uri, tp.Name)
}

// Untrack tears a tracking pairing down.
func (r *Runner) Untrack(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	tp, userID, err := r.ownedRecord(s, cmd)
	if err != nil {
		return err
	}

	token, err := r.accessToken(ctx, s, userID)
	if err != nil {
		return err
	}

	if err := s.tracker.Untrack(ctx, token, tp.ID); err != nil {
		return err
	}

	return r.writePlain("Untracked %q and removed the copy from your library\n", tp.Name)
}

// recordID parses the playlist argument as a numeric record ID.
func recordID(cmd *cli.Command) (int64, error) {
	raw := cmd.StringArg("playlist")
	if raw == "" {
		return 0, fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: playlist ID must be numeric, see `trackify list`", shared.ErrInvalidInput)
	}
	return id, nil
}
