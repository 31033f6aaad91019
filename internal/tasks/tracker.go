package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
)

// AutoSyncDisabler tears down a recurring sync job. Implemented by
// [Scheduler]; split out so the tracker and profile service stay testable
// without a running scheduler.
type AutoSyncDisabler interface {
	DisableAutoSync(id int64) error
}

// Tracker owns the lifecycle of a tracking pairing: creating the user's copy,
// recording dislikes, and tearing the pairing down.
type Tracker struct {
	api       services.PlaylistAPI
	resolver  *TrackSetResolver
	playlists TrackedPlaylistStore
	dislikes  DislikeStore
	history   SyncHistoryStore
	autosync  AutoSyncDisabler
	chunkSize int
	logger    *log.Logger
}

// NewTracker creates a tracker. autosync may be nil when no scheduler runs,
// as in one-shot CLI invocations.
func NewTracker(
	api services.PlaylistAPI,
	playlists TrackedPlaylistStore,
	dislikes DislikeStore,
	history SyncHistoryStore,
	autosync AutoSyncDisabler,
	chunkSize int,
	logger *log.Logger,
) *Tracker {
	if chunkSize <= 0 || chunkSize > 100 {
		chunkSize = 100
	}
	return &Tracker{
		api:       api,
		resolver:  NewTrackSetResolver(api),
		playlists: playlists,
		dislikes:  dislikes,
		history:   history,
		autosync:  autosync,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Track starts tracking a source playlist for a user: it creates a new
// playlist in the user's library, seeds it with the source's current tracks,
// and persists the pairing.
//
// Returns [shared.ErrAlreadyTracking] when the user already tracks the
// source. An empty name derives one from the source playlist's name.
func (t *Tracker) Track(ctx context.Context, token, userID, sourcePlaylistID, name string) (*models.TrackedPlaylist, error) {
	if _, err := t.playlists.GetByUserAndSource(userID, sourcePlaylistID); err == nil {
		return nil, fmt.Errorf("%w: source %s", shared.ErrAlreadyTracking, sourcePlaylistID)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	meta, err := t.api.GetPlaylist(ctx, token, sourcePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("source playlist: %w", err)
	}

	if name == "" {
		name = meta.Name + " Tracker"
	}

	copyID, err := t.api.CreatePlaylist(ctx, token, userID, name,
		"Tracked copy of "+meta.Name, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracked copy: %w", err)
	}

	sourceSet, err := t.resolver.Resolve(ctx, token, sourcePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("source playlist: %w", err)
	}

	uris := make([]string, 0, len(sourceSet))
	for uri := range sourceSet {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	for _, chunk := range shared.ChunkStrings(uris, t.chunkSize) {
		if err := t.api.AddTracks(ctx, token, copyID, chunk); err != nil {
			return nil, fmt.Errorf("failed to seed tracked copy: %w", err)
		}
	}

	tp := &models.TrackedPlaylist{
		UserID:            userID,
		SourcePlaylistID:  sourcePlaylistID,
		TrackedPlaylistID: copyID,
		Name:              name,
	}
	if err := t.playlists.Create(tp); err != nil {
		// Lost a race with a concurrent Track for the same source. The
		// copy this call created is now orphaned; drop it.
		if errors.Is(err, shared.ErrAlreadyTracking) {
			if unfollowErr := t.api.UnfollowPlaylist(ctx, token, copyID); unfollowErr != nil {
				t.logger.Warn("failed to remove orphaned copy", "playlist", copyID, "error", unfollowErr)
			}
		}
		return nil, err
	}

	if err := t.history.InsertMany(tp.ID, uris); err != nil {
		return nil, fmt.Errorf("failed to record sync history: %w", err)
	}

	t.logger.Info("tracking playlist", "source", sourcePlaylistID, "copy", copyID, "seeded", len(uris))
	return tp, nil
}

// Dislike permanently excludes a track from a tracked playlist and removes it
// from the user's copy.
//
// The exclusion is recorded before the platform removal is attempted, so the
// track stays excluded even if the removal fails and has to be retried.
func (t *Tracker) Dislike(ctx context.Context, token string, tp *models.TrackedPlaylist, songURI string) error {
	if songURI == "" {
		return fmt.Errorf("%w: song URI is required", shared.ErrInvalidInput)
	}

	if err := t.dislikes.Insert(tp.ID, songURI); err != nil {
		return fmt.Errorf("failed to record dislike: %w", err)
	}

	if err := t.api.RemoveTracks(ctx, token, tp.TrackedPlaylistID, []string{songURI}); err != nil {
		return fmt.Errorf("failed to remove track: %w", err)
	}

	t.logger.Info("disliked track", "playlist", tp.Name, "uri", songURI)
	return nil
}

// Untrack tears a pairing down: any recurring sync stops, the user's copy is
// removed from their library, and the record is deleted along with its
// exclusion set and history.
//
// A copy already gone from the platform does not block the teardown.
func (t *Tracker) Untrack(ctx context.Context, token string, id int64) error {
	tp, err := t.playlists.Get(id)
	if err != nil {
		return err
	}

	if tp.AutoSyncEnabled && t.autosync != nil {
		if err := t.autosync.DisableAutoSync(id); err != nil {
			t.logger.Warn("failed to stop sync job during untrack", "playlist", tp.Name, "error", err)
		}
	}

	if err := t.api.UnfollowPlaylist(ctx, token, tp.TrackedPlaylistID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("failed to remove tracked copy: %w", err)
	}

	if err := t.playlists.Delete(id); err != nil {
		return err
	}

	t.logger.Info("untracked playlist", "playlist", tp.Name, "source", tp.SourcePlaylistID)
	return nil
}
