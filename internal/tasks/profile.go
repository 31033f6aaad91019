package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/services"
)

// ProfileService produces a user's tracked playlist listing.
//
// The listing self-heals: a record whose copy no longer exists in the user's
// library (deleted out-of-band on the platform) is purged, schedule included,
// instead of being shown as a phantom.
type ProfileService struct {
	api       services.PlaylistAPI
	playlists TrackedPlaylistStore
	autosync  AutoSyncDisabler
	logger    *log.Logger
}

// NewProfileService creates a profile service. autosync may be nil when no
// scheduler runs.
func NewProfileService(
	api services.PlaylistAPI,
	playlists TrackedPlaylistStore,
	autosync AutoSyncDisabler,
	logger *log.Logger,
) *ProfileService {
	return &ProfileService{
		api:       api,
		playlists: playlists,
		autosync:  autosync,
		logger:    logger,
	}
}

// ListTracked returns the user's surviving tracking records, purging any
// whose copy has vanished from the user's library.
//
// When the library listing itself cannot be fetched the error is returned
// and nothing is purged: an upstream failure must not read as "everything
// was deleted".
func (p *ProfileService) ListTracked(ctx context.Context, token, userID string) ([]*models.TrackedPlaylist, error) {
	records, err := p.playlists.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	refs, err := p.api.GetUserPlaylists(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}

	live := make(map[string]bool, len(refs))
	for _, ref := range refs {
		live[ref.ID] = true
	}

	var surviving []*models.TrackedPlaylist
	for _, tp := range records {
		if live[tp.TrackedPlaylistID] {
			surviving = append(surviving, tp)
			continue
		}

		p.logger.Warn("tracked copy vanished, purging record", "playlist", tp.Name, "copy", tp.TrackedPlaylistID)

		if tp.AutoSyncEnabled && p.autosync != nil {
			if err := p.autosync.DisableAutoSync(tp.ID); err != nil {
				p.logger.Error("failed to stop sync job for vanished copy", "playlist", tp.Name, "error", err)
			}
		}
		if err := p.playlists.Delete(tp.ID); err != nil {
			return nil, fmt.Errorf("failed to purge record %d: %w", tp.ID, err)
		}
	}

	return surviving, nil
}
