package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackify/internal/services"
)

// TrackSetResolver produces the complete set of track URIs on a playlist,
// following the platform's pagination cursor until exhausted.
type TrackSetResolver struct {
	api services.PlaylistAPI
}

// NewTrackSetResolver creates a resolver backed by the given playlist API.
func NewTrackSetResolver(api services.PlaylistAPI) *TrackSetResolver {
	return &TrackSetResolver{api: api}
}

// Resolve walks every page of a playlist's track listing and returns the set
// of URIs found. Null-track items (region-unavailable or platform-removed)
// are skipped. Any page failing to load fails the whole resolution: a partial
// set would make missing tracks look like user removals downstream.
func (r *TrackSetResolver) Resolve(ctx context.Context, token, playlistID string) (map[string]bool, error) {
	uris := make(map[string]bool)

	pageURL := ""
	for {
		page, err := r.api.GetPlaylistTracksPage(ctx, token, playlistID, pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tracks for %s: %w", playlistID, err)
		}

		for _, item := range page.Items {
			if item.URI == "" {
				continue
			}
			uris[item.URI] = true
		}

		if page.Next == "" {
			return uris, nil
		}
		pageURL = page.Next
	}
}
