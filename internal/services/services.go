package services

import "context"

// PlaylistAPI defines the playlist read and mutation operations the sync core
// consumes. Implemented by [SpotifyClient]; mocked in tests.
type PlaylistAPI interface {
	// GetPlaylist retrieves a playlist's metadata.
	GetPlaylist(ctx context.Context, token, playlistID string) (*PlaylistMeta, error)

	// GetPlaylistTracksPage retrieves one page of a playlist's track listing.
	// An empty pageURL requests the first page; PlaylistPage.Next carries the
	// cursor for the following page, empty when exhausted.
	GetPlaylistTracksPage(ctx context.Context, token, playlistID, pageURL string) (*PlaylistPage, error)

	// GetUserPlaylists retrieves every playlist in the authenticated user's
	// library, following pagination internally.
	GetUserPlaylists(ctx context.Context, token string) ([]PlaylistRef, error)

	// CreatePlaylist creates a new playlist owned by ownerID and returns its ID.
	CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (string, error)

	// AddTracks appends up to 100 track URIs to a playlist.
	AddTracks(ctx context.Context, token, playlistID string, uris []string) error

	// RemoveTracks removes all occurrences of the given track URIs from a playlist.
	RemoveTracks(ctx context.Context, token, playlistID string, uris []string) error

	// UnfollowPlaylist removes the playlist from the authenticated user's library.
	UnfollowPlaylist(ctx context.Context, token, playlistID string) error

	// CurrentUser retrieves the profile of the token's user.
	CurrentUser(ctx context.Context, token string) (*UserProfile, error)
}

// PlaylistMeta is a playlist's metadata as returned by the platform.
type PlaylistMeta struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	OwnerName   string
	Public      bool
	TrackTotal  int
}

// TrackItem is one entry of a playlist's track listing.
//
// URI is empty for null-track items (region-unavailable or removed by the
// platform); callers skip those.
type TrackItem struct {
	URI string
}

// PlaylistPage is one page of a playlist's track listing.
type PlaylistPage struct {
	Items []TrackItem
	Next  string // URL of the next page, empty on the last page
}

// PlaylistRef is a playlist reference from a library listing.
type PlaylistRef struct {
	ID         string
	Name       string
	TrackTotal int
}

// UserProfile represents the authenticated user's profile.
type UserProfile struct {
	ID          string
	DisplayName string
}
