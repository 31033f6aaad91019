package models

import (
	"fmt"
	"time"
)

// User represents an authenticated Spotify user.
//
// The ID is the platform user ID. RefreshToken is empty until the user
// completes the OAuth flow for the first time.
type User struct {
	ID           string
	DisplayName  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks that the user carries a platform identity.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}
	return nil
}

// TrackedPlaylist represents one source -> tracked-copy pairing.
//
// SourcePlaylistID is the playlist being mirrored; TrackedPlaylistID is the
// user-owned copy this service created and maintains. JobID holds the
// scheduler handle while auto-sync is enabled.
type TrackedPlaylist struct {
	ID                int64
	UserID            string
	SourcePlaylistID  string
	TrackedPlaylistID string
	Name              string
	LastSynced        *time.Time
	AutoSyncEnabled   bool
	JobID             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks required fields before persistence.
func (tp *TrackedPlaylist) Validate() error {
	switch {
	case tp.UserID == "":
		return fmt.Errorf("owning user ID is required")
	case tp.SourcePlaylistID == "":
		return fmt.Errorf("source playlist ID is required")
	case tp.TrackedPlaylistID == "":
		return fmt.Errorf("tracked playlist ID is required")
	case tp.Name == "":
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

// DislikedSong marks a track URI that must never be auto-added back to the
// owning tracked playlist. Rows live until the pairing is untracked.
type DislikedSong struct {
	ID                int64
	TrackedPlaylistID int64
	SongURI           string
	CreatedAt         time.Time
}

// SyncedSong records a track URI the engine has seeded into or appended to a
// tracked playlist. The history is what lets reconciliation tell "user removed
// this" apart from "this is new on the source".
type SyncedSong struct {
	ID                int64
	TrackedPlaylistID int64
	SongURI           string
	CreatedAt         time.Time
}

// SyncReport summarizes one reconciliation pass.
type SyncReport struct {
	Added         []string  // URIs appended to the tracked copy
	NewlyExcluded []string  // URIs recorded as dislikes during this pass
	SyncedAt      time.Time // time the pass committed
}
