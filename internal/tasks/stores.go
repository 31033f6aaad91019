package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/services"
)

// TrackedPlaylistStore persists tracking records.
// Implemented by [repositories.TrackedPlaylistRepository].
type TrackedPlaylistStore interface {
	Create(tp *models.TrackedPlaylist) error
	Get(id int64) (*models.TrackedPlaylist, error)
	GetByUserAndSource(userID, sourcePlaylistID string) (*models.TrackedPlaylist, error)
	ListByUser(userID string) ([]*models.TrackedPlaylist, error)
	ListAutoSyncEnabled() ([]*models.TrackedPlaylist, error)
	UpdateLastSynced(id int64, syncedAt time.Time) error
	SetAutoSync(id int64, enabled bool, jobID string) error
	Delete(id int64) error
}

// DislikeStore persists the per-playlist exclusion set.
// Implemented by [repositories.DislikedSongRepository].
type DislikeStore interface {
	Insert(trackedPlaylistID int64, songURI string) error
	ListURIs(trackedPlaylistID int64) ([]string, error)
}

// SyncHistoryStore persists which URIs the engine has ever placed on a
// tracked copy. Implemented by [repositories.SyncedSongRepository].
type SyncHistoryStore interface {
	InsertMany(trackedPlaylistID int64, songURIs []string) error
	ListURIs(trackedPlaylistID int64) ([]string, error)
}

// UserStore persists users and their refresh tokens.
// Implemented by [repositories.UserRepository].
type UserStore interface {
	Get(id string) (*models.User, error)
	SetRefreshToken(id, refreshToken string) error
}

// TokenRefresher exchanges a stored refresh token for a fresh access token.
// Implemented by [services.Authenticator].
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}
