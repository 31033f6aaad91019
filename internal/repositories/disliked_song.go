package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/trackify/internal/models"
)

// DislikedSongRepository persists the per-playlist exclusion set.
//
// The (tracked_playlist_id, song_uri) pair is unique in the schema: the table
// is a set, not a log.
type DislikedSongRepository struct {
	db *sql.DB
}

// NewDislikedSongRepository creates a new DislikedSongRepository with the given database connection
func NewDislikedSongRepository(db *sql.DB) *DislikedSongRepository {
	return &DislikedSongRepository{db: db}
}

// Insert records a disliked URI for a tracked playlist.
//
// Idempotent: inserting a URI already present for the playlist is a no-op.
func (r *DislikedSongRepository) Insert(trackedPlaylistID int64, songURI string) error {
	if songURI == "" {
		return fmt.Errorf("song URI is required")
	}

	query := `
		INSERT OR IGNORE INTO disliked_songs (tracked_playlist_id, song_uri, created_at)
		VALUES (?, ?, ?)
	`

	if _, err := r.db.Exec(query, trackedPlaylistID, songURI, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert disliked song: %w", err)
	}

	return nil
}

// ListURIs returns every excluded URI for a tracked playlist.
func (r *DislikedSongRepository) ListURIs(trackedPlaylistID int64) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT song_uri FROM disliked_songs WHERE tracked_playlist_id = ? ORDER BY id ASC",
		trackedPlaylistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query disliked songs: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan disliked song: %w", err)
		}
		uris = append(uris, uri)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return uris, nil
}

// List returns full rows for a tracked playlist, oldest first.
func (r *DislikedSongRepository) List(trackedPlaylistID int64) ([]*models.DislikedSong, error) {
	rows, err := r.db.Query(
		"SELECT id, tracked_playlist_id, song_uri, created_at FROM disliked_songs WHERE tracked_playlist_id = ? ORDER BY id ASC",
		trackedPlaylistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query disliked songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.DislikedSong
	for rows.Next() {
		var song models.DislikedSong
		if err := rows.Scan(&song.ID, &song.TrackedPlaylistID, &song.SongURI, &song.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disliked song: %w", err)
		}
		songs = append(songs, &song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return songs, nil
}
