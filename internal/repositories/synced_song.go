package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncedSongRepository persists the per-playlist sync history: every URI the
// engine has ever placed on the tracked copy.
type SyncedSongRepository struct {
	db *sql.DB
}

// NewSyncedSongRepository creates a new SyncedSongRepository with the given database connection
func NewSyncedSongRepository(db *sql.DB) *SyncedSongRepository {
	return &SyncedSongRepository{db: db}
}

// InsertMany records URIs as synced for a tracked playlist.
//
// Idempotent: URIs already in the history are skipped. Runs in one
// transaction so a batch lands whole or not at all.
func (r *SyncedSongRepository) InsertMany(trackedPlaylistID int64, songURIs []string) error {
	if len(songURIs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO synced_songs (tracked_playlist_id, song_uri, created_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, uri := range songURIs {
		if uri == "" {
			return fmt.Errorf("song URI is required")
		}
		if _, err := stmt.Exec(trackedPlaylistID, uri, now); err != nil {
			return fmt.Errorf("failed to insert synced song: %w", err)
		}
	}

	return tx.Commit()
}

// ListURIs returns every URI in a tracked playlist's sync history.
func (r *SyncedSongRepository) ListURIs(trackedPlaylistID int64) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT song_uri FROM synced_songs WHERE tracked_playlist_id = ? ORDER BY id ASC",
		trackedPlaylistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced songs: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan synced song: %w", err)
		}
		uris = append(uris, uri)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return uris, nil
}
