package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/shared"
)

// TrackedPlaylistRepository persists [models.TrackedPlaylist] rows.
//
// Deleting a record also deletes its disliked songs and sync history: the
// schema cascades via foreign key, and Delete issues the child deletes
// explicitly as well so the ownership rule holds even on connections without
// foreign key enforcement.
type TrackedPlaylistRepository struct {
	db *sql.DB
}

// NewTrackedPlaylistRepository creates a new TrackedPlaylistRepository with the given database connection
func NewTrackedPlaylistRepository(db *sql.DB) *TrackedPlaylistRepository {
	return &TrackedPlaylistRepository{db: db}
}

// Create inserts a new tracking record.
//
// Returns [shared.ErrAlreadyTracking] when the user already tracks the source
// playlist or the destination playlist is claimed by another record; the
// uniqueness check lives in the schema, closing the check-then-insert race.
func (r *TrackedPlaylistRepository) Create(tp *models.TrackedPlaylist) error {
	if err := tp.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO tracked_playlists
			(user_id, source_playlist_id, tracked_playlist_id, name, last_synced, auto_sync_enabled, job_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		tp.UserID,
		tp.SourcePlaylistID,
		tp.TrackedPlaylistID,
		tp.Name,
		tp.LastSynced,
		tp.AutoSyncEnabled,
		nullString(tp.JobID),
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: source %s", shared.ErrAlreadyTracking, tp.SourcePlaylistID)
		}
		return fmt.Errorf("failed to insert tracked playlist: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted ID: %w", err)
	}

	tp.ID = id
	tp.CreatedAt = now
	tp.UpdatedAt = now
	return nil
}

const trackedPlaylistColumns = `
	id, user_id, source_playlist_id, tracked_playlist_id, name,
	last_synced, auto_sync_enabled, job_id, created_at, updated_at
`

// Get retrieves a tracking record by numeric ID.
func (r *TrackedPlaylistRepository) Get(id int64) (*models.TrackedPlaylist, error) {
	query := "SELECT " + trackedPlaylistColumns + " FROM tracked_playlists WHERE id = ?"
	return scanTrackedPlaylist(r.db.QueryRow(query, id))
}

// GetByTrackedPlaylistID retrieves the record owning a destination playlist.
func (r *TrackedPlaylistRepository) GetByTrackedPlaylistID(playlistID string) (*models.TrackedPlaylist, error) {
	query := "SELECT " + trackedPlaylistColumns + " FROM tracked_playlists WHERE tracked_playlist_id = ?"
	return scanTrackedPlaylist(r.db.QueryRow(query, playlistID))
}

// GetByUserAndSource retrieves a user's tracking record for a source playlist.
func (r *TrackedPlaylistRepository) GetByUserAndSource(userID, sourcePlaylistID string) (*models.TrackedPlaylist, error) {
	query := "SELECT " + trackedPlaylistColumns + " FROM tracked_playlists WHERE user_id = ? AND source_playlist_id = ?"
	return scanTrackedPlaylist(r.db.QueryRow(query, userID, sourcePlaylistID))
}

// ListByUser retrieves all tracking records owned by a user.
func (r *TrackedPlaylistRepository) ListByUser(userID string) ([]*models.TrackedPlaylist, error) {
	query := "SELECT " + trackedPlaylistColumns + " FROM tracked_playlists WHERE user_id = ? ORDER BY id ASC"

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.TrackedPlaylist
	for rows.Next() {
		tp, err := scanTrackedPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, tp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// ListAutoSyncEnabled retrieves every record with auto-sync switched on,
// across all users. Used to rebuild the scheduler at process start.
func (r *TrackedPlaylistRepository) ListAutoSyncEnabled() ([]*models.TrackedPlaylist, error) {
	query := "SELECT " + trackedPlaylistColumns + " FROM tracked_playlists WHERE auto_sync_enabled = 1 ORDER BY id ASC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-sync playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.TrackedPlaylist
	for rows.Next() {
		tp, err := scanTrackedPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, tp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// UpdateLastSynced commits the last-synced timestamp for a record.
func (r *TrackedPlaylistRepository) UpdateLastSynced(id int64, syncedAt time.Time) error {
	return r.exec(
		"UPDATE tracked_playlists SET last_synced = ?, updated_at = ? WHERE id = ?",
		syncedAt.UTC(), time.Now().UTC(), id,
	)
}

// SetAutoSync updates the auto-sync flag and job handle together.
//
// An empty jobID clears the handle.
func (r *TrackedPlaylistRepository) SetAutoSync(id int64, enabled bool, jobID string) error {
	return r.exec(
		"UPDATE tracked_playlists SET auto_sync_enabled = ?, job_id = ?, updated_at = ? WHERE id = ?",
		enabled, nullString(jobID), time.Now().UTC(), id,
	)
}

// Delete removes a tracking record together with its disliked songs and its
// sync history.
func (r *TrackedPlaylistRepository) Delete(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM disliked_songs WHERE tracked_playlist_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete disliked songs: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM synced_songs WHERE tracked_playlist_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete synced songs: %w", err)
	}

	result, err := tx.Exec("DELETE FROM tracked_playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tracked playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: tracked playlist %d", shared.ErrNotFound, id)
	}

	return tx.Commit()
}

func (r *TrackedPlaylistRepository) exec(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tracked playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: tracked playlist", shared.ErrNotFound)
	}

	return nil
}

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackedPlaylist(row rowScanner) (*models.TrackedPlaylist, error) {
	var (
		tp         models.TrackedPlaylist
		lastSynced sql.NullTime
		jobID      sql.NullString
	)

	err := row.Scan(
		&tp.ID,
		&tp.UserID,
		&tp.SourcePlaylistID,
		&tp.TrackedPlaylistID,
		&tp.Name,
		&lastSynced,
		&tp.AutoSyncEnabled,
		&jobID,
		&tp.CreatedAt,
		&tp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tracked playlist", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracked playlist: %w", err)
	}

	if lastSynced.Valid {
		t := lastSynced.Time
		tp.LastSynced = &t
	}
	tp.JobID = jobID.String

	return &tp, nil
}
