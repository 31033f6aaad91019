// package repositories provides the SQLite persistence layer for users,
// tracked playlists, disliked songs, and the sync history.
//
// Uniqueness rules are schema constraints, not application checks:
// (user_id, source_playlist_id) and tracked_playlist_id on tracked_playlists,
// (tracked_playlist_id, song_uri) on disliked_songs and synced_songs.
// Constraint violations are translated into the sentinel errors of the shared
// package.
package repositories
