// package models defines the persistent entities of the playlist tracker:
// users, tracked playlists, and the per-playlist disliked-song exclusion set.
package models
