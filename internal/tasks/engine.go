package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
)

// Engine reconciles tracked playlists against their sources.
//
// Passes for the same tracking record are serialized by a per-record mutex;
// a second caller blocks until the in-flight pass finishes. Passes for
// different records run concurrently.
type Engine struct {
	api       services.PlaylistAPI
	resolver  *TrackSetResolver
	playlists TrackedPlaylistStore
	dislikes  DislikeStore
	history   SyncHistoryStore
	chunkSize int
	logger    *log.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewEngine creates a reconciliation engine. chunkSize caps how many URIs a
// single add request carries and is clamped to the platform's limit of 100.
func NewEngine(
	api services.PlaylistAPI,
	playlists TrackedPlaylistStore,
	dislikes DislikeStore,
	history SyncHistoryStore,
	chunkSize int,
	logger *log.Logger,
) *Engine {
	if chunkSize <= 0 || chunkSize > 100 {
		chunkSize = 100
	}
	return &Engine{
		api:       api,
		resolver:  NewTrackSetResolver(api),
		playlists: playlists,
		dislikes:  dislikes,
		history:   history,
		chunkSize: chunkSize,
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing passes for one tracking record.
func (e *Engine) lockFor(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// Reconcile runs one sync pass for a tracking record.
//
// The pass resolves both playlists in full, infers removals from the sync
// history, records those as dislikes FIRST, and only then appends source
// tracks that are new and not excluded. Exclusions committed before a later
// step fails stay committed; the last-synced timestamp moves only after every
// addition lands.
func (e *Engine) Reconcile(ctx context.Context, token string, tp *models.TrackedPlaylist) (*models.SyncReport, error) {
	lock := e.lockFor(tp.ID)
	lock.Lock()
	defer lock.Unlock()

	sourceSet, err := e.resolver.Resolve(ctx, token, tp.SourcePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("source playlist: %w", err)
	}

	trackedSet, err := e.resolver.Resolve(ctx, token, tp.TrackedPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("tracked playlist: %w", err)
	}

	excluded, err := e.loadSet(e.dislikes.ListURIs, tp.ID, "disliked songs")
	if err != nil {
		return nil, err
	}

	synced, err := e.loadSet(e.history.ListURIs, tp.ID, "sync history")
	if err != nil {
		return nil, err
	}

	// A URI the engine placed on the copy that is gone now was removed by
	// the user. Record it as a dislike before computing additions so the
	// same pass cannot add it back.
	var newlyExcluded []string
	for uri := range synced {
		if !trackedSet[uri] && !excluded[uri] {
			newlyExcluded = append(newlyExcluded, uri)
		}
	}
	sort.Strings(newlyExcluded)

	for _, uri := range newlyExcluded {
		if err := e.dislikes.Insert(tp.ID, uri); err != nil {
			return nil, fmt.Errorf("failed to record exclusion %s: %w", uri, err)
		}
		excluded[uri] = true
	}

	// New on the source, not already on the copy, never placed there
	// before, and not rejected by the user.
	var toAdd []string
	for uri := range sourceSet {
		if !trackedSet[uri] && !synced[uri] && !excluded[uri] {
			toAdd = append(toAdd, uri)
		}
	}
	sort.Strings(toAdd)

	for _, chunk := range shared.ChunkStrings(toAdd, e.chunkSize) {
		if err := e.api.AddTracks(ctx, token, tp.TrackedPlaylistID, chunk); err != nil {
			return nil, fmt.Errorf("failed to add tracks: %w", err)
		}
		if err := e.history.InsertMany(tp.ID, chunk); err != nil {
			return nil, fmt.Errorf("failed to record sync history: %w", err)
		}
	}

	syncedAt := time.Now().UTC()
	if err := e.playlists.UpdateLastSynced(tp.ID, syncedAt); err != nil {
		return nil, fmt.Errorf("failed to update last synced: %w", err)
	}

	e.logger.Info("reconciled tracked playlist",
		"playlist", tp.Name,
		"added", len(toAdd),
		"excluded", len(newlyExcluded),
	)

	return &models.SyncReport{
		Added:         toAdd,
		NewlyExcluded: newlyExcluded,
		SyncedAt:      syncedAt,
	}, nil
}

func (e *Engine) loadSet(list func(int64) ([]string, error), id int64, what string) (map[string]bool, error) {
	uris, err := list(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", what, err)
	}

	set := make(map[string]bool, len(uris))
	for _, uri := range uris {
		set[uri] = true
	}
	return set, nil
}
