// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
)

// MockAPI is an in-memory test double for [services.PlaylistAPI].
//
// Playlists maps playlist IDs to track URI slices; an empty string entry
// stands for a null track item. Method behavior is scripted through the Err
// map (keyed by method name) and observed through the recorded call slices.
type MockAPI struct {
	mu sync.Mutex

	Playlists map[string][]string
	Meta      map[string]*services.PlaylistMeta
	Library   []services.PlaylistRef
	Profile   services.UserProfile

	// PageSize splits track listings into pages of this size. Zero means
	// everything on the first page.
	PageSize int

	// Err fails the named method with the given error.
	Err map[string]error

	// Delay is applied on entry to every method. Combined with the
	// in-flight counters it makes call overlap observable.
	Delay time.Duration

	AddCalls    [][]string
	RemoveCalls [][]string
	Created     []string
	Unfollowed  []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	nextID int
}

// NewMockAPI creates an empty mock.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		Playlists: make(map[string][]string),
		Meta:      make(map[string]*services.PlaylistMeta),
		Err:       make(map[string]error),
	}
}

// MaxInFlight reports the largest number of API calls that were ever in
// flight at once.
func (m *MockAPI) MaxInFlight() int32 {
	return m.maxInFlight.Load()
}

// enter applies scripted failures and tracks call overlap.
func (m *MockAPI) enter(method string) (func(), error) {
	n := m.inFlight.Add(1)
	for {
		max := m.maxInFlight.Load()
		if n <= max || m.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	err := m.Err[method]
	m.mu.Unlock()

	done := func() { m.inFlight.Add(-1) }
	if err != nil {
		done()
		return nil, err
	}
	return done, nil
}

func (m *MockAPI) GetPlaylist(ctx context.Context, token, playlistID string) (*services.PlaylistMeta, error) {
	done, err := m.enter("GetPlaylist")
	if err != nil {
		return nil, err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	if meta, ok := m.Meta[playlistID]; ok {
		return meta, nil
	}
	uris, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	return &services.PlaylistMeta{ID: playlistID, Name: playlistID, TrackTotal: len(uris)}, nil
}

func (m *MockAPI) GetPlaylistTracksPage(ctx context.Context, token, playlistID, pageURL string) (*services.PlaylistPage, error) {
	done, err := m.enter("GetPlaylistTracksPage")
	if err != nil {
		return nil, err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	uris, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}

	offset := 0
	if pageURL != "" {
		if _, err := fmt.Sscanf(pageURL, "mock://page/%d", &offset); err != nil {
			return nil, fmt.Errorf("%w: bad page cursor %q", shared.ErrUpstreamAPI, pageURL)
		}
	}

	end := len(uris)
	next := ""
	if m.PageSize > 0 && offset+m.PageSize < len(uris) {
		end = offset + m.PageSize
		next = fmt.Sprintf("mock://page/%d", end)
	}

	page := &services.PlaylistPage{Next: next}
	for _, uri := range uris[offset:end] {
		page.Items = append(page.Items, services.TrackItem{URI: uri})
	}
	return page, nil
}

func (m *MockAPI) GetUserPlaylists(ctx context.Context, token string) ([]services.PlaylistRef, error) {
	done, err := m.enter("GetUserPlaylists")
	if err != nil {
		return nil, err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.PlaylistRef(nil), m.Library...), nil
}

func (m *MockAPI) CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (string, error) {
	done, err := m.enter("CreatePlaylist")
	if err != nil {
		return "", err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("mock-playlist-%d", m.nextID)
	m.Playlists[id] = nil
	m.Library = append(m.Library, services.PlaylistRef{ID: id, Name: name})
	m.Created = append(m.Created, id)
	return id, nil
}

func (m *MockAPI) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	done, err := m.enter("AddTracks")
	if err != nil {
		return err
	}
	defer done()

	if len(uris) > 100 {
		return fmt.Errorf("%w: at most 100 URIs per request", shared.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Playlists[playlistID] = append(m.Playlists[playlistID], uris...)
	m.AddCalls = append(m.AddCalls, append([]string(nil), uris...))
	return nil
}

func (m *MockAPI) RemoveTracks(ctx context.Context, token, playlistID string, uris []string) error {
	done, err := m.enter("RemoveTracks")
	if err != nil {
		return err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(uris))
	for _, uri := range uris {
		drop[uri] = true
	}

	var kept []string
	for _, uri := range m.Playlists[playlistID] {
		if !drop[uri] {
			kept = append(kept, uri)
		}
	}
	m.Playlists[playlistID] = kept
	m.RemoveCalls = append(m.RemoveCalls, append([]string(nil), uris...))
	return nil
}

func (m *MockAPI) UnfollowPlaylist(ctx context.Context, token, playlistID string) error {
	done, err := m.enter("UnfollowPlaylist")
	if err != nil {
		return err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Playlists, playlistID)
	var kept []services.PlaylistRef
	for _, ref := range m.Library {
		if ref.ID != playlistID {
			kept = append(kept, ref)
		}
	}
	m.Library = kept
	m.Unfollowed = append(m.Unfollowed, playlistID)
	return nil
}

func (m *MockAPI) CurrentUser(ctx context.Context, token string) (*services.UserProfile, error) {
	done, err := m.enter("CurrentUser")
	if err != nil {
		return nil, err
	}
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()
	profile := m.Profile
	return &profile, nil
}

// Tracks returns a copy of a playlist's current URIs.
func (m *MockAPI) Tracks(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Playlists[playlistID]...)
}

// SetTracks replaces a playlist's URIs.
func (m *MockAPI) SetTracks(playlistID string, uris ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Playlists[playlistID] = append([]string(nil), uris...)
}

// OpenTestDB opens a migrated in-memory database that closes with the test.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
