package tasks

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/repositories"
	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
	mock "github.com/desertthunder/trackify/internal/testing"
)

// The repositories must keep satisfying the store contracts.
var (
	_ TrackedPlaylistStore = (*repositories.TrackedPlaylistRepository)(nil)
	_ DislikeStore         = (*repositories.DislikedSongRepository)(nil)
	_ SyncHistoryStore     = (*repositories.SyncedSongRepository)(nil)
	_ UserStore            = (*repositories.UserRepository)(nil)
	_ TokenRefresher       = (*services.Authenticator)(nil)
	_ AutoSyncDisabler     = (*Scheduler)(nil)
)

// harness wires the sync core against an in-memory store and a mock API.
type harness struct {
	api       *mock.MockAPI
	users     *repositories.UserRepository
	playlists *repositories.TrackedPlaylistRepository
	dislikes  *repositories.DislikedSongRepository
	history   *repositories.SyncedSongRepository
	engine    *Engine
	logger    *log.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := mock.OpenTestDB(t)
	logger := shared.NewLogger(io.Discard)
	api := mock.NewMockAPI()

	h := &harness{
		api:       api,
		users:     repositories.NewUserRepository(db),
		playlists: repositories.NewTrackedPlaylistRepository(db),
		dislikes:  repositories.NewDislikedSongRepository(db),
		history:   repositories.NewSyncedSongRepository(db),
		logger:    logger,
	}
	h.engine = NewEngine(api, h.playlists, h.dislikes, h.history, 100, logger)
	return h
}

// seedUser persists a user with a stored refresh token.
func (h *harness) seedUser(t *testing.T, id string) {
	t.Helper()

	user := &models.User{ID: id, DisplayName: id, RefreshToken: "refresh-" + id}
	if err := h.users.Upsert(user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

// seedPair persists a tracking record for source -> copy and records the
// given history URIs as already synced.
func (h *harness) seedPair(t *testing.T, userID, sourceID, copyID string, history ...string) *models.TrackedPlaylist {
	t.Helper()

	tp := &models.TrackedPlaylist{
		UserID:            userID,
		SourcePlaylistID:  sourceID,
		TrackedPlaylistID: copyID,
		Name:              sourceID + " Tracker",
	}
	if err := h.playlists.Create(tp); err != nil {
		t.Fatalf("failed to seed tracked playlist: %v", err)
	}
	if err := h.history.InsertMany(tp.ID, history); err != nil {
		t.Fatalf("failed to seed history: %v", err)
	}
	return tp
}

// stubRefresher is a canned [TokenRefresher].
type stubRefresher struct {
	access  string
	rotated string
	err     error
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.TokenPair{AccessToken: s.access, RefreshToken: s.rotated}, nil
}

// stubDisabler records which schedules were torn down.
type stubDisabler struct {
	disabled []int64
}

func (s *stubDisabler) DisableAutoSync(id int64) error {
	s.disabled = append(s.disabled, id)
	return nil
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
