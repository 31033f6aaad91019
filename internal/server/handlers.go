package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/repositories"
	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
	"github.com/desertthunder/trackify/internal/tasks"
)

// stateTTL bounds how long a login attempt may sit between /login and
// /callback.
const stateTTL = 10 * time.Minute

// AuthFlow covers the OAuth operations the API needs.
// Implemented by [services.Authenticator].
type AuthFlow interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// APIConfig carries the collaborators an [API] is built from.
type APIConfig struct {
	Auth      AuthFlow
	Spotify   services.PlaylistAPI
	Users     *repositories.UserRepository
	Playlists *repositories.TrackedPlaylistRepository
	Tracker   *tasks.Tracker
	Scheduler *tasks.Scheduler
	Profile   *tasks.ProfileService
	Logger    *log.Logger
}

// API implements the tracking service's JSON surface.
//
// Every mutating endpoint authenticates by resolving the caller's stored
// refresh token into a fresh access token, and checks that the caller owns
// the record it is touching.
type API struct {
	auth      AuthFlow
	spotify   services.PlaylistAPI
	users     *repositories.UserRepository
	playlists *repositories.TrackedPlaylistRepository
	tracker   *tasks.Tracker
	scheduler *tasks.Scheduler
	profile   *tasks.ProfileService
	logger    *log.Logger

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAPI creates the API from its collaborators.
func NewAPI(cfg APIConfig) *API {
	return &API{
		auth:      cfg.Auth,
		spotify:   cfg.Spotify,
		users:     cfg.Users,
		playlists: cfg.Playlists,
		tracker:   cfg.Tracker,
		scheduler: cfg.Scheduler,
		profile:   cfg.Profile,
		logger:    cfg.Logger,
		states:    make(map[string]time.Time),
	}
}

// Register wires every endpoint onto the router.
func (a *API) Register(router Router) {
	router.Handle(http.MethodGet, "/login", http.HandlerFunc(a.handleLogin))
	router.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.handleCallback))
	router.Handle(http.MethodGet, "/profile/{user_id}", http.HandlerFunc(a.handleProfile))
	router.Handle(http.MethodPost, "/playlists", http.HandlerFunc(a.handleTrack))
	router.Handle(http.MethodPost, "/playlists/{id}/sync", http.HandlerFunc(a.handleSync))
	router.Handle(http.MethodPost, "/playlists/{id}/autosync", http.HandlerFunc(a.handleAutoSync))
	router.Handle(http.MethodPost, "/playlists/{id}/dislike", http.HandlerFunc(a.handleDislike))
	router.Handle(http.MethodDelete, "/playlists/{id}", http.HandlerFunc(a.handleUntrack))
	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.handleHealth))
}

// handleLogin redirects the browser to the platform's consent page.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	a.mu.Lock()
	now := time.Now()
	for s, issued := range a.states {
		if now.Sub(issued) > stateTTL {
			delete(a.states, s)
		}
	}
	a.states[state] = now
	a.mu.Unlock()

	http.Redirect(w, r, a.auth.AuthURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow and persists the user.
func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	a.mu.Lock()
	issued, ok := a.states[state]
	delete(a.states, state)
	a.mu.Unlock()

	if !ok || time.Since(issued) > stateTTL {
		a.writeError(w, fmt.Errorf("%w: unknown or expired state", shared.ErrInvalidInput))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		a.writeError(w, fmt.Errorf("%w: missing authorization code", shared.ErrInvalidInput))
		return
	}

	pair, err := a.auth.Exchange(r.Context(), code)
	if err != nil {
		a.writeError(w, err)
		return
	}

	profile, err := a.spotify.CurrentUser(r.Context(), pair.AccessToken)
	if err != nil {
		a.writeError(w, err)
		return
	}

	refreshToken := pair.RefreshToken
	if refreshToken == "" {
		// Exchange without rotation: keep whatever we already stored.
		if existing, err := a.users.Get(profile.ID); err == nil {
			refreshToken = existing.RefreshToken
		}
	}

	user := &models.User{ID: profile.ID, DisplayName: profile.DisplayName, RefreshToken: refreshToken}
	if err := a.users.Upsert(user); err != nil {
		a.writeError(w, err)
		return
	}

	a.logger.Info("user logged in", "user", profile.ID)
	a.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      profile.ID,
		"display_name": profile.DisplayName,
	})
}

// handleProfile lists the caller's tracked playlists, self-healing records
// whose copies were deleted on the platform.
func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	token, err := a.accessToken(r.Context(), userID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	records, err := a.profile.ListTracked(r.Context(), token, userID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]playlistResponse, 0, len(records))
	for _, tp := range records {
		out = append(out, newPlaylistResponse(tp))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"playlists": out})
}

// handleTrack starts tracking a source playlist.
func (a *API) handleTrack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID           string `json:"user_id"`
		SourcePlaylistID string `json:"source_playlist_id"`
		Name             string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if body.UserID == "" || body.SourcePlaylistID == "" {
		a.writeError(w, fmt.Errorf("%w: user_id and source_playlist_id are required", shared.ErrMissingArgument))
		return
	}

	token, err := a.accessToken(r.Context(), body.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	tp, err := a.tracker.Track(r.Context(), token, body.UserID, body.SourcePlaylistID, body.Name)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, newPlaylistResponse(tp))
}

// handleSync triggers one reconciliation pass right now.
func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	tp, ok := a.ownedRecord(w, r)
	if !ok {
		return
	}

	report, err := a.scheduler.TriggerManualSync(r.Context(), tp.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"added":          len(report.Added),
		"newly_excluded": len(report.NewlyExcluded),
		"synced_at":      report.SyncedAt,
	})
}

// handleAutoSync enables or disables the recurring sync schedule.
func (a *API) handleAutoSync(w http.ResponseWriter, r *http.Request) {
	tp, ok := a.ownedRecord(w, r)
	if !ok {
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	if body.Enabled {
		handle, err := a.scheduler.EnableAutoSync(tp.ID)
		if err != nil {
			a.writeError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{"auto_sync_enabled": true, "job_id": handle})
		return
	}

	if err := a.scheduler.DisableAutoSync(tp.ID); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"auto_sync_enabled": false})
}

// handleDislike permanently excludes a track and removes it from the copy.
func (a *API) handleDislike(w http.ResponseWriter, r *http.Request) {
	tp, ok := a.ownedRecord(w, r)
	if !ok {
		return
	}

	var body struct {
		SongURI string `json:"song_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	token, err := a.accessToken(r.Context(), tp.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if err := a.tracker.Dislike(r.Context(), token, tp, body.SongURI); err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{"disliked": body.SongURI})
}

// handleUntrack tears a pairing down.
func (a *API) handleUntrack(w http.ResponseWriter, r *http.Request) {
	tp, ok := a.ownedRecord(w, r)
	if !ok {
		return
	}

	token, err := a.accessToken(r.Context(), tp.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if err := a.tracker.Untrack(r.Context(), token, tp.ID); err != nil {
		a.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ownedRecord loads the record from the path and enforces that the caller
// identified by the user_id query parameter owns it. Writes the error
// response itself when the check fails.
func (a *API) ownedRecord(w http.ResponseWriter, r *http.Request) (*models.TrackedPlaylist, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		a.writeError(w, fmt.Errorf("%w: user_id is required", shared.ErrMissingArgument))
		return nil, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: bad playlist id", shared.ErrInvalidInput))
		return nil, false
	}

	tp, err := a.playlists.Get(id)
	if err != nil {
		a.writeError(w, err)
		return nil, false
	}
	if tp.UserID != userID {
		a.writeError(w, fmt.Errorf("%w: playlist %d", shared.ErrPermissionDenied, id))
		return nil, false
	}

	return tp, true
}

// accessToken resolves a user's stored refresh token into a fresh access
// token, persisting any rotated refresh credential.
func (a *API) accessToken(ctx context.Context, userID string) (string, error) {
	user, err := a.users.Get(userID)
	if err != nil {
		return "", err
	}

	pair, err := a.auth.Refresh(ctx, user.RefreshToken)
	if err != nil {
		return "", err
	}

	if pair.RefreshToken != "" && pair.RefreshToken != user.RefreshToken {
		if err := a.users.SetRefreshToken(userID, pair.RefreshToken); err != nil {
			a.logger.Warn("failed to persist rotated refresh token", "user", userID, "error", err)
		}
	}

	return pair.AccessToken, nil
}

// playlistResponse is the wire shape of a tracking record.
type playlistResponse struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	SourcePlaylistID  string     `json:"source_playlist_id"`
	TrackedPlaylistID string     `json:"tracked_playlist_id"`
	LastSynced        *time.Time `json:"last_synced,omitempty"`
	AutoSyncEnabled   bool       `json:"auto_sync_enabled"`
}

func newPlaylistResponse(tp *models.TrackedPlaylist) playlistResponse {
	return playlistResponse{
		ID:                tp.ID,
		Name:              tp.Name,
		SourcePlaylistID:  tp.SourcePlaylistID,
		TrackedPlaylistID: tp.TrackedPlaylistID,
		LastSynced:        tp.LastSynced,
		AutoSyncEnabled:   tp.AutoSyncEnabled,
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain error kinds onto HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrAuthExpired), errors.Is(err, shared.ErrNoRefreshToken):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrAlreadyTracking):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrUpstreamAPI):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}

	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}
