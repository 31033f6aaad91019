// Spotify Web API implementation of [PlaylistAPI]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/trackify/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// Spotify allows roughly 180 requests per minute per app; stay under it.
const requestsPerSecond = 3

// maxURIsPerWrite is the platform limit on track URIs per mutation request.
const maxURIsPerWrite = 100

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyTrack struct {
	URI string `json:"uri"`
}

type spotifyTrackItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyTracksPage struct {
	Items *[]spotifyTrackItem `json:"items"`
	Next  *string             `json:"next"`
	Total int                 `json:"total"`
}

type spotifyPlaylist struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Owner       spotifyOwner       `json:"owner"`
	Public      bool               `json:"public"`
	Tracks      *spotifyTracksPage `json:"tracks"`
}

type spotifyPlaylistRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPlaylistsPage struct {
	Items *[]spotifyPlaylistRef `json:"items"`
	Next  *string               `json:"next"`
}

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyClient implements [PlaylistAPI] over the Spotify Web API.
//
// Requests are rate limited and bounded by a per-call timeout. The bearer
// token is supplied per call by the auth collaborator.
type SpotifyClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewSpotifyClient creates a Spotify API client with the given per-request timeout.
//
// A nil httpClient falls back to [http.DefaultClient].
func NewSpotifyClient(httpClient *http.Client, timeout time.Duration) *SpotifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SpotifyClient{
		httpClient: httpClient,
		baseURL:    spotifyBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		timeout:    timeout,
	}
}

// doRequest performs an authenticated HTTP request against the Spotify API.
//
// rawURL may be a path relative to the API base or an absolute pagination URL.
// Error statuses map onto the shared sentinels: 401 to ErrAuthExpired, 403 to
// ErrPermissionDenied, 404 to ErrNotFound, anything else non-2xx to APIError.
func (c *SpotifyClient) doRequest(ctx context.Context, token, method, rawURL string, body, result any) error {
	if token == "" {
		return fmt.Errorf("%w: empty bearer token", shared.ErrAuthExpired)
	}

	apiURL := rawURL
	if u, err := url.Parse(rawURL); err != nil || !u.IsAbs() {
		apiURL = c.baseURL + rawURL
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrUpstreamAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUpstreamAPI, err)
		}
	}

	return nil
}

// statusError translates a non-2xx response into a shared error kind.
func (c *SpotifyClient) statusError(resp *http.Response) error {
	var errBody spotifyErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&errBody)
	message := errBody.Error.Message

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrAuthExpired, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrPermissionDenied, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, message)
	default:
		return &shared.APIError{Status: resp.StatusCode, Message: message}
	}
}

// GetPlaylist retrieves a playlist's metadata.
func (c *SpotifyClient) GetPlaylist(ctx context.Context, token, playlistID string) (*PlaylistMeta, error) {
	var playlist spotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", playlistID)
	if err := c.doRequest(ctx, token, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}

	if playlist.ID == "" || playlist.Tracks == nil {
		return nil, fmt.Errorf("%w: playlist response missing required fields", shared.ErrUpstreamAPI)
	}

	return &PlaylistMeta{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		OwnerID:     playlist.Owner.ID,
		OwnerName:   playlist.Owner.DisplayName,
		Public:      playlist.Public,
		TrackTotal:  playlist.Tracks.Total,
	}, nil
}

// GetPlaylistTracksPage retrieves one page of a playlist's track listing.
//
// An empty pageURL requests the first page (limit 100, the platform maximum).
func (c *SpotifyClient) GetPlaylistTracksPage(ctx context.Context, token, playlistID, pageURL string) (*PlaylistPage, error) {
	endpoint := pageURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("/playlists/%s/tracks?limit=%d", playlistID, maxURIsPerWrite)
	}

	var page spotifyTracksPage
	if err := c.doRequest(ctx, token, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	if page.Items == nil {
		return nil, fmt.Errorf("%w: tracks page missing items field", shared.ErrUpstreamAPI)
	}

	result := &PlaylistPage{Items: make([]TrackItem, 0, len(*page.Items))}
	for _, item := range *page.Items {
		if item.Track == nil {
			// Null track entries carry no URI; the resolver skips them.
			result.Items = append(result.Items, TrackItem{})
			continue
		}
		result.Items = append(result.Items, TrackItem{URI: item.Track.URI})
	}

	if page.Next != nil {
		result.Next = *page.Next
	}

	return result, nil
}

// GetUserPlaylists retrieves the authenticated user's full playlist library.
func (c *SpotifyClient) GetUserPlaylists(ctx context.Context, token string) ([]PlaylistRef, error) {
	var refs []PlaylistRef
	endpoint := "/me/playlists?limit=50"

	for endpoint != "" {
		var page spotifyPlaylistsPage
		if err := c.doRequest(ctx, token, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		if page.Items == nil {
			return nil, fmt.Errorf("%w: playlists page missing items field", shared.ErrUpstreamAPI)
		}

		for _, item := range *page.Items {
			refs = append(refs, PlaylistRef{
				ID:         item.ID,
				Name:       item.Name,
				TrackTotal: item.Tracks.Total,
			})
		}

		if page.Next == nil {
			break
		}
		endpoint = *page.Next
	}

	return refs, nil
}

// CreatePlaylist creates a new playlist for ownerID and returns its ID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (string, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", ownerID)
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, token, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}

	if created.ID == "" {
		return "", fmt.Errorf("%w: create playlist response missing id", shared.ErrUpstreamAPI)
	}

	return created.ID, nil
}

// AddTracks appends track URIs to a playlist. At most 100 per call.
func (c *SpotifyClient) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > maxURIsPerWrite {
		return fmt.Errorf("%w: at most %d URIs per add request", shared.ErrInvalidInput, maxURIsPerWrite)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return c.doRequest(ctx, token, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil)
}

// RemoveTracks removes all occurrences of the given URIs from a playlist.
func (c *SpotifyClient) RemoveTracks(ctx context.Context, token, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}

	tracks := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		tracks = append(tracks, map[string]string{"uri": uri})
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return c.doRequest(ctx, token, http.MethodDelete, endpoint, map[string]any{"tracks": tracks}, nil)
}

// UnfollowPlaylist removes a playlist from the user's library.
//
// Spotify has no hard delete; unfollowing an owned playlist removes it.
func (c *SpotifyClient) UnfollowPlaylist(ctx context.Context, token, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", playlistID)
	return c.doRequest(ctx, token, http.MethodDelete, endpoint, nil, nil)
}

// CurrentUser retrieves the profile of the token's user.
func (c *SpotifyClient) CurrentUser(ctx context.Context, token string) (*UserProfile, error) {
	var user spotifyUser
	if err := c.doRequest(ctx, token, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: user profile missing id", shared.ErrUpstreamAPI)
	}

	return &UserProfile{ID: user.ID, DisplayName: user.DisplayName}, nil
}
