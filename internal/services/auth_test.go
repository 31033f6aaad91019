package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/trackify/internal/shared"
	"golang.org/x/oauth2"
)

func TestAuthenticator(t *testing.T) {
	ctx := context.Background()

	t.Run("NewAuthenticator", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			auth, err := NewAuthenticator(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
				RedirectURI:  "http://localhost:9999/cb",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if auth.config.RedirectURL != "http://localhost:9999/cb" {
				t.Errorf("expected configured redirect URI, got %s", auth.config.RedirectURL)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			_, err := NewAuthenticator(shared.SpotifyConfig{ClientID: "only_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			auth, err := NewAuthenticator(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if auth.config.RedirectURL != "http://localhost:8888/callback" {
				t.Errorf("expected default redirect URI, got %s", auth.config.RedirectURL)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		auth, err := NewAuthenticator(shared.SpotifyConfig{
			ClientID:     "test_client_id",
			ClientSecret: "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create authenticator: %v", err)
		}

		authURL := auth.AuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
		if !strings.Contains(authURL, "playlist-modify-public") {
			t.Error("auth URL should request playlist mutation scope")
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		newAuthWithTokenServer := func(t *testing.T, handler http.HandlerFunc) *Authenticator {
			t.Helper()

			srv := httptest.NewServer(handler)
			t.Cleanup(srv.Close)

			auth, err := NewAuthenticator(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
			})
			if err != nil {
				t.Fatalf("failed to create authenticator: %v", err)
			}
			auth.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"}
			return auth
		}

		t.Run("Returns Fresh Access Token", func(t *testing.T) {
			auth := newAuthWithTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`)
			})

			pair, err := auth.Refresh(ctx, "stored_refresh")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair.AccessToken != "fresh" {
				t.Errorf("expected fresh access token, got %s", pair.AccessToken)
			}
			if pair.RefreshToken != "" {
				t.Errorf("expected no rotation, got %s", pair.RefreshToken)
			}
		})

		t.Run("Surfaces Rotated Refresh Token", func(t *testing.T) {
			auth := newAuthWithTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token": "fresh", "refresh_token": "rotated", "token_type": "Bearer", "expires_in": 3600}`)
			})

			pair, err := auth.Refresh(ctx, "stored_refresh")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair.RefreshToken != "rotated" {
				t.Errorf("expected rotated refresh token, got %q", pair.RefreshToken)
			}
		})

		t.Run("Rejected Refresh Maps To AuthExpired", func(t *testing.T) {
			auth := newAuthWithTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error": "invalid_grant"}`)
			})

			_, err := auth.Refresh(ctx, "revoked_refresh")
			if !errors.Is(err, shared.ErrAuthExpired) {
				t.Errorf("expected ErrAuthExpired, got %v", err)
			}
		})

		t.Run("Missing Refresh Token", func(t *testing.T) {
			auth, err := NewAuthenticator(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
			})
			if err != nil {
				t.Fatalf("failed to create authenticator: %v", err)
			}

			if _, err := auth.Refresh(ctx, ""); !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})
	})
}
