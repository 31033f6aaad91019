package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackify/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// scopes cover playlist reads, playlist mutation, and profile lookup.
var scopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"playlist-read-private",
	"user-read-private",
}

// TokenPair is the result of an exchange or refresh.
//
// RefreshToken is empty when the platform did not rotate the credential.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authenticator implements the OAuth authorization-code and refresh flows
// against Spotify's account service.
type Authenticator struct {
	config *oauth2.Config
}

// NewAuthenticator creates an Authenticator from Spotify app credentials.
func NewAuthenticator(cfg shared.SpotifyConfig) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8888/callback"
	}

	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
	}, nil
}

// AuthURL returns the consent page URL for the given CSRF state token.
func (a *Authenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for an access/refresh token pair.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*TokenPair, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	return &TokenPair{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// Refresh mints a fresh access token from a stored refresh token.
//
// When the platform rotates the refresh credential the new value is returned
// in TokenPair.RefreshToken and the caller must persist it.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	source := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthExpired, err)
	}

	pair := &TokenPair{AccessToken: token.AccessToken}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		pair.RefreshToken = token.RefreshToken
	}

	return pair, nil
}
