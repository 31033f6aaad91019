package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/server"
	"github.com/desertthunder/trackify/internal/services"
	"github.com/desertthunder/trackify/internal/shared"
	"github.com/urfave/cli/v3"
)

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize via the browser and store the refresh token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show stored users and credential state",
				Action: r.AuthStatus,
			},
		},
	}
}

// AuthLogin runs the authorization-code flow with a temporary local callback
// server and persists the resulting user and refresh token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	pair, err := r.doOAuth(s.auth)
	if err != nil {
		return err
	}

	profile, err := s.spotify.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	user := &models.User{ID: profile.ID, DisplayName: profile.DisplayName, RefreshToken: pair.RefreshToken}
	if err := s.users.Upsert(user); err != nil {
		return err
	}

	r.logger.Info("authorization complete", "user", profile.ID)
	return r.writePlain("Logged in as %s (%s)\n", profile.DisplayName, profile.ID)
}

// AuthStatus lists stored users and whether each carries a refresh token.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	s, err := r.buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	users, err := s.users.List()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return r.writePlain("No users stored. Run `trackify auth login`.\n")
	}

	for _, user := range users {
		state := "no refresh token"
		if user.RefreshToken != "" {
			state = "refresh token stored"
		}
		if err := r.writePlain("%s (%s): %s\n", user.DisplayName, user.ID, state); err != nil {
			return err
		}
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
func (r *Runner) doOAuth(auth server.AuthFlow) (*services.TokenPair, error) {
	state := shared.GenerateID()

	oauthHandler := server.NewOAuthHandler(auth, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	authURL := auth.AuthURL(state)
	r.writePlain("Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("Could not open browser automatically. Please open this URL:\n%s\n\n", authURL)
	}

	r.writePlain("Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Pair == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Pair, nil
}
