// Package server provides HTTP routing, middleware, OAuth handling, and the
// JSON API for the playlist tracking service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow for
// one-shot CLI logins. The handler validates the state parameter (CSRF
// protection), exchanges the authorization code for tokens, and sends the
// result through a channel. It only processes one callback to prevent replay
// attacks.
//
// # API
//
// [API] serves the long-running web surface: login and callback, the tracked
// playlist listing, and the track, sync, auto-sync, dislike, and untrack
// operations. Handlers resolve the caller's stored refresh token into a fresh
// access token per request; nothing short-lived is persisted.
package server
