// package services wraps the Spotify Web API behind typed result structs
// and provides the OAuth collaborator used to mint and refresh bearer tokens.
//
// The playlist client takes the bearer token per call: one client instance
// serves every user of the application.
package services
