// Package client is the HTTP API client used by the FailSeed terminal client.
//
// APIClient carries the access and refresh tokens, attaches the bearer token
// to every authenticated call and, like a browser session would, refreshes an
// expired access token once before giving up. Failed calls surface as
// *APIError values that match the sentinel errors ErrUnauthorized and
// ErrNotFound via errors.Is; transport failures match ErrUnavailable.
package client
