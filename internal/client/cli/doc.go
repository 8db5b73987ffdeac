// Package cli implements the FailSeed terminal client commands.
//
// Every command talks to the HTTP API through client.APIClient. Tokens are
// kept in the credentials file between runs and refreshed transparently.
package cli
