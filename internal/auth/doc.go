// Package auth issues and verifies the bearer tokens that guard the HTTP API.
//
// Tokens are HS256-signed JWTs carrying the caller's subject, which the
// audit trail records as the actor of each change. There are no users or
// sessions: anyone holding the shared secret can mint a token with the
// token subcommand.
package auth
