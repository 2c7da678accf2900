// Package session implements the stateless token codec used by the auth surface.
//
// Access and refresh tokens are HS256 JWTs carrying the subject id, email,
// username and a token kind ("access" or "refresh"). Nothing is stored
// server-side: a token is valid while its signature verifies and its expiry
// lies in the future. Logout therefore cannot revoke a token; every token
// carries a ULID jti so a denylist can be layered on later.
//
// Transport (HTTP) integration is out of scope here.
package session
