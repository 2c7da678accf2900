// Package identity implements the credential store behind the auth surface.
//
// It owns user rows (id, email, username, avatar, active flag) and their
// password hashes. Hashes never leave the package except through UserAuth,
// which exists only for credential checks. Two Store implementations are
// provided: PostgresStore over a caller-owned pgx pool, and MemoryStore for
// development and tests.
package identity
