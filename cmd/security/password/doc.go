// Package password provides password hashing and verification utilities.
//
// Hashes are bcrypt strings ($2a$/$2b$) produced with a configurable cost.
// The package also carries the minimal password policy shared by registration
// and password changes:
// - Minimum length counted in characters (runes)
// - Maximum length counted in bytes, because bcrypt ignores input past 72 bytes
//
// Security notes:
// - Hash strings are treated as untrusted input during Verify.
// - FromEnv refuses costs below MinCost so production never runs with a toy work factor.
package password
