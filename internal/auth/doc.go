// Package auth signs and verifies the bearer tokens that guard the overrides
// HTTP API.
//
// Tokens are HS256 JWTs carrying a subject and a scope. The API accepts any
// unexpired token signed with the configured secret whose scope is
// ScopeOverrides; the CLI `token` command mints them for scripts and the
// host's admin tooling.
package auth
