// Package store persists the active session and its append-only message log
// in SQLite so a conversation survives client restarts.
package store
