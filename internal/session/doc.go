// Package session owns the workflow session: its identity, pipeline stage,
// and readiness flags. The manager keeps one current session, initializes it
// against the backend exactly once, applies stage updates pushed back by
// chat turns, and supports a full reset.
package session
