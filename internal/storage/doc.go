// Package storage persists clipbot's durable state: per-chat subscriber
// state blobs, the append-only sent-links log, the follow set, and the
// shared provider credential.
//
// Drivers:
//   - "file": dependency-free file backend (one file per entity under a prefix)
//   - "memory": process-local, lost on restart (tests, ephemeral runs)
//   - "sqlite": SQLite database file (optional "sqlite" build tag)
//
// Engine components tolerate a nil Store (persistence disabled).
package storage
