// Package store provides persistent storage for tether using SQLite.
//
// # Data Models
//
//   - Contact: identity of a conversational peer, keyed by a unique
//     handle (e.g. phone number). Created on first observed activity,
//     never deleted.
//   - Message: an immutable entry in the append-only message log.
//     Totally ordered per contact by (timestamp, id); the AUTOINCREMENT
//     id breaks timestamp ties.
//   - ConversationSummary: a denormalized one-per-contact row holding
//     the intervening flag and a cached last_updated timestamp, used by
//     the dashboard listing.
//
// # Write Ownership
//
// Contacts are created only via EnsureContact (insert-or-ignore on the
// handle's unique constraint, then read — safe under concurrent
// first-contact). Messages are created only via AppendMessage. The
// conversations row is shared between two writers with disjoint fields:
// AdvanceSummary owns last_updated (monotonic, never regresses) and
// SetIntervening owns intervening. Both are single-statement upserts so
// neither can lose the other's concurrent update.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as fixed-width UTC text so lexicographic order
// matches chronological order; see timeLayout in sqlite.go.
//
// # Error Handling
//
// ErrNotFound is returned when a referenced contact, summary, or message
// does not exist. All methods accept context.Context.
//
// # Testing
//
// Use NewSQLiteStore(":memory:") for tests with real SQLite.
package store
