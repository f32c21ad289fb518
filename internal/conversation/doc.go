// Package conversation provides the coordination layer between the
// message log, conversation summaries, and the external relay.
//
// # Service
//
// The Service owns four call paths:
//
//   - Send: a human operator's message. Recorded first, then handed to
//     the relay; the result is a tagged Outcome (delivered,
//     recorded_not_delivered, rejected) so callers can distinguish a
//     durable-but-undelivered message from a real success or a refusal.
//   - Ingest: inbound agent/client messages from the webhook, creating
//     the contact on first sight and refreshing the summary.
//   - SetIntervening: the bot/human takeover flag. Idempotent; unknown
//     handles are a visible not-found, never an implicit create.
//   - History / Overview: the read side for the dashboard.
//
// # Consistency
//
// Message append and summary refresh are two statements, not one
// transaction. The refresh always runs before the caller observes
// success and is monotonic in the store, so concurrent appends converge
// on the true latest message and last_updated never moves backward.
//
// # Intervention
//
// The intervening flag is advisory: the automated agent polls it and
// suppresses its own replies while a human owns the conversation. The
// service's job is only to record and expose the flag correctly.
package conversation
