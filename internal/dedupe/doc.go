// Package dedupe provides a TTL cache used by the inbound webhook to
// suppress platform redeliveries. Messaging platforms retry webhook
// events on slow acknowledgments; without suppression a retried event
// would append the same message to the log twice.
package dedupe
