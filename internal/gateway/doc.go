// Package gateway wires the tether server together: the SQLite store,
// the conversation service, the outbound relay client, and the HTTP
// surface exposing the dashboard API and the inbound message webhook.
package gateway
