// ABOUTME: Store interface and data types for tether persistence
// ABOUTME: Defines Contact, Message, ConversationSummary and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Sender constants identify who authored a message.
const (
	SenderAgent  = "agent"  // the automated agent
	SenderClient = "client" // the end user on the messaging platform
	SenderHuman  = "human"  // a human operator on the dashboard
)

// Kind constants for message content types.
const (
	KindText  = "text"
	KindImage = "image"
	KindAudio = "audio"
)

// Contact is the identity record for a conversational peer.
// The handle (e.g. a phone number) is the natural key; the ID is
// assigned once on creation and never changes.
type Contact struct {
	ID          string
	Handle      string
	DisplayName string
	LastSeen    time.Time
}

// Message is an immutable entry in the append-only message log.
// Messages for a contact are totally ordered by (Timestamp, ID);
// the integer ID is assigned monotonically and breaks timestamp ties.
type Message struct {
	ID        int64
	ContactID string
	Sender    string
	Kind      string
	Content   string
	Timestamp time.Time
}

// ConversationSummary is the denormalized one-per-contact projection
// used for the dashboard listing. Intervening and LastUpdated are
// written by different call paths and must stay field-scoped.
type ConversationSummary struct {
	ContactID   string
	Intervening bool
	LastUpdated time.Time
}

// ConversationOverview is one row of the dashboard listing: the contact,
// its summary, and the content of its most recent message (empty if the
// contact has a summary row but no messages yet).
type ConversationOverview struct {
	Contact     Contact
	Summary     ConversationSummary
	LastMessage string
}

// Store defines the interface for conversation persistence
type Store interface {
	// Contacts
	EnsureContact(ctx context.Context, handle, displayName string) (*Contact, error)
	GetContactByHandle(ctx context.Context, handle string) (*Contact, error)
	TouchContactLastSeen(ctx context.Context, contactID string, seen time.Time) error

	// Message log (append-only)
	AppendMessage(ctx context.Context, contactID, sender, kind, content string) (*Message, error)
	ListMessages(ctx context.Context, contactID string) ([]*Message, error)
	LatestMessage(ctx context.Context, contactID string) (*Message, error)

	// Conversation summaries
	AdvanceSummary(ctx context.Context, contactID string, at time.Time) error
	SetIntervening(ctx context.Context, contactID string, intervening bool, at time.Time) error
	GetSummary(ctx context.Context, contactID string) (*ConversationSummary, error)
	ListConversations(ctx context.Context) ([]*ConversationOverview, error)

	// Close releases any resources held by the store
	Close() error
}
