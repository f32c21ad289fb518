// ABOUTME: ConversationService is the central layer for message recording and relay
// ABOUTME: Record first, then act - the local transcript is the source of truth, not the relay's ack

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tether-ops/tether/internal/relay"
	"github.com/tether-ops/tether/internal/store"
)

// ErrInvalidInput is returned when a required field is missing or malformed
var ErrInvalidInput = errors.New("invalid input")

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	EnsureContact(ctx context.Context, handle, displayName string) (*store.Contact, error)
	GetContactByHandle(ctx context.Context, handle string) (*store.Contact, error)
	TouchContactLastSeen(ctx context.Context, contactID string, seen time.Time) error

	AppendMessage(ctx context.Context, contactID, sender, kind, content string) (*store.Message, error)
	ListMessages(ctx context.Context, contactID string) ([]*store.Message, error)
	LatestMessage(ctx context.Context, contactID string) (*store.Message, error)

	AdvanceSummary(ctx context.Context, contactID string, at time.Time) error
	SetIntervening(ctx context.Context, contactID string, intervening bool, at time.Time) error
	GetSummary(ctx context.Context, contactID string) (*store.ConversationSummary, error)
	ListConversations(ctx context.Context) ([]*store.ConversationOverview, error)
}

// Service coordinates the message log, conversation summaries, the
// intervention flag, and the hand-off of human messages to the relay.
type Service struct {
	store  ConversationStore
	relay  relay.Relay
	logger *slog.Logger
}

// New creates a new conversation Service
func New(st ConversationStore, rl relay.Relay, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		relay:  rl,
		logger: logger.With("component", "conversation"),
	}
}

// Outcome classifies the result of sending a human message.
type Outcome string

const (
	// OutcomeDelivered means the message was recorded and the relay accepted it.
	OutcomeDelivered Outcome = "delivered"

	// OutcomeRecorded means the message is durably recorded but the relay
	// call failed; the transcript is intact and the caller must surface
	// the failed delivery rather than claim success.
	OutcomeRecorded Outcome = "recorded_not_delivered"

	// OutcomeRejected means the request was refused before any write.
	OutcomeRejected Outcome = "rejected"
)

// SendResult is the tagged outcome of Send. A boolean cannot express the
// difference between "not durable" and "not delivered", so callers get
// the full classification plus the recorded message and failure reason.
type SendResult struct {
	Outcome Outcome
	Message *store.Message // nil when rejected
	Reason  string         // set for rejected and recorded_not_delivered
}

// Send records a human-authored message for the handle and attempts to
// hand it to the relay.
//
// Key principle: record first, then act. The message is committed to the
// log before the relay call so the operator's transcript survives an
// unreachable engine. Relay failure yields OutcomeRecorded, never a
// rollback. Only storage faults are returned as errors.
func (s *Service) Send(ctx context.Context, handle, content string) (*SendResult, error) {
	if handle == "" {
		return &SendResult{Outcome: OutcomeRejected, Reason: "handle is required"}, nil
	}
	if content == "" {
		return &SendResult{Outcome: OutcomeRejected, Reason: "content is required"}, nil
	}

	// Sending to an unseen handle creates the contact
	contact, err := s.store.EnsureContact(ctx, handle, "")
	if err != nil {
		return nil, fmt.Errorf("ensuring contact: %w", err)
	}

	msg, err := s.appendAndRefresh(ctx, contact.ID, store.SenderHuman, store.KindText, content)
	if err != nil {
		return nil, err
	}

	if err := s.relay.Deliver(ctx, handle, content); err != nil {
		s.logger.Warn("message recorded but not delivered",
			"handle", handle,
			"message_id", msg.ID,
			"error", err)
		return &SendResult{
			Outcome: OutcomeRecorded,
			Message: msg,
			Reason:  err.Error(),
		}, nil
	}

	// Delivery succeeded; bump the summary so the conversation surfaces
	// at the top of the dashboard listing.
	if err := s.store.AdvanceSummary(ctx, contact.ID, time.Now()); err != nil {
		s.logger.Error("failed to refresh summary after delivery",
			"contact_id", contact.ID, "error", err)
	}

	s.logger.Debug("human message delivered", "handle", handle, "message_id", msg.ID)
	return &SendResult{Outcome: OutcomeDelivered, Message: msg}, nil
}

// InboundMessage is an agent or client message arriving from the
// messaging platform. DisplayName is the sender's profile name, used
// only when the contact is first created.
type InboundMessage struct {
	Handle      string
	DisplayName string
	Sender      string
	Kind        string
	Content     string
}

// Ingest records an inbound agent or client message, creating the
// contact on first sight and updating its last_seen.
func (s *Service) Ingest(ctx context.Context, in InboundMessage) (*store.Message, error) {
	if in.Handle == "" || in.Content == "" {
		return nil, fmt.Errorf("%w: handle and content are required", ErrInvalidInput)
	}
	if in.Sender != store.SenderAgent && in.Sender != store.SenderClient {
		return nil, fmt.Errorf("%w: sender must be %q or %q", ErrInvalidInput, store.SenderAgent, store.SenderClient)
	}
	if in.Kind == "" {
		in.Kind = store.KindText
	}

	contact, err := s.store.EnsureContact(ctx, in.Handle, in.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("ensuring contact: %w", err)
	}

	if err := s.store.TouchContactLastSeen(ctx, contact.ID, time.Now()); err != nil {
		s.logger.Error("failed to update last_seen", "contact_id", contact.ID, "error", err)
	}

	return s.appendAndRefresh(ctx, contact.ID, in.Sender, in.Kind, in.Content)
}

// appendAndRefresh commits a message and refreshes the conversation
// summary before the caller observes success. The two writes are not one
// transaction; the summary upsert is monotonic, so interleaved appends
// for the same contact converge on the true latest message.
func (s *Service) appendAndRefresh(ctx context.Context, contactID, sender, kind, content string) (*store.Message, error) {
	msg, err := s.store.AppendMessage(ctx, contactID, sender, kind, content)
	if err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	if err := s.store.AdvanceSummary(ctx, contactID, msg.Timestamp); err != nil {
		s.logger.Error("failed to refresh summary",
			"contact_id", contactID,
			"message_id", msg.ID,
			"error", err)
	}

	return msg, nil
}

// SetIntervening flips ownership of the conversation between the
// automated agent and a human operator. Idempotent in either direction.
// Returns store.ErrNotFound for a handle that has never been seen: a
// toggle implies prior history, so it does not create contacts.
func (s *Service) SetIntervening(ctx context.Context, handle string, desired bool) (*store.ConversationSummary, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: handle is required", ErrInvalidInput)
	}

	contact, err := s.store.GetContactByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetIntervening(ctx, contact.ID, desired, time.Now()); err != nil {
		return nil, fmt.Errorf("setting intervening: %w", err)
	}

	s.logger.Info("intervention state changed", "handle", handle, "intervening", desired)
	return s.store.GetSummary(ctx, contact.ID)
}

// RefreshSummary recomputes a contact's summary from the latest message
// in the log. Idempotent; a contact with no messages is left untouched.
func (s *Service) RefreshSummary(ctx context.Context, contactID string) error {
	latest, err := s.store.LatestMessage(ctx, contactID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.AdvanceSummary(ctx, contactID, latest.Timestamp)
}

// ReconcileSummaries repairs every conversation summary from the message
// log. Run at startup: an append whose summary refresh was lost (crash
// between the two writes) leaves last_updated behind the log, and the
// monotonic refresh brings it forward without touching intervening.
func (s *Service) ReconcileSummaries(ctx context.Context) error {
	overviews, err := s.store.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	for _, o := range overviews {
		if err := s.RefreshSummary(ctx, o.Contact.ID); err != nil {
			return fmt.Errorf("refreshing summary for %s: %w", o.Contact.Handle, err)
		}
	}

	if len(overviews) > 0 {
		s.logger.Debug("reconciled conversation summaries", "count", len(overviews))
	}
	return nil
}

// History returns the full ordered message log for a handle. An unknown
// handle yields an empty history, not an error.
func (s *Service) History(ctx context.Context, handle string) ([]*store.Message, error) {
	contact, err := s.store.GetContactByHandle(ctx, handle)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, contact.ID)
}

// Overview returns the dashboard listing, most recently active first.
func (s *Service) Overview(ctx context.Context) ([]*store.ConversationOverview, error) {
	return s.store.ListConversations(ctx)
}
