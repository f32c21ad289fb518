// ABOUTME: Conversation summary operations on the SQLite store
// ABOUTME: Field-scoped upserts keep intervening and last_updated writers from clobbering each other

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AdvanceSummary moves a contact's summary last_updated forward to the
// given time, creating the row with intervening=false if absent. The
// update is monotonic: an older timestamp never regresses last_updated,
// so concurrent refreshes converge on the true latest message regardless
// of completion order. The intervening field is never touched here.
func (s *SQLiteStore) AdvanceSummary(ctx context.Context, contactID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (contact_id, intervening, last_updated)
		VALUES (?, 0, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			last_updated = excluded.last_updated
		WHERE excluded.last_updated > conversations.last_updated
	`, contactID, formatTime(at))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("advancing summary: %w", err)
	}
	return nil
}

// SetIntervening records whether a human owns the conversation, creating
// the summary row if absent and bumping last_updated. This is the single
// write path for the intervening field. Setting the current value again
// is a no-op success. last_updated stays monotonic via MAX: the string
// comparison is safe because timestamps are stored fixed-width.
func (s *SQLiteStore) SetIntervening(ctx context.Context, contactID string, intervening bool, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (contact_id, intervening, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			intervening = excluded.intervening,
			last_updated = MAX(conversations.last_updated, excluded.last_updated)
	`, contactID, boolToInt(intervening), formatTime(at))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("setting intervening: %w", err)
	}

	s.logger.Debug("set intervening", "contact_id", contactID, "intervening", intervening)
	return nil
}

// GetSummary retrieves the conversation summary for a contact.
// Returns ErrNotFound if no summary row exists yet.
func (s *SQLiteStore) GetSummary(ctx context.Context, contactID string) (*ConversationSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT contact_id, intervening, last_updated
		FROM conversations
		WHERE contact_id = ?
	`, contactID)

	var summary ConversationSummary
	var intervening int
	var lastUpdatedStr string

	err := row.Scan(&summary.ContactID, &intervening, &lastUpdatedStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning summary: %w", err)
	}

	summary.Intervening = intervening != 0
	summary.LastUpdated, err = parseTime(lastUpdatedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_updated: %w", err)
	}
	return &summary, nil
}

// ListConversations returns one overview row per contact that has a
// summary, ordered by last_updated descending (most recently active
// first). Each row carries the contact, the intervening flag, and the
// content of the most recent message, or empty if none exists yet.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*ConversationOverview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.handle, c.display_name, c.last_seen,
		       conv.intervening, conv.last_updated,
		       (SELECT m.content FROM messages m
		        WHERE m.contact_id = c.id
		        ORDER BY m.timestamp DESC, m.id DESC
		        LIMIT 1) AS last_message
		FROM conversations conv
		JOIN contacts c ON c.id = conv.contact_id
		ORDER BY conv.last_updated DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var overviews []*ConversationOverview
	for rows.Next() {
		var o ConversationOverview
		var lastSeenStr, lastUpdatedStr string
		var intervening int
		var lastMessage sql.NullString

		if err := rows.Scan(
			&o.Contact.ID,
			&o.Contact.Handle,
			&o.Contact.DisplayName,
			&lastSeenStr,
			&intervening,
			&lastUpdatedStr,
			&lastMessage,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}

		o.Contact.LastSeen, err = parseTime(lastSeenStr)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		o.Summary.ContactID = o.Contact.ID
		o.Summary.Intervening = intervening != 0
		o.Summary.LastUpdated, err = parseTime(lastUpdatedStr)
		if err != nil {
			return nil, fmt.Errorf("parsing last_updated: %w", err)
		}
		if lastMessage.Valid {
			o.LastMessage = lastMessage.String
		}
		overviews = append(overviews, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return overviews, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
