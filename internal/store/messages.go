// ABOUTME: Append-only message log operations on the SQLite store
// ABOUTME: Assigns monotonic IDs and keeps (timestamp, id) total ordering

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendMessage inserts a message for the contact, assigning its ID and
// timestamp. Messages are never mutated or deleted afterwards.
// Returns ErrNotFound if the contact doesn't exist.
func (s *SQLiteStore) AppendMessage(ctx context.Context, contactID, sender, kind, content string) (*Message, error) {
	now := time.Now()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (contact_id, sender, kind, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, contactID, sender, kind, content, formatTime(now))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}

	s.logger.Debug("appended message", "id", id, "contact_id", contactID, "sender", sender)
	return &Message{
		ID:        id,
		ContactID: contactID,
		Sender:    sender,
		Kind:      kind,
		Content:   content,
		Timestamp: now.UTC(),
	}, nil
}

// ListMessages retrieves all messages for a contact in chronological
// order, ties broken by ascending ID. A contact with no messages (or an
// unknown contact) yields an empty slice, not an error.
func (s *SQLiteStore) ListMessages(ctx context.Context, contactID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_id, sender, kind, content, timestamp
		FROM messages
		WHERE contact_id = ?
		ORDER BY timestamp ASC, id ASC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var timestampStr string

		if err := rows.Scan(&msg.ID, &msg.ContactID, &msg.Sender, &msg.Kind, &msg.Content, &timestampStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Timestamp, err = parseTime(timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// LatestMessage retrieves the most recent message for a contact by
// (timestamp, id). Returns ErrNotFound if the contact has no messages.
func (s *SQLiteStore) LatestMessage(ctx context.Context, contactID string) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, contact_id, sender, kind, content, timestamp
		FROM messages
		WHERE contact_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, contactID)

	var msg Message
	var timestampStr string

	err := row.Scan(&msg.ID, &msg.ContactID, &msg.Sender, &msg.Kind, &msg.Content, &timestampStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning latest message: %w", err)
	}

	msg.Timestamp, err = parseTime(timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing message timestamp: %w", err)
	}
	return &msg, nil
}
