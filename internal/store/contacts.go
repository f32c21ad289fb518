// ABOUTME: Contact registry operations on the SQLite store
// ABOUTME: Race-safe upsert by handle plus lookup and last_seen maintenance

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnsureContact returns the contact for the given handle, creating it if
// it does not exist. The upsert is insert-or-ignore on the handle's
// unique constraint followed by a read, so concurrent first-contact with
// the same handle yields exactly one row and every caller observes it.
// An existing contact is returned unchanged: a later displayName does
// not overwrite the stored one.
func (s *SQLiteStore) EnsureContact(ctx context.Context, handle, displayName string) (*Contact, error) {
	id := uuid.New().String()
	now := formatTime(time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, handle, display_name, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(handle) DO NOTHING
	`, id, handle, displayName, now)
	if err != nil {
		return nil, fmt.Errorf("upserting contact: %w", err)
	}

	contact, err := s.GetContactByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("reading contact after upsert: %w", err)
	}

	if contact.ID == id {
		s.logger.Debug("created contact", "id", id, "handle", handle)
	}
	return contact, nil
}

// GetContactByHandle retrieves a contact by its handle.
// Returns ErrNotFound if no contact exists for the handle.
func (s *SQLiteStore) GetContactByHandle(ctx context.Context, handle string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, handle, display_name, last_seen
		FROM contacts
		WHERE handle = ?
	`, handle)
	return scanContact(row)
}

func scanContact(row *sql.Row) (*Contact, error) {
	var c Contact
	var lastSeenStr string

	err := row.Scan(&c.ID, &c.Handle, &c.DisplayName, &lastSeenStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning contact: %w", err)
	}

	c.LastSeen, err = parseTime(lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	return &c, nil
}

// TouchContactLastSeen records observed activity for a contact.
// Returns ErrNotFound if the contact doesn't exist.
func (s *SQLiteStore) TouchContactLastSeen(ctx context.Context, contactID string, seen time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET last_seen = ?
		WHERE id = ?
	`, formatTime(seen), contactID)
	if err != nil {
		return fmt.Errorf("updating last_seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
