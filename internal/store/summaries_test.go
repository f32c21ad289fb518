// ABOUTME: Tests for conversation summary operations
// ABOUTME: Covers monotonic last_updated, field-scoped writers, and listing order

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func TestAdvanceSummary_CreatesRow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+15551234", "")
	require.NoError(t, err)

	at := mustParse(t, "2025-06-01T12:00:00Z")
	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, at))

	summary, err := store.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.False(t, summary.Intervening)
	assert.True(t, summary.LastUpdated.Equal(at))
}

func TestAdvanceSummary_NeverRegresses(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+15551234", "")
	require.NoError(t, err)

	t1 := mustParse(t, "2025-06-01T12:00:01Z")
	t2 := mustParse(t, "2025-06-01T12:00:02Z")

	// Out-of-order completion: the refresh for the newer message lands first
	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, t2))
	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, t1))

	summary, err := store.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, summary.LastUpdated.Equal(t2), "last_updated regressed to %v", summary.LastUpdated)
}

func TestAdvanceSummary_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+15551234", "")
	require.NoError(t, err)

	at := mustParse(t, "2025-06-01T12:00:00Z")
	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, at))
	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, at))

	summary, err := store.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, summary.LastUpdated.Equal(at))
}

func TestAdvanceSummary_PreservesIntervening(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+15551234", "")
	require.NoError(t, err)

	require.NoError(t, store.SetIntervening(ctx, contact.ID, true, mustParse(t, "2025-06-01T12:00:00Z")))
	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, mustParse(t, "2025-06-01T12:00:05Z")))

	summary, err := store.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, summary.Intervening, "refresh must not clear the intervening flag")
}

func TestSetIntervening_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+15551234", "")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.SetIntervening(ctx, contact.ID, true, now))
	require.NoError(t, store.SetIntervening(ctx, contact.ID, true, now))

	summary, err := store.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, summary.Intervening)
}

func TestSetIntervening_PreservesLastUpdated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+15551234", "")
	require.NoError(t, err)

	newer := mustParse(t, "2025-06-01T12:00:10Z")
	older := mustParse(t, "2025-06-01T12:00:00Z")

	require.NoError(t, store.AdvanceSummary(ctx, contact.ID, newer))
	// A toggle carrying an older clock reading must not move last_updated backward
	require.NoError(t, store.SetIntervening(ctx, contact.ID, true, older))

	summary, err := store.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, summary.Intervening)
	assert.True(t, summary.LastUpdated.Equal(newer))
}

func TestGetSummary_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetSummary(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations_OrderAndContent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ann, err := store.EnsureContact(ctx, "+1555", "Ann")
	require.NoError(t, err)
	bob, err := store.EnsureContact(ctx, "+1666", "Bob")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, ann.ID, SenderClient, KindText, "hi from ann")
	require.NoError(t, err)
	require.NoError(t, store.AdvanceSummary(ctx, ann.ID, mustParse(t, "2025-06-01T12:00:00Z")))

	_, err = store.AppendMessage(ctx, bob.ID, SenderClient, KindText, "hi from bob")
	require.NoError(t, err)
	require.NoError(t, store.AdvanceSummary(ctx, bob.ID, mustParse(t, "2025-06-01T13:00:00Z")))

	overviews, err := store.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, overviews, 2)

	// Most recently active first
	assert.Equal(t, "+1666", overviews[0].Contact.Handle)
	assert.Equal(t, "hi from bob", overviews[0].LastMessage)
	assert.Equal(t, "+1555", overviews[1].Contact.Handle)
	assert.Equal(t, "hi from ann", overviews[1].LastMessage)
}

func TestListConversations_SummaryWithoutMessages(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contact, err := store.EnsureContact(ctx, "+1555", "Ann")
	require.NoError(t, err)
	require.NoError(t, store.SetIntervening(ctx, contact.ID, true, time.Now()))

	overviews, err := store.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, overviews, 1)

	assert.True(t, overviews[0].Summary.Intervening)
	assert.Empty(t, overviews[0].LastMessage)
}

func TestListConversations_Empty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	overviews, err := store.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, overviews)
}
