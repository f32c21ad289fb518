// ABOUTME: Tests for the conversation service
// ABOUTME: Covers the send outcome contract, ingestion, intervention, and the takeover flow end to end

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tether-ops/tether/internal/store"
)

// fakeRelay records delivery attempts and fails on demand.
type fakeRelay struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeRelay) Deliver(ctx context.Context, handle, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, handle+":"+content)
	return f.err
}

func (f *fakeRelay) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func setupService(t *testing.T) (*Service, *store.SQLiteStore, *fakeRelay) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rl := &fakeRelay{}
	return New(st, rl, nil), st, rl
}

func TestSend_Delivered(t *testing.T) {
	svc, st, rl := setupService(t)
	ctx := context.Background()

	result, err := svc.Send(ctx, "+1555", "hi")
	require.NoError(t, err)

	assert.Equal(t, OutcomeDelivered, result.Outcome)
	require.NotNil(t, result.Message)
	assert.Equal(t, store.SenderHuman, result.Message.Sender)
	assert.Equal(t, 1, rl.callCount())

	// The contact was created implicitly and the summary row exists
	contact, err := st.GetContactByHandle(ctx, "+1555")
	require.NoError(t, err)
	summary, err := st.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.False(t, summary.Intervening)
}

func TestSend_RelayFailureKeepsRecord(t *testing.T) {
	svc, _, rl := setupService(t)
	rl.err = errors.New("engine unreachable")
	ctx := context.Background()

	result, err := svc.Send(ctx, "+1555", "hi")
	require.NoError(t, err)

	assert.Equal(t, OutcomeRecorded, result.Outcome)
	assert.Contains(t, result.Reason, "engine unreachable")
	require.NotNil(t, result.Message)

	// The transcript must still contain the message
	history, err := svc.History(ctx, "+1555")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.SenderHuman, history[0].Sender)
	assert.Equal(t, "hi", history[0].Content)
}

func TestSend_RejectedBeforeAnyWrite(t *testing.T) {
	svc, st, rl := setupService(t)
	ctx := context.Background()

	for _, tc := range []struct{ handle, content string }{
		{"", "hi"},
		{"+1555", ""},
	} {
		result, err := svc.Send(ctx, tc.handle, tc.content)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, result.Outcome)
		assert.NotEmpty(t, result.Reason)
		assert.Nil(t, result.Message)
	}

	assert.Equal(t, 0, rl.callCount())
	_, err := st.GetContactByHandle(ctx, "+1555")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIngest(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	msg, err := svc.Ingest(ctx, InboundMessage{
		Handle:      "+1555",
		DisplayName: "Ana",
		Sender:      store.SenderClient,
		Content:     "hola",
	})
	require.NoError(t, err)
	assert.Equal(t, store.KindText, msg.Kind)

	contact, err := st.GetContactByHandle(ctx, "+1555")
	require.NoError(t, err)
	assert.Equal(t, "Ana", contact.DisplayName)
	assert.False(t, contact.LastSeen.IsZero())

	summary, err := st.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.False(t, summary.LastUpdated.Before(msg.Timestamp))
}

func TestIngest_InvalidSender(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, InboundMessage{Handle: "+1555", Sender: store.SenderHuman, Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ingest(ctx, InboundMessage{Handle: "+1555", Sender: "robot", Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetIntervening(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, InboundMessage{Handle: "+1555", Sender: store.SenderClient, Content: "hola"})
	require.NoError(t, err)

	summary, err := svc.SetIntervening(ctx, "+1555", true)
	require.NoError(t, err)
	assert.True(t, summary.Intervening)

	// Idempotent: setting the current value again succeeds
	summary, err = svc.SetIntervening(ctx, "+1555", true)
	require.NoError(t, err)
	assert.True(t, summary.Intervening)

	summary, err = svc.SetIntervening(ctx, "+1555", false)
	require.NoError(t, err)
	assert.False(t, summary.Intervening)
}

func TestSetIntervening_UnknownHandle(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.SetIntervening(ctx, "+1999", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHistory_UnknownHandleEmpty(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	history, err := svc.History(ctx, "+1999")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRefreshSummary_NoMessagesNoop(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	contact, err := st.EnsureContact(ctx, "+1555", "")
	require.NoError(t, err)

	require.NoError(t, svc.RefreshSummary(ctx, contact.ID))
	_, err = st.GetSummary(ctx, contact.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReconcileSummaries_RepairsStaleSummary(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	// A summary row stuck in the past, then a store-level append that
	// never got its refresh (the crash-between-writes shape).
	contact, err := st.EnsureContact(ctx, "+1555", "")
	require.NoError(t, err)
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, st.SetIntervening(ctx, contact.ID, true, stale))

	msg, err := st.AppendMessage(ctx, contact.ID, store.SenderClient, store.KindText, "hola")
	require.NoError(t, err)

	before, err := st.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	require.True(t, before.LastUpdated.Before(msg.Timestamp), "summary should start stale")

	require.NoError(t, svc.ReconcileSummaries(ctx))

	after, err := st.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.False(t, after.LastUpdated.Before(msg.Timestamp))
	assert.True(t, after.Intervening, "reconciliation must not touch intervening")

	// Idempotent: a second pass changes nothing.
	require.NoError(t, svc.ReconcileSummaries(ctx))
	again, err := st.GetSummary(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, after.LastUpdated, again.LastUpdated)
}

func TestReconcileSummaries_EmptyStore(t *testing.T) {
	svc, _, _ := setupService(t)
	require.NoError(t, svc.ReconcileSummaries(context.Background()))
}

func TestTakeoverFlow(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	// Unseen contact: sending creates it and delivers
	result, err := svc.Send(ctx, "+44", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, result.Outcome)

	overviews, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	assert.Equal(t, "+44", overviews[0].Contact.Handle)
	assert.Equal(t, "hello", overviews[0].LastMessage)
	assert.False(t, overviews[0].Summary.Intervening)

	// Operator takes over
	_, err = svc.SetIntervening(ctx, "+44", true)
	require.NoError(t, err)

	overviews, err = svc.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	assert.True(t, overviews[0].Summary.Intervening)

	// Second message appends in order
	result, err = svc.Send(ctx, "+44", "bye")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, result.Outcome)

	history, err := svc.History(ctx, "+44")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "bye", history[1].Content)
	for _, msg := range history {
		assert.Equal(t, store.SenderHuman, msg.Sender)
	}
}
