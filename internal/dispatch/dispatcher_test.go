package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Maxi49/dailymessaging/internal/build"
	"github.com/Maxi49/dailymessaging/internal/journal"
	"github.com/Maxi49/dailymessaging/internal/schedule"
)

// sendCall is one recorded SendMessage invocation.
type sendCall struct {
	recipient string
	text      string
}

type stubTransport struct {
	sendErr error
	calls   []sendCall
}

func (s *stubTransport) Connect(ctx context.Context) error { return nil }
func (s *stubTransport) Disconnect()                       {}

func (s *stubTransport) SendMessage(ctx context.Context, recipient,
	text string) error {

	s.calls = append(s.calls, sendCall{recipient: recipient, text: text})
	return s.sendErr
}

type stubRecorder struct {
	entries []journal.Entry
}

func (s *stubRecorder) RecordDelivery(ctx context.Context,
	entry journal.Entry) error {

	s.entries = append(s.entries, entry)
	return nil
}

func newTestDispatcher(recorder Recorder, pick func(int) int) (*Dispatcher,
	*schedule.Registry) {

	now := time.Date(2026, 1, 2, 22, 29, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	registry := schedule.NewRegistry(
		build.DiscardLogger(), schedule.WithClock(clock),
	)

	d := New(Config{
		Recipient: "5491122334455",
		Messages:  []string{"first", "second", "third"},
		MessageAt: schedule.TimeOfDay{Hour: 22, Minute: 30},
		Zone:      time.UTC,
		Registry:  registry,
		Recorder:  recorder,
		Clock:     clock,
		Pick:      pick,
	}, build.DiscardLogger())

	return d, registry
}

// TestScheduleForTodayArmsMessageSlot checks the message slot is armed for
// the next occurrence of the send time.
func TestScheduleForTodayArmsMessageSlot(t *testing.T) {
	t.Parallel()

	d, registry := newTestDispatcher(nil, nil)

	d.ScheduleForToday(func() {})

	deadline := registry.Deadline(schedule.SlotMessage).UnwrapOr(time.Time{})
	require.Equal(t,
		time.Date(2026, 1, 2, 22, 30, 0, 0, time.UTC), deadline.UTC(),
	)
}

// TestDeliverSendsPickedMessage checks a successful delivery sends exactly
// one pool entry to the configured recipient and records it.
func TestDeliverSendsPickedMessage(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{}
	d, _ := newTestDispatcher(recorder, func(n int) int {
		require.Equal(t, 3, n)
		return 1
	})
	transport := &stubTransport{}

	d.Deliver(context.Background(), transport, true)

	require.Equal(t, []sendCall{
		{recipient: "5491122334455", text: "second"},
	}, transport.calls)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	require.Equal(t, journal.OutcomeSent, entry.Outcome)
	require.Equal(t, "second", entry.Message)
	require.Equal(t, "5491122334455", entry.Recipient)
	require.Empty(t, entry.SendError)
}

// TestDeliverSkipsWhenSessionClosed checks a closed session at fire time
// skips the send entirely and records the skip.
func TestDeliverSkipsWhenSessionClosed(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{}
	d, _ := newTestDispatcher(recorder, nil)
	transport := &stubTransport{}

	d.Deliver(context.Background(), transport, false)

	require.Empty(t, transport.calls, "no send against a closed session")
	require.Len(t, recorder.entries, 1)
	require.Equal(t, journal.OutcomeSkippedClosed, recorder.entries[0].Outcome)
	require.Empty(t, recorder.entries[0].Message)
}

// TestDeliverSkipsWithoutTransport checks a nil transport is treated like
// a closed session even when the state machine still reports open.
func TestDeliverSkipsWithoutTransport(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{}
	d, _ := newTestDispatcher(recorder, nil)

	d.Deliver(context.Background(), nil, true)

	require.Len(t, recorder.entries, 1)
	require.Equal(t, journal.OutcomeSkippedClosed, recorder.entries[0].Outcome)
}

// TestDeliverDoesNotRetryFailedSend checks a transport error is recorded
// and the send is not attempted again.
func TestDeliverDoesNotRetryFailedSend(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{}
	d, _ := newTestDispatcher(recorder, func(n int) int { return 0 })
	transport := &stubTransport{sendErr: errors.New("socket closed")}

	d.Deliver(context.Background(), transport, true)

	require.Len(t, transport.calls, 1, "exactly one attempt")
	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	require.Equal(t, journal.OutcomeTransportError, entry.Outcome)
	require.Equal(t, "socket closed", entry.SendError)
	require.Equal(t, "first", entry.Message)
}

// TestDeliverWithoutRecorder checks the recorder is genuinely optional.
func TestDeliverWithoutRecorder(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(nil, func(n int) int { return 2 })
	transport := &stubTransport{}

	d.Deliver(context.Background(), transport, true)

	require.Equal(t, []sendCall{
		{recipient: "5491122334455", text: "third"},
	}, transport.calls)
}
