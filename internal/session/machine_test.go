package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Maxi49/dailymessaging/internal/build"
	"github.com/Maxi49/dailymessaging/internal/schedule"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	return NewMachine(build.DiscardLogger())
}

// open walks a fresh machine into the Open state and returns it.
func openMachine(t *testing.T) *Machine {
	t.Helper()

	m := newTestMachine(t)
	m.ProcessEvent(OpenRequested{})
	m.ProcessEvent(ConnectionOpened{Gen: m.Generation()})
	require.True(t, m.IsOpen())

	return m
}

// TestOpenRequestStartsTransport checks that an open request bumps the
// generation, enables reconnect and emits a StartTransport for the new
// generation.
func TestOpenRequestStartsTransport(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	require.Equal(t, "closed", m.State().String())

	effects := m.ProcessEvent(OpenRequested{})

	require.Equal(t, "opening", m.State().String())
	require.Equal(t, uint64(1), m.Generation())
	require.Equal(t, []Effect{StartTransport{Gen: 1}}, effects)
	require.True(t, m.env.Reconnect)
}

// TestOpenTimerOpensFromClosed checks the daily open timer behaves like an
// explicit open request.
func TestOpenTimerOpensFromClosed(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	effects := m.ProcessEvent(TimerFired{Slot: schedule.SlotOpen})

	require.Equal(t, "opening", m.State().String())
	require.Equal(t, []Effect{StartTransport{Gen: 1}}, effects)
}

// TestConnectionOpenedSchedulesCycle checks that a successful connection
// schedules the daily message and conditionally arms the close timer.
func TestConnectionOpenedSchedulesCycle(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	m.ProcessEvent(OpenRequested{})

	effects := m.ProcessEvent(ConnectionOpened{Gen: 1})

	require.True(t, m.IsOpen())
	require.Equal(t, []Effect{
		ScheduleDailyMessage{},
		ArmCloseTimerIfNear{},
	}, effects)
}

// TestIntentionalCloseSuppressesReconnect checks the full close sequence:
// message and close timers cancelled, transport detached, reconnect flag
// cleared, and the open timer re-armed once the detach completes. The
// close event the detach provokes must not trigger a reconnect.
func TestIntentionalCloseSuppressesReconnect(t *testing.T) {
	t.Parallel()

	m := openMachine(t)

	effects := m.ProcessEvent(CloseRequested{})
	require.Equal(t, "closing", m.State().String())
	require.False(t, m.env.Reconnect)
	require.Equal(t, []Effect{
		CancelTimer{Slot: schedule.SlotMessage},
		CancelTimer{Slot: schedule.SlotClose},
		DetachTransport{},
	}, effects)

	// The detach makes the transport emit a disconnect for the current
	// generation; while closing it must be ignored.
	effects = m.ProcessEvent(ConnectionClosed{
		Gen:    m.Generation(),
		Reason: ReasonOther,
	})
	require.Nil(t, effects)
	require.Equal(t, "closing", m.State().String())

	effects = m.ProcessEvent(transportDetached{})
	require.Equal(t, "closed", m.State().String())
	require.Equal(t, []Effect{ArmOpenTimer{}}, effects)
}

// TestCloseTimerClosesSession checks the daily close timer triggers the
// same sequence as an explicit close request.
func TestCloseTimerClosesSession(t *testing.T) {
	t.Parallel()

	m := openMachine(t)

	effects := m.ProcessEvent(TimerFired{Slot: schedule.SlotClose})
	require.Equal(t, "closing", m.State().String())
	require.Contains(t, effects, DetachTransport{})
}

// TestUnexpectedDisconnectReconnects checks that a mid-session connection
// loss cancels all timers and immediately starts a fresh transport
// generation.
func TestUnexpectedDisconnectReconnects(t *testing.T) {
	t.Parallel()

	m := openMachine(t)
	gen := m.Generation()

	effects := m.ProcessEvent(ConnectionClosed{
		Gen:    gen,
		Reason: ReasonOther,
	})

	require.Equal(t, "opening", m.State().String())
	require.Equal(t, gen+1, m.Generation())
	require.Equal(t, []Effect{
		CancelAllTimers{},
		StartTransport{Gen: gen + 1},
	}, effects)
}

// TestLoggedOutDoesNotReconnect checks that a terminal logout ends the
// session without a reconnect attempt, even though reconnect was enabled.
func TestLoggedOutDoesNotReconnect(t *testing.T) {
	t.Parallel()

	m := openMachine(t)
	require.True(t, m.env.Reconnect)

	effects := m.ProcessEvent(ConnectionClosed{
		Gen:    m.Generation(),
		Reason: ReasonLoggedOut,
	})

	require.Equal(t, "closed", m.State().String())
	require.Equal(t, []Effect{CancelAllTimers{}}, effects)
}

// TestDisconnectWhileOpeningReconnects checks that a connection attempt
// failing mid-handshake is retried like any unexpected disconnect.
func TestDisconnectWhileOpeningReconnects(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	m.ProcessEvent(OpenRequested{})

	effects := m.ProcessEvent(ConnectionClosed{
		Gen:    1,
		Reason: ReasonOther,
	})

	require.Equal(t, "opening", m.State().String())
	require.Equal(t, uint64(2), m.Generation())
	require.Contains(t, effects, StartTransport{Gen: 2})
}

// TestCloseWhileOpeningAborts checks that a close request during the
// connection attempt tears the attempt down instead of waiting for it.
func TestCloseWhileOpeningAborts(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	m.ProcessEvent(OpenRequested{})

	effects := m.ProcessEvent(CloseRequested{})
	require.Equal(t, "closing", m.State().String())
	require.Contains(t, effects, DetachTransport{})
	require.False(t, m.env.Reconnect)
}

// TestStaleGenerationEventsDropped checks that events from a superseded
// transport instance never reach the states.
func TestStaleGenerationEventsDropped(t *testing.T) {
	t.Parallel()

	m := openMachine(t)
	gen := m.Generation()

	// Force a reconnect so gen advances and the old instance becomes
	// stale.
	m.ProcessEvent(ConnectionClosed{Gen: gen, Reason: ReasonOther})
	require.Equal(t, gen+1, m.Generation())

	// The superseded instance reporting anything is a no-op.
	require.Nil(t, m.ProcessEvent(ConnectionOpened{Gen: gen}))
	require.Nil(t, m.ProcessEvent(ConnectionClosed{
		Gen:    gen,
		Reason: ReasonLoggedOut,
	}))
	require.Equal(t, "opening", m.State().String())

	// The current instance still works.
	m.ProcessEvent(ConnectionOpened{Gen: gen + 1})
	require.True(t, m.IsOpen())
}

// TestMessageTimerDeliversInAnyState checks the message timer always maps
// to a DeliverMessage effect; the dispatcher decides whether a send is
// possible.
func TestMessageTimerDeliversInAnyState(t *testing.T) {
	t.Parallel()

	fire := TimerFired{Slot: schedule.SlotMessage}

	closed := newTestMachine(t)
	require.Equal(t, []Effect{DeliverMessage{}}, closed.ProcessEvent(fire))
	require.Equal(t, "closed", closed.State().String())

	open := openMachine(t)
	require.Equal(t, []Effect{DeliverMessage{}}, open.ProcessEvent(fire))
	require.True(t, open.IsOpen())
}

// TestDuplicateOpenIgnoredWhileOpening checks a second open request does
// not spawn a second transport.
func TestDuplicateOpenIgnoredWhileOpening(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	m.ProcessEvent(OpenRequested{})
	gen := m.Generation()

	require.Nil(t, m.ProcessEvent(OpenRequested{}))
	require.Equal(t, gen, m.Generation())
}

// TestCredentialsUpdatedIsInformational checks credential updates change
// nothing.
func TestCredentialsUpdatedIsInformational(t *testing.T) {
	t.Parallel()

	m := openMachine(t)
	require.Nil(t, m.ProcessEvent(CredentialsUpdated{Gen: m.Generation()}))
	require.True(t, m.IsOpen())
}

// TestReconnectFlagSurvivesReconnectCycle checks the policy stays enabled
// across an automatic reconnect, so repeated drops keep reconnecting until
// an intentional close.
func TestReconnectFlagSurvivesReconnectCycle(t *testing.T) {
	t.Parallel()

	m := openMachine(t)

	for i := 0; i < 3; i++ {
		m.ProcessEvent(ConnectionClosed{
			Gen:    m.Generation(),
			Reason: ReasonOther,
		})
		require.Equal(t, "opening", m.State().String())
		require.True(t, m.env.Reconnect)

		m.ProcessEvent(ConnectionOpened{Gen: m.Generation()})
		require.True(t, m.IsOpen())
	}
}
