package session

import "github.com/Maxi49/dailymessaging/internal/schedule"

// Effect is the sealed interface for side effects emitted by state
// transitions. The machine itself stays pure; the controller executes the
// effects after each transition.
type Effect interface {
	// isSessionEffect seals the interface.
	isSessionEffect()
}

// Ensure all effect types implement Effect.
func (StartTransport) isSessionEffect()      {}
func (DetachTransport) isSessionEffect()     {}
func (ArmOpenTimer) isSessionEffect()        {}
func (ArmCloseTimerIfNear) isSessionEffect() {}
func (ScheduleDailyMessage) isSessionEffect() {}
func (CancelTimer) isSessionEffect()         {}
func (CancelAllTimers) isSessionEffect()     {}
func (DeliverMessage) isSessionEffect()      {}

// StartTransport creates a fresh transport instance with the given
// generation and starts connecting it.
type StartTransport struct {
	Gen uint64
}

// DetachTransport disconnects the current transport non-destructively,
// preserving credentials for the next open.
type DetachTransport struct{}

// ArmOpenTimer arms the open slot for the next occurrence of the
// configured open time.
type ArmOpenTimer struct{}

// ArmCloseTimerIfNear arms the close slot, but only when the close
// deadline is near enough. The guard prevents arming a close timer for
// tomorrow right after an out-of-window open (e.g. the startup open).
type ArmCloseTimerIfNear struct{}

// ScheduleDailyMessage asks the dispatcher to arm the message slot for
// today's send time.
type ScheduleDailyMessage struct{}

// CancelTimer cancels the timer in one slot.
type CancelTimer struct {
	Slot schedule.Slot
}

// CancelAllTimers cancels every pending timer. Emitted when the session
// closes through an event the scheduler did not initiate, so stale timers
// cannot fire against a transport that no longer exists.
type CancelAllTimers struct{}

// DeliverMessage hands the fired message timer to the dispatcher, which
// checks the session is still open before sending.
type DeliverMessage struct{}
