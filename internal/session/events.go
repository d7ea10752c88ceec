package session

import "github.com/Maxi49/dailymessaging/internal/schedule"

// Event is the sealed interface for everything the session state machine
// reacts to: scheduler commands, timer firings and transport events. All
// events are processed sequentially by the controller goroutine.
type Event interface {
	// isSessionEvent seals the interface.
	isSessionEvent()
}

// Ensure all event types implement Event.
func (OpenRequested) isSessionEvent()      {}
func (CloseRequested) isSessionEvent()     {}
func (ConnectionOpened) isSessionEvent()   {}
func (ConnectionClosed) isSessionEvent()   {}
func (CredentialsUpdated) isSessionEvent() {}
func (TimerFired) isSessionEvent()         {}
func (transportDetached) isSessionEvent()  {}

// OpenRequested asks the machine to open a session. Issued by the
// orchestrator at startup and by the daily open timer.
type OpenRequested struct{}

// CloseRequested asks the machine to close the session intentionally,
// suppressing the reconnect that would follow an unexpected disconnect.
type CloseRequested struct{}

// ConnectionOpened reports that transport instance Gen connected.
type ConnectionOpened struct {
	Gen uint64
}

// ConnectionClosed reports that transport instance Gen disconnected.
type ConnectionClosed struct {
	Gen    uint64
	Reason DisconnectReason
}

// CredentialsUpdated reports that instance Gen persisted fresh
// credentials. Informational only; the transport layer stores them.
type CredentialsUpdated struct {
	Gen uint64
}

// TimerFired reports that the timer in the given slot fired.
type TimerFired struct {
	Slot schedule.Slot
}

// transportDetached is fed back by the controller once the intentional
// disconnect of a CloseRequested has completed, moving Closing to Closed.
type transportDetached struct{}

// eventGen extracts the generation tag from transport-originated events.
// The second return is false for events that carry no generation.
func eventGen(ev Event) (uint64, bool) {
	switch e := ev.(type) {
	case ConnectionOpened:
		return e.Gen, true
	case ConnectionClosed:
		return e.Gen, true
	case CredentialsUpdated:
		return e.Gen, true
	default:
		return 0, false
	}
}
