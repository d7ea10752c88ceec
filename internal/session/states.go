package session

import "github.com/Maxi49/dailymessaging/internal/schedule"

// State is the sealed interface for the session lifecycle states. Each
// state interprets incoming events and returns a transition carrying the
// next state plus the effects to execute. A nil transition means the
// event is ignored in this state.
type State interface {
	// process handles an event in this state.
	process(ev Event, env *Environment) *Transition

	// String returns a human-readable state name.
	String() string

	// isSessionState seals the interface.
	isSessionState()
}

// Transition is the result of processing an event.
type Transition struct {
	NextState State
	Effects   []Effect
}

// Environment holds the machine-wide mutable scheduler state shared across
// transitions: the reconnect policy flag and the transport generation
// counter. It is owned by the machine and only ever touched from the
// controller goroutine.
type Environment struct {
	// Reconnect is true when an open was requested programmatically and
	// false after an intentional close. Consulted on every disconnect
	// to decide whether to reopen.
	Reconnect bool

	// Gen counts transport instances. Events tagged with an older
	// generation come from a superseded instance and are dropped.
	Gen uint64
}

// Ensure all state types implement State.
var (
	_ State = (*StateClosed)(nil)
	_ State = (*StateOpening)(nil)
	_ State = (*StateOpen)(nil)
	_ State = (*StateClosing)(nil)
)

// StateClosed is the initial state: no transport exists. Reached again
// after every disconnect or intentional close.
type StateClosed struct{}

func (*StateClosed) isSessionState() {}
func (*StateClosed) String() string  { return "closed" }

func (s *StateClosed) process(ev Event, env *Environment) *Transition {
	switch e := ev.(type) {
	case OpenRequested:
		return openTransition(env)

	case TimerFired:
		if e.Slot == schedule.SlotOpen {
			return openTransition(env)
		}
		return nil

	default:
		// Close requests and late events for the current generation
		// are no-ops while closed.
		return nil
	}
}

// StateOpening means a transport instance exists and is connecting.
type StateOpening struct{}

func (*StateOpening) isSessionState() {}
func (*StateOpening) String() string  { return "opening" }

func (s *StateOpening) process(ev Event, env *Environment) *Transition {
	switch e := ev.(type) {
	case ConnectionOpened:
		return &Transition{
			NextState: &StateOpen{},
			Effects: []Effect{
				ScheduleDailyMessage{},
				ArmCloseTimerIfNear{},
			},
		}

	case ConnectionClosed:
		return disconnectTransition(e.Reason, env)

	case CloseRequested:
		// A close while still connecting tears down the in-flight
		// attempt; the generation guard disposes of whatever the
		// superseded instance still emits.
		return closeTransition(env)

	case TimerFired:
		if e.Slot == schedule.SlotClose {
			return closeTransition(env)
		}
		return nil

	default:
		// Duplicate open requests return the in-flight attempt.
		return nil
	}
}

// StateOpen means the session is connected and authenticated.
type StateOpen struct{}

func (*StateOpen) isSessionState() {}
func (*StateOpen) String() string  { return "open" }

func (s *StateOpen) process(ev Event, env *Environment) *Transition {
	switch e := ev.(type) {
	case ConnectionClosed:
		return disconnectTransition(e.Reason, env)

	case CloseRequested:
		return closeTransition(env)

	case TimerFired:
		if e.Slot == schedule.SlotClose {
			return closeTransition(env)
		}
		return nil

	default:
		return nil
	}
}

// StateClosing means an intentional close is in progress: the reconnect
// flag is already false and the transport is being detached.
type StateClosing struct{}

func (*StateClosing) isSessionState() {}
func (*StateClosing) String() string  { return "closing" }

func (s *StateClosing) process(ev Event, env *Environment) *Transition {
	switch ev.(type) {
	case transportDetached:
		return &Transition{
			NextState: &StateClosed{},
			Effects:   []Effect{ArmOpenTimer{}},
		}

	default:
		// The detach itself makes the transport emit a close event;
		// it must not be mistaken for an unexpected disconnect.
		return nil
	}
}

// openTransition starts a fresh transport generation. Requesting an open
// always re-enables the reconnect policy.
func openTransition(env *Environment) *Transition {
	env.Reconnect = true
	env.Gen++

	return &Transition{
		NextState: &StateOpening{},
		Effects:   []Effect{StartTransport{Gen: env.Gen}},
	}
}

// closeTransition begins an intentional close: reconnect suppressed, timers
// for this cycle cancelled, transport detached. The controller feeds
// transportDetached back in once the disconnect completed.
func closeTransition(env *Environment) *Transition {
	env.Reconnect = false

	return &Transition{
		NextState: &StateClosing{},
		Effects: []Effect{
			CancelTimer{Slot: schedule.SlotMessage},
			CancelTimer{Slot: schedule.SlotClose},
			DetachTransport{},
		},
	}
}

// disconnectTransition handles an unexpected connection loss. Pending
// timers are always cancelled; whether a reconnect follows depends on the
// disconnect reason and the reconnect policy.
func disconnectTransition(reason DisconnectReason,
	env *Environment) *Transition {

	if reason != ReasonLoggedOut && env.Reconnect {
		env.Gen++

		return &Transition{
			NextState: &StateOpening{},
			Effects: []Effect{
				CancelAllTimers{},
				StartTransport{Gen: env.Gen},
			},
		}
	}

	return &Transition{
		NextState: &StateClosed{},
		Effects:   []Effect{CancelAllTimers{}},
	}
}
