package session

import (
	btclog "github.com/btcsuite/btclog/v2"

	"github.com/Maxi49/dailymessaging/internal/schedule"
)

// Machine is the session lifecycle state machine. It is pure bookkeeping:
// ProcessEvent mutates only the state and environment and returns effects
// for the controller to execute. All calls happen on the controller
// goroutine, so no locking is needed.
type Machine struct {
	state State
	env   Environment

	log btclog.Logger
}

// NewMachine creates a machine in the Closed state.
func NewMachine(log btclog.Logger) *Machine {
	return &Machine{
		state: &StateClosed{},
		log:   log,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// IsOpen reports whether the session is currently connected.
func (m *Machine) IsOpen() bool {
	_, ok := m.state.(*StateOpen)
	return ok
}

// Generation returns the current transport generation.
func (m *Machine) Generation() uint64 {
	return m.env.Gen
}

// ProcessEvent runs one event through the machine and returns the effects
// to execute. Events from superseded transport instances are dropped here,
// before they can reach any state.
func (m *Machine) ProcessEvent(ev Event) []Effect {
	if gen, tagged := eventGen(ev); tagged && gen != m.env.Gen {
		m.log.Debugf("Dropping %T from superseded instance "+
			"(gen %d, current %d)", ev, gen, m.env.Gen)
		return nil
	}

	// Credential updates are informational in every state; the
	// transport layer persists them itself.
	if _, ok := ev.(CredentialsUpdated); ok {
		m.log.Debugf("Session credentials updated")
		return nil
	}

	// The message timer means the same thing in every state: hand the
	// send attempt to the dispatcher, which itself verifies the session
	// is still open. This closes the race where the session drops
	// between arming and firing.
	if tf, ok := ev.(TimerFired); ok && tf.Slot == schedule.SlotMessage {
		return []Effect{DeliverMessage{}}
	}

	transition := m.state.process(ev, &m.env)
	if transition == nil {
		m.log.Debugf("Ignoring %T in state %v", ev, m.state)
		return nil
	}

	m.log.Infof("Session state %v -> %v (event %T, reconnect=%v, gen=%d)",
		m.state, transition.NextState, ev, m.env.Reconnect, m.env.Gen)
	m.state = transition.NextState

	return transition.Effects
}
