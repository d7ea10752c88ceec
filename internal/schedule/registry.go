package schedule

import (
	"sync"
	"time"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Slot names one position in the daily schedule. Each slot holds at most
// one pending timer at any moment.
type Slot uint8

const (
	// SlotOpen fires when the session should be opened for the day.
	SlotOpen Slot = iota

	// SlotMessage fires when the daily message should be sent.
	SlotMessage

	// SlotClose fires when the session should be torn down for the day.
	SlotClose
)

// String returns the slot name used in log lines.
func (s Slot) String() string {
	switch s {
	case SlotOpen:
		return "open"
	case SlotMessage:
		return "message"
	case SlotClose:
		return "close"
	default:
		return "unknown"
	}
}

// armedTimer pairs a live timer handle with the deadline it was armed for.
type armedTimer struct {
	timer    *time.Timer
	deadline time.Time
}

// Registry owns the pending timers, one per slot. Arming a slot always
// cancels whatever was armed there before, so a stale timer from a
// previous day's cycle can never fire alongside a fresh one. Callers never
// hold timer handles themselves; they only arm and cancel by slot.
type Registry struct {
	mu    sync.Mutex
	slots map[Slot]*armedTimer

	clock func() time.Time
	log   btclog.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the registry's clock. Tests use this to pin
// deadlines.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// NewRegistry creates an empty timer registry.
func NewRegistry(log btclog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		slots: make(map[Slot]*armedTimer),
		clock: time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Arm schedules fn to run after delay in the given slot, cancelling any
// timer already armed there. A zero delay fires immediately.
func (r *Registry) Arm(slot Slot, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.slots[slot]; ok {
		prev.timer.Stop()
		r.log.Debugf("Replacing %s timer previously armed for %v",
			slot, prev.deadline)
	}

	deadline := r.clock().Add(delay)
	r.slots[slot] = &armedTimer{
		timer:    time.AfterFunc(delay, fn),
		deadline: deadline,
	}

	r.log.Infof("Armed %s timer: fires in %v", slot,
		delay.Round(time.Second))
}

// Cancel stops the timer in the given slot, if any. Cancelling an empty
// slot is a no-op.
func (r *Registry) Cancel(slot Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(slot)
}

// CancelAll stops every pending timer. Invoked when the session closes
// unexpectedly so nothing fires against a transport that no longer exists.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for slot := range r.slots {
		r.cancelLocked(slot)
	}
}

// Deadline returns the deadline the slot's timer is armed for, or None if
// the slot is empty.
func (r *Registry) Deadline(slot Slot) fn.Option[time.Time] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if armed, ok := r.slots[slot]; ok {
		return fn.Some(armed.deadline)
	}

	return fn.None[time.Time]()
}

func (r *Registry) cancelLocked(slot Slot) {
	armed, ok := r.slots[slot]
	if !ok {
		return
	}

	armed.timer.Stop()
	delete(r.slots, slot)

	r.log.Infof("Cancelled %s timer (was armed for %v)", slot,
		armed.deadline)
}
