// Package dispatch sends the daily message: it arms the message timer and,
// when the timer lands, picks one entry from the pool and pushes it
// through the open session. Delivery is at-most-once per day, best
// effort: a failed send is logged and recorded, never retried.
package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	btclog "github.com/btcsuite/btclog/v2"

	"github.com/Maxi49/dailymessaging/internal/journal"
	"github.com/Maxi49/dailymessaging/internal/schedule"
	"github.com/Maxi49/dailymessaging/internal/session"
)

// Recorder persists delivery outcomes. Satisfied by *journal.Store.
type Recorder interface {
	RecordDelivery(ctx context.Context, entry journal.Entry) error
}

// Config carries the dispatcher's immutable parameters.
type Config struct {
	// Recipient is the fixed recipient identifier.
	Recipient string

	// Messages is the pool the daily message is drawn from.
	Messages []string

	// MessageAt is the local send time in Zone.
	MessageAt schedule.TimeOfDay

	// Zone is the fixed-offset target timezone.
	Zone *time.Location

	// Registry arms the message slot.
	Registry *schedule.Registry

	// Recorder persists outcomes. Optional.
	Recorder Recorder

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	// Pick overrides the uniform random pool index for tests.
	Pick func(n int) int
}

// Dispatcher implements the session controller's MessageDispatcher.
type Dispatcher struct {
	cfg Config
	log btclog.Logger
}

// New creates a dispatcher.
func New(cfg Config, log btclog.Logger) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.IntN
	}

	return &Dispatcher{
		cfg: cfg,
		log: log,
	}
}

// ScheduleForToday arms the message timer for the next occurrence of the
// send time. Arming replaces any previously armed message timer, so an
// open following a reconnect cannot produce a duplicate send.
func (d *Dispatcher) ScheduleForToday(onFire func()) {
	now := d.cfg.Clock()
	delay := d.cfg.MessageAt.UntilNext(now, d.cfg.Zone)
	deadline := now.Add(delay).In(d.cfg.Zone)

	d.log.Infof("Message scheduled for %v",
		deadline.Format("2006-01-02 15:04:05 MST"))

	d.cfg.Registry.Arm(schedule.SlotMessage, delay, onFire)
}

// Deliver attempts today's send. The sessionOpen flag reflects the state
// machine at the moment the timer fired; when false the session dropped
// between arming and firing, and the attempt is recorded as skipped
// without touching the transport.
func (d *Dispatcher) Deliver(ctx context.Context, transport session.Transport,
	sessionOpen bool) {

	now := d.cfg.Clock()

	if !sessionOpen || transport == nil {
		d.log.Warnf("Session not open at send time, skipping "+
			"today's message (%v)",
			now.In(d.cfg.Zone).Format("15:04:05 MST"))
		d.record(ctx, "", journal.OutcomeSkippedClosed, "")
		return
	}

	message := d.cfg.Messages[d.cfg.Pick(len(d.cfg.Messages))]

	if err := transport.SendMessage(ctx, d.cfg.Recipient, message); err != nil {
		// At-most-once: the failure is recorded and the daily cycle
		// carries on.
		d.log.Errorf("Send to %s failed: %v", d.cfg.Recipient, err)
		d.record(ctx, message, journal.OutcomeTransportError,
			err.Error())
		return
	}

	d.log.Infof("Message sent to %s at %v", d.cfg.Recipient,
		now.In(d.cfg.Zone).Format("2006-01-02 15:04:05 MST"))
	d.record(ctx, message, journal.OutcomeSent, "")
}

func (d *Dispatcher) record(ctx context.Context, message string,
	outcome journal.Outcome, sendErr string) {

	if d.cfg.Recorder == nil {
		return
	}

	entry := journal.Entry{
		Recipient: d.cfg.Recipient,
		Message:   message,
		Outcome:   outcome,
		SendError: sendErr,
		SentAt:    d.cfg.Clock(),
	}
	if err := d.cfg.Recorder.RecordDelivery(ctx, entry); err != nil {
		d.log.Errorf("Unable to record delivery outcome: %v", err)
	}
}
