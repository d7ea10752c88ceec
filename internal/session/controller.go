package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	btclog "github.com/btcsuite/btclog/v2"

	"github.com/Maxi49/dailymessaging/internal/schedule"
)

// DefaultCloseArmHorizon is how close the close deadline has to be for the
// close timer to be armed after a successful open. An open outside the
// daily window (startup, manual) must not arm a close timer for tomorrow.
const DefaultCloseArmHorizon = 60 * time.Minute

// defaultEventBuffer sizes the controller mailbox. Timer callbacks and
// transport goroutines block on a full mailbox rather than dropping
// events.
const defaultEventBuffer = 16

// MessageDispatcher is the controller's view of the message dispatcher.
type MessageDispatcher interface {
	// ScheduleForToday arms the message timer for the next occurrence
	// of the send time, with onFire invoked when it lands.
	ScheduleForToday(onFire func())

	// Deliver attempts today's send. When sessionOpen is false it
	// records a skip instead of touching the transport.
	Deliver(ctx context.Context, transport Transport, sessionOpen bool)
}

// ControllerConfig carries the schedule parameters the controller needs.
type ControllerConfig struct {
	// OpenAt and CloseAt are the daily window bounds in Zone.
	OpenAt  schedule.TimeOfDay
	CloseAt schedule.TimeOfDay

	// Zone is the fixed-offset target timezone.
	Zone *time.Location

	// CloseArmHorizon overrides DefaultCloseArmHorizon when non-zero.
	CloseArmHorizon time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Controller owns the session state machine and is the only writer of its
// state. Commands, timer firings and transport events all funnel through
// one mailbox processed by a single goroutine, which makes the state
// transitions trivially race-free.
type Controller struct {
	cfg        ControllerConfig
	factory    TransportFactory
	registry   *schedule.Registry
	dispatcher MessageDispatcher

	machine   *Machine
	transport Transport

	events    chan Event
	quit      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	// stateName mirrors the machine state for lock-free inspection
	// from other goroutines.
	stateName atomic.Value

	// ctx bounds the lifetime of transport operations.
	ctx    context.Context
	cancel context.CancelFunc

	log btclog.Logger
}

// NewController wires up a controller. Start must be called before any
// command is issued.
func NewController(cfg ControllerConfig, factory TransportFactory,
	registry *schedule.Registry, dispatcher MessageDispatcher,
	log btclog.Logger) *Controller {

	if cfg.CloseArmHorizon == 0 {
		cfg.CloseArmHorizon = DefaultCloseArmHorizon
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &Controller{
		cfg:        cfg,
		factory:    factory,
		registry:   registry,
		dispatcher: dispatcher,
		machine:    NewMachine(log),
		events:     make(chan Event, defaultEventBuffer),
		quit:       make(chan struct{}),
		log:        log,
	}
	c.stateName.Store(c.machine.State().String())

	return c
}

// Start launches the controller goroutine.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)

		c.wg.Add(1)
		go c.run()
	})
}

// Stop shuts the controller down: pending timers are cancelled and any
// live transport is detached non-destructively.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.cancel()
		c.wg.Wait()

		c.registry.CancelAll()
		if c.transport != nil {
			c.transport.Disconnect()
			c.transport = nil
		}
	})
}

// RequestOpen asks for a session open. Safe from any goroutine.
func (c *Controller) RequestOpen() {
	c.enqueue(OpenRequested{})
}

// RequestClose asks for an intentional close, suppressing auto-reconnect
// and arming the next day's open timer.
func (c *Controller) RequestClose() {
	c.enqueue(CloseRequested{})
}

// StateName returns the current state name. For logs and tests only; by
// the time the caller looks at it the machine may have moved on.
func (c *Controller) StateName() string {
	return c.stateName.Load().(string)
}

// ConnectionOpened implements EventSink.
func (c *Controller) ConnectionOpened(gen uint64) {
	c.enqueue(ConnectionOpened{Gen: gen})
}

// ConnectionClosed implements EventSink.
func (c *Controller) ConnectionClosed(gen uint64, reason DisconnectReason) {
	c.enqueue(ConnectionClosed{Gen: gen, Reason: reason})
}

// CredentialsUpdated implements EventSink.
func (c *Controller) CredentialsUpdated(gen uint64) {
	c.enqueue(CredentialsUpdated{Gen: gen})
}

func (c *Controller) enqueue(ev Event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) run() {
	defer c.wg.Done()

	for {
		select {
		case ev := <-c.events:
			c.handleEvent(ev)

		case <-c.quit:
			return
		}
	}
}

// handleEvent runs one event through the machine and executes the
// resulting effects. Nothing in here may panic the process: a failing
// scheduled action is logged and the daily cycle continues.
func (c *Controller) handleEvent(ev Event) {
	effects := c.machine.ProcessEvent(ev)
	for _, effect := range effects {
		c.applyEffect(effect)
	}

	c.stateName.Store(c.machine.State().String())
}

func (c *Controller) applyEffect(effect Effect) {
	switch e := effect.(type) {
	case StartTransport:
		c.startTransport(e.Gen)

	case DetachTransport:
		if c.transport != nil {
			c.transport.Disconnect()
			c.transport = nil
		}

		// The disconnect is synchronous; complete the close.
		c.handleEvent(transportDetached{})

	case ArmOpenTimer:
		c.armSlot(schedule.SlotOpen, c.cfg.OpenAt)

	case ArmCloseTimerIfNear:
		now := c.cfg.Clock()
		delay := c.cfg.CloseAt.UntilNext(now, c.cfg.Zone)
		if delay > c.cfg.CloseArmHorizon {
			c.log.Infof("Close deadline %v away, beyond %v "+
				"horizon: not arming close timer",
				delay.Round(time.Second),
				c.cfg.CloseArmHorizon)
			return
		}

		c.armSlot(schedule.SlotClose, c.cfg.CloseAt)

	case ScheduleDailyMessage:
		c.dispatcher.ScheduleForToday(func() {
			c.enqueue(TimerFired{Slot: schedule.SlotMessage})
		})

	case CancelTimer:
		c.registry.Cancel(e.Slot)

	case CancelAllTimers:
		c.registry.CancelAll()

	case DeliverMessage:
		c.dispatcher.Deliver(c.ctx, c.transport, c.machine.IsOpen())
	}
}

// startTransport creates and connects a fresh transport instance. A
// creation failure is reported as a disconnect of that generation, which
// re-enters the normal reconnect decision.
func (c *Controller) startTransport(gen uint64) {
	transport, err := c.factory(gen, c)
	if err != nil {
		c.log.Errorf("Unable to create session transport "+
			"(gen %d): %v", gen, err)
		c.enqueue(ConnectionClosed{Gen: gen, Reason: ReasonOther})
		return
	}

	c.transport = transport

	// Connect off the event loop; completion arrives through the sink.
	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if err := transport.Connect(ctx); err != nil {
			c.log.Errorf("Session connect failed (gen %d): %v",
				gen, err)
			c.enqueue(ConnectionClosed{
				Gen:    gen,
				Reason: ReasonOther,
			})
		}
	}()
}

// armSlot arms a slot for the next occurrence of the given local time and
// logs the deadline in the target timezone.
func (c *Controller) armSlot(slot schedule.Slot, at schedule.TimeOfDay) {
	now := c.cfg.Clock()
	delay := at.UntilNext(now, c.cfg.Zone)
	deadline := now.Add(delay).In(c.cfg.Zone)

	c.log.Infof("Scheduling %v for %v", slot,
		deadline.Format("2006-01-02 15:04:05 MST"))

	c.registry.Arm(slot, delay, func() {
		c.enqueue(TimerFired{Slot: slot})
	})
}
