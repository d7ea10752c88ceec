// Package wa adapts a whatsmeow client to the session.Transport interface.
// Each adapter instance wraps exactly one whatsmeow client; the controller
// creates a fresh one per connection attempt and the generation tag keeps
// events from superseded instances out of the state machine.
package wa

import (
	"context"
	"fmt"
	"os"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/Maxi49/dailymessaging/internal/session"
)

// Config carries the adapter parameters shared by all instances.
type Config struct {
	// PairPhone, when non-empty, requests a phone pairing code for
	// this number on first-time pairing instead of printing a QR code.
	PairPhone string

	// Log receives adapter log lines; the whatsmeow client's own
	// logging is bridged onto it too.
	Log btclog.Logger
}

// NewFactory returns a session.TransportFactory producing whatsmeow-backed
// transports that store their credentials in the given container.
func NewFactory(container *sqlstore.Container, cfg Config) session.TransportFactory {
	return func(gen uint64, sink session.EventSink) (session.Transport,
		error) {

		return newClient(container, cfg, gen, sink)
	}
}

// client is one whatsmeow-backed transport instance.
type client struct {
	wm   *whatsmeow.Client
	gen  uint64
	sink session.EventSink
	cfg  Config
	log  btclog.Logger
}

func newClient(container *sqlstore.Container, cfg Config, gen uint64,
	sink session.EventSink) (*client, error) {

	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("unable to load device: %w", err)
	}

	c := &client{
		gen:  gen,
		sink: sink,
		cfg:  cfg,
		log:  cfg.Log,
	}

	c.wm = whatsmeow.NewClient(device, newWALogger(cfg.Log))

	// Reconnect decisions belong to the session controller, not the
	// library.
	c.wm.EnableAutoReconnect = false

	c.wm.AddEventHandler(c.handleEvent)

	return c, nil
}

// Connect dials the WhatsApp websocket. When the device is not paired yet
// it also kicks off the pairing flow: a pairing code when a phone number
// is configured, a terminal QR code otherwise. Authentication success is
// reported asynchronously through the event sink.
func (c *client) Connect(ctx context.Context) error {
	unpaired := c.wm.Store.ID == nil

	if unpaired && c.cfg.PairPhone == "" {
		// The QR channel must be requested before Connect.
		qrChan, err := c.wm.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("unable to get QR channel: %w", err)
		}
		go c.renderQR(qrChan)
	}

	if err := c.wm.Connect(); err != nil {
		return fmt.Errorf("unable to connect: %w", err)
	}

	if unpaired && c.cfg.PairPhone != "" {
		code, err := c.wm.PairPhone(
			ctx, c.cfg.PairPhone, true,
			whatsmeow.PairClientChrome, "Chrome (Linux)",
		)
		if err != nil {
			return fmt.Errorf("unable to request pairing "+
				"code: %w", err)
		}

		c.log.Infof("==================================================")
		c.log.Infof("PAIRING CODE: %s", code)
		c.log.Infof("Enter it in WhatsApp: Linked devices -> "+
			"Link with phone number")
		c.log.Infof("==================================================")
	}

	return nil
}

// SendMessage sends a plain text message to the recipient phone number.
func (c *client) SendMessage(ctx context.Context, recipient,
	text string) error {

	jid := types.NewJID(recipient, types.DefaultUserServer)

	_, err := c.wm.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}

	return nil
}

// Disconnect closes the websocket while keeping the stored credentials, so
// the next Connect resumes the same pairing.
func (c *client) Disconnect() {
	c.wm.Disconnect()
}

// handleEvent translates whatsmeow events into session events tagged with
// this instance's generation.
func (c *client) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		c.sink.ConnectionOpened(c.gen)

	case *events.PairSuccess:
		c.log.Infof("Paired with %s", e.ID)

	case *events.LoggedOut:
		c.log.Warnf("Device logged out (reason %v); re-pairing "+
			"required", e.Reason)
		c.sink.ConnectionClosed(c.gen, session.ReasonLoggedOut)

	case *events.StreamReplaced:
		c.log.Warnf("Stream replaced by another session")
		c.sink.ConnectionClosed(c.gen, session.ReasonOther)

	case *events.Disconnected:
		c.sink.ConnectionClosed(c.gen, session.ReasonOther)

	case *events.KeepAliveTimeout:
		c.log.Debugf("Keepalive timeout (error count %d)",
			e.ErrorCount)
	}
}

// renderQR prints each QR code from the pairing channel to the terminal.
func (c *client) renderQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			qrterminal.GenerateHalfBlock(
				item.Code, qrterminal.L, os.Stdout,
			)
			c.log.Infof("Scan the QR code with WhatsApp " +
				"(Linked devices)")

		case "success":
			c.log.Infof("QR pairing completed")

		default:
			c.log.Warnf("QR pairing event: %s", item.Event)
		}
	}
}
