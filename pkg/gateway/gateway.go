// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway runs the coordinator: it brings the module onto the
// network, hands sensor frames from the nodes to a Sink, and forwards
// operator commands from the mailbox to the nodes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/xbgate/pkg/dedup"
	"github.com/Thermoquad/xbgate/pkg/mailbox"
	"github.com/Thermoquad/xbgate/pkg/sensor"
	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee"
)

// MaxTransportErrors is the number of consecutive transport failures after
// which Run gives up.
const MaxTransportErrors = 5

// Options configures a Gateway.
type Options struct {
	ReplyTimeout time.Duration
	PollInterval time.Duration
	// Sink receives every packet from the nodes. May be nil.
	Sink  Sink
	Stats *xbee.Statistics
	// StatsInterval is how often Step logs a statistics summary. Zero
	// disables it.
	StatsInterval time.Duration
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// SetupOptions controls Setup.
type SetupOptions struct {
	Network        zigbee.Config
	NodeIdentifier string
	JoinTime       uint8
	// AssociationTimeout bounds the join wait; zero waits forever.
	AssociationTimeout time.Duration
}

// Gateway is the coordinator control loop. It is not safe for concurrent
// use.
type Gateway struct {
	session  *zigbee.Session
	detector *dedup.Detector
	mailbox  *mailbox.Mailbox
	sink     Sink
	stats    *xbee.Statistics
	log      *slog.Logger

	ctx       context.Context
	counter   uint8
	dropped   int
	transport int

	statsInterval time.Duration
	lastStats     time.Time
}

// New creates a gateway driving the module on t and reading commands from
// mb.
func New(t zigbee.Transport, mb *mailbox.Mailbox, opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stats == nil {
		opts.Stats = xbee.NewStatistics()
	}

	g := &Gateway{
		detector: dedup.New(),
		mailbox:  mb,
		sink:     opts.Sink,
		stats:    opts.Stats,
		log:      opts.Logger.With("component", "gateway"),
		ctx:      context.Background(),

		statsInterval: opts.StatsInterval,
		lastStats:     time.Now(),
	}
	g.session = zigbee.New(t, zigbee.Options{
		ReplyTimeout: opts.ReplyTimeout,
		PollInterval: opts.PollInterval,
		OnReceive:    g.receive,
		Stats:        opts.Stats,
		Logger:       opts.Logger,
	})
	return g
}

// Session returns the protocol session.
func (g *Gateway) Session() *zigbee.Session {
	return g.session
}

// Detector returns the duplicate detector.
func (g *Gateway) Detector() *dedup.Detector {
	return g.detector
}

// Stats returns the link statistics.
func (g *Gateway) Stats() *xbee.Statistics {
	return g.stats
}

// Setup identifies the module, applies the network configuration and waits
// for it to join.
func (g *Gateway) Setup(opts SetupOptions) error {
	s := g.session

	hv, err := s.HardwareVersion()
	if err != nil {
		return fmt.Errorf("read hardware version: %w", err)
	}
	vr, err := s.FirmwareVersion()
	if err != nil {
		return fmt.Errorf("read firmware version: %w", err)
	}
	serial, err := s.SerialNumber()
	if err != nil {
		return fmt.Errorf("read serial number: %w", err)
	}
	g.log.Info("module", "hardware", fmt.Sprintf("0x%04X", hv), "firmware", fmt.Sprintf("0x%04X", vr), "serial", serial.String())

	if err := s.Configure(opts.Network); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	if opts.NodeIdentifier != "" {
		if err := s.SetNodeIdentifier(opts.NodeIdentifier); err != nil {
			return fmt.Errorf("set node identifier: %w", err)
		}
	}
	if err := s.Join(opts.JoinTime, opts.AssociationTimeout); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	if pan, err := s.PanID(); err != nil {
		g.log.Warn("read operating PAN failed", "error", err)
	} else {
		g.log.Info("operating PAN", "pan", pan.String())
	}
	if np, err := s.MaxRFPayload(); err != nil {
		g.log.Warn("read max payload failed", "error", err)
	} else {
		g.log.Info("max RF payload", "bytes", np)
	}
	return nil
}

// Run services the module and the mailbox until ctx is done or the
// transport fails MaxTransportErrors times in a row. Cancellation is seen
// between iterations.
func (g *Gateway) Run(ctx context.Context) error {
	g.ctx = ctx
	defer func() { g.ctx = context.Background() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := g.Step(); err != nil {
			return err
		}
	}
}

// Step runs one iteration of the control loop: read one frame, then send
// one queued command.
func (g *Gateway) Step() error {
	status := g.session.Handle()
	if err := g.checkTransport(g.session.LastError()); err != nil {
		return err
	}
	g.logStats(time.Now())

	if status == zigbee.RXFrameReceived {
		if rssi, err := g.session.SignalStrength(); err != nil {
			g.log.Debug("read RSSI failed", "error", err)
		} else {
			g.log.Info("last packet RSSI", "dbm", -int(rssi))
		}
	}

	if g.mailbox == nil {
		return nil
	}
	e, ok := g.mailbox.Poll()
	g.countDrops()
	if !ok {
		return nil
	}
	err := g.dispatch(e)
	if err != nil && !errors.Is(err, zigbee.ErrTransport) {
		g.log.Warn("dropping command", "entry", e.String(), "error", err)
		return nil
	}
	return err
}

// SendCommand transmits one mailbox entry to its node.
func (g *Gateway) SendCommand(e mailbox.Entry) error {
	return g.dispatch(e)
}

func (g *Gateway) dispatch(e mailbox.Entry) error {
	g.counter++
	payload, err := sensor.EncodeCommand(sensor.Command{
		Counter:  g.counter,
		SensorID: e.SensorID,
		Order:    uint8(e.Command),
	})
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	g.log.Info("sending command", "entry", e.String(), "counter", g.counter)
	_, err = g.session.Send(e.Dest, xbee.AddressUnknown16, payload)
	if err != nil {
		g.log.Warn("send failed", "entry", e.String(), "error", err)
	}
	return g.checkTransport(err)
}

// checkTransport counts consecutive transport failures. A clean exchange or
// a read timeout ends the streak; other errors leave it as it is.
func (g *Gateway) checkTransport(err error) error {
	switch {
	case err == nil, errors.Is(err, zigbee.ErrTimeout):
		g.transport = 0
		return nil
	case !errors.Is(err, zigbee.ErrTransport):
		return nil
	}
	g.transport++
	if g.transport >= MaxTransportErrors {
		return fmt.Errorf("giving up after %d transport errors: %w", g.transport, err)
	}
	return nil
}

// logStats logs a statistics summary once per stats interval.
func (g *Gateway) logStats(now time.Time) {
	if g.statsInterval <= 0 || now.Sub(g.lastStats) < g.statsInterval {
		return
	}
	g.lastStats = now

	st := g.stats
	g.log.Info("statistics",
		"frames", st.TotalFrames,
		"valid", st.ValidFrames,
		"rx", st.ReceivedPackets,
		"sent", st.SentFrames,
		"duplicates", st.Duplicates,
		"timeouts", st.Timeouts,
		"errors", st.Errors(),
		"drops", st.MailboxDrops,
	)
}

func (g *Gateway) countDrops() {
	for d := g.mailbox.Dropped(); g.dropped < d; g.dropped++ {
		g.stats.RecordMailboxDrop()
	}
}

func (g *Gateway) receive(p *xbee.ReceivePacket) {
	d := Delivery{
		Time:     time.Now(),
		Source:   p.Source64,
		Source16: p.Source16,
		Packet:   p,
	}

	if counter, ok := sensor.Counter(p.Payload); ok {
		d.Duplicate = g.detector.Update(p.Source64, counter)
		if d.Duplicate {
			g.stats.RecordDuplicate()
			g.log.Info("duplicate frame", "source", p.Source64.String(), "counter", counter)
		}
	}

	f, err := sensor.Decode(p.Payload)
	if err != nil {
		g.log.Warn("undecodable payload", "source", p.Source64.String(), "error", err)
	} else {
		d.Frame = f
		g.log.Info("sensor frame", "source", p.Source64.String(), "counter", f.Counter, "readings", len(f.Readings), "skipped", f.Skipped)
	}

	if g.sink == nil {
		return
	}
	if err := g.sink.Deliver(g.ctx, d); err != nil {
		g.log.Warn("delivery failed", "source", p.Source64.String(), "error", err)
	}
}
