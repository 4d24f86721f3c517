// Package controller owns the device link: it runs the read loop, drains
// the command queue with a minimum gap between writes, correlates
// responses, probes the device with keepalives and reconnects on failure.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbehnke/signalduino/internal/commands"
	"github.com/dbehnke/signalduino/internal/parser"
	"github.com/dbehnke/signalduino/internal/sderr"
	"github.com/dbehnke/signalduino/internal/transport"
)

// ErrKeepaliveExhausted ends a session after too many missed probes
var ErrKeepaliveExhausted = errors.New("keepalive threshold reached")

// LineParser decodes the frames read from the device
type LineParser interface {
	ParseLine(line string) []parser.DecodedMessage
	SetVersion(v string)
	SetRFMode(mode string)
}

// Option configures a Controller
type Option func(*Controller)

// OnMessage registers the decoded message callback
func OnMessage(fn func(parser.DecodedMessage)) Option {
	return func(c *Controller) { c.onMessage = fn }
}

// OnStateChange registers the connection state callback
func OnStateChange(fn func(Transition)) Option {
	return func(c *Controller) { c.onState = fn }
}

// Controller drives one SIGNALduino
type Controller struct {
	cfg       Config
	transport transport.Transport
	parser    LineParser
	logger    zerolog.Logger

	onMessage func(parser.DecodedMessage)
	onState   func(Transition)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}

	queue    chan *Pending
	messages chan parser.DecodedMessage
	linkErr  chan error

	mu      sync.Mutex
	session Session
	ready   chan struct{}

	// serializes device writes; one request is in flight at a time
	txMu      sync.Mutex
	lastWrite time.Time

	inflightMu sync.Mutex
	inflight   *inflight
}

type inflight struct {
	req  commands.Request
	resp chan string
}

// New creates a controller. The transport is owned by the controller from
// here on.
func New(t transport.Transport, p LineParser, cfg Config, logger zerolog.Logger, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		transport: t,
		parser:    p,
		logger:    logger.With().Str("component", "controller").Str("device", t.String()).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		closed:    make(chan struct{}),
		queue:     make(chan *Pending, cfg.QueueSize),
		messages:  make(chan parser.DecodedMessage, cfg.MessageBuffer),
		linkErr:   make(chan error, 1),
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start opens the transport and launches the controller goroutines. A
// failure to open is returned; later failures are handled by reconnecting.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("controller already started")
	}
	select {
	case <-c.closed:
		return &sderr.CommandCancelled{Command: "start"}
	default:
	}

	c.setState(Connecting, nil)
	if err := c.transport.Open(ctx); err != nil {
		c.setState(Disconnected, err)
		return err
	}

	c.wg.Add(3)
	go c.dispatchLoop()
	go c.drainLoop()
	go c.supervise()
	return nil
}

// Close stops keepalive, fails queued and in-flight requests with
// CommandCancelled and closes the transport
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.logger.Info().Msg("closing controller")
		close(c.closed)
		c.cancel()
		err = c.transport.Close()
		c.wg.Wait()

		for drained := false; !drained; {
			select {
			case p := <-c.queue:
				p.finish(commands.Result{}, &sderr.CommandCancelled{Command: p.req.Command})
			default:
				drained = true
			}
		}
		c.setState(Disconnected, nil)
	})
	return err
}

// State returns the current connection state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// Session returns a copy of the session bookkeeping
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Version returns the firmware version reported during the last handshake
func (c *Controller) Version() string {
	return c.Session().Version
}

// WaitReady blocks until the controller reaches Ready
func (c *Controller) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	ch := c.ready
	c.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return &sderr.CommandCancelled{Command: "wait ready"}
	}
}

func (c *Controller) setState(to State, cause error) {
	c.mu.Lock()
	from := c.session.State
	if from == to {
		c.mu.Unlock()
		return
	}
	c.session.State = to
	switch {
	case to == Ready:
		c.session.ConnectedAt = time.Now()
		c.session.MissedKeepalives = 0
		close(c.ready)
	case from == Ready:
		c.ready = make(chan struct{})
	}
	if to == Reconnecting {
		c.session.Reconnects++
	}
	c.mu.Unlock()

	ev := c.logger.Info()
	if cause != nil {
		ev = c.logger.Warn().Err(cause)
	}
	ev.Stringer("from", from).Stringer("to", to).Msg("state change")

	if c.onState != nil {
		c.onState(Transition{From: from, To: to, Err: cause})
	}
}

// reportLinkError tells the supervisor that the current session is broken
func (c *Controller) reportLinkError(err error) {
	select {
	case c.linkErr <- err:
	default:
	}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// supervise runs sessions until the controller is closed. The transport is
// already open when it starts.
func (c *Controller) supervise() {
	defer c.wg.Done()
	backoff := c.cfg.ReconnectInterval
	opened := true

	for {
		if !opened {
			c.setState(Connecting, nil)
			if err := c.transport.Open(c.ctx); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.setState(Reconnecting, err)
				if !c.sleep(c.ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff, c.cfg.MaxReconnectInterval)
				continue
			}
		}
		opened = false

		wasReady, err := c.runSession()
		if c.ctx.Err() != nil {
			return
		}
		if wasReady {
			backoff = c.cfg.ReconnectInterval
		}
		c.setState(Reconnecting, err)
		if !c.sleep(c.ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.cfg.MaxReconnectInterval)
	}
}

// runSession drives one connected session and returns why it ended
func (c *Controller) runSession() (wasReady bool, err error) {
	ctx, cancel := context.WithCancel(c.ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		c.transport.Close()
		wg.Wait()
	}()

	// drop a stale failure from the previous session
	select {
	case <-c.linkErr:
	default:
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.readLoop(ctx)
	}()

	c.setState(Initializing, nil)
	if err := c.initialize(ctx); err != nil {
		c.logger.Error().Err(err).Msg("device initialization failed")
		return false, err
	}
	c.setState(Ready, nil)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.keepalive(ctx)
	}()

	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case err := <-c.linkErr:
		c.logger.Warn().Err(err).Msg("device link lost")
		return true, err
	}
}

func (c *Controller) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		line, err := c.transport.ReadLine()
		if errors.Is(err, transport.ErrNoLine) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				c.reportLinkError(err)
			}
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.handleLine(line)
	}
}

func (c *Controller) handleLine(line string) {
	if !parser.IsFrame(line) && c.deliverResponse(line) {
		return
	}
	c.logger.Debug().Str("line", line).Msg("received")
	for _, msg := range c.parser.ParseLine(line) {
		select {
		case c.messages <- msg:
		default:
			c.logger.Warn().Str("protocol", msg.ProtocolID).Msg("message callback is stalled, dropping message")
		}
	}
}

func (c *Controller) deliverResponse(line string) bool {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	if c.inflight == nil || !c.inflight.req.Accepts(strings.TrimSpace(line)) {
		return false
	}
	c.inflight.resp <- strings.TrimSpace(line)
	c.inflight = nil
	return true
}

func (c *Controller) setInflight(f *inflight) {
	c.inflightMu.Lock()
	c.inflight = f
	c.inflightMu.Unlock()
}

func (c *Controller) clearInflight(f *inflight) {
	c.inflightMu.Lock()
	if c.inflight == f {
		c.inflight = nil
	}
	c.inflightMu.Unlock()
}

func (c *Controller) dispatchLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.messages:
			if c.onMessage != nil {
				c.onMessage(msg)
			}
		}
	}
}
