package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/signalduino/internal/commands"
	"github.com/dbehnke/signalduino/internal/demod"
	"github.com/dbehnke/signalduino/internal/parser"
	"github.com/dbehnke/signalduino/internal/protocol"
	"github.com/dbehnke/signalduino/internal/sderr"
	"github.com/dbehnke/signalduino/internal/transport"
)

const firmware = "V 3.5.0 SIGNALduino cc1101 (R: A0) - compiled at Jan 1 2024"

type write struct {
	line string
	at   time.Time
}

type fakeTransport struct {
	mu        sync.Mutex
	open      bool
	opens     int
	openLimit int
	writes    []write
	respond   func(cmd string) []string

	lines   chan string
	readErr chan error
}

func newFake(respond func(string) []string) *fakeTransport {
	return &fakeTransport{
		respond: respond,
		lines:   make(chan string, 256),
		readErr: make(chan error, 1),
	}
}

// device answers the handshake, pings and a few queries
func device(pingOK *atomic.Bool) func(string) []string {
	return func(cmd string) []string {
		switch cmd {
		case "V":
			return []string{firmware}
		case "P":
			if pingOK == nil || pingOK.Load() {
				return []string{"OK"}
			}
		case "R":
			return []string{"1234"}
		case "t":
			return []string{"99"}
		case "s":
			return []string{"status"}
		case "?":
			return []string{"help"}
		}
		return nil
	}
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openLimit > 0 && f.opens > f.openLimit {
		return &sderr.TransportError{Op: "open", Endpoint: "fake", Err: errors.New("no such device")}
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) ReadLine() (string, error) {
	select {
	case err := <-f.readErr:
		return "", err
	case l := <-f.lines:
		return l, nil
	case <-time.After(5 * time.Millisecond):
		if !f.IsOpen() {
			return "", transport.ErrNotOpen
		}
		return "", transport.ErrNoLine
	}
}

func (f *fakeTransport) WriteLine(line string) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return transport.ErrNotOpen
	}
	f.writes = append(f.writes, write{line: line, at: time.Now()})
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		for _, r := range respond(line) {
			f.lines <- r
		}
	}
	return nil
}

func (f *fakeTransport) String() string { return "fake://device" }

func (f *fakeTransport) written() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func (f *fakeTransport) count(cmd string) int {
	n := 0
	for _, w := range f.written() {
		if w.line == cmd {
			n++
		}
	}
	return n
}

// frameParser returns every framed line as one message
type frameParser struct {
	mu      sync.Mutex
	version string
	rfMode  string
}

func (p *frameParser) ParseLine(line string) []parser.DecodedMessage {
	payload, ok := parser.ExtractPayload(line)
	if !ok {
		return nil
	}
	return []parser.DecodedMessage{{Raw: payload}}
}

func (p *frameParser) SetVersion(v string) {
	p.mu.Lock()
	p.version = v
	p.mu.Unlock()
}

func (p *frameParser) SetRFMode(m string) {
	p.mu.Lock()
	p.rfMode = m
	p.mu.Unlock()
}

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
	messages    []parser.DecodedMessage
}

func (r *recorder) state(t Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, t)
	r.mu.Unlock()
}

func (r *recorder) message(m parser.DecodedMessage) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *recorder) count(from, to State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.transitions {
		if t.From == from && t.To == to {
			n++
		}
	}
	return n
}

func (r *recorder) received() []parser.DecodedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]parser.DecodedMessage(nil), r.messages...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WriteGap = 5 * time.Millisecond
	cfg.ReconnectInterval = 20 * time.Millisecond
	cfg.InitRetryInterval = 10 * time.Millisecond
	return cfg
}

func start(t *testing.T, ft *fakeTransport, p LineParser, cfg Config, rec *recorder) *Controller {
	t.Helper()
	c := New(ft, p, cfg, zerolog.Nop(), OnStateChange(rec.state), OnMessage(rec.message))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func waitReady(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, c.WaitReady(ctx))
}

func TestHandshake(t *testing.T) {
	ft := newFake(device(nil))
	p := &frameParser{}
	cfg := testConfig()
	cfg.Frequency = 433.92
	cfg.RFMode = "Bresser_5in1"
	rec := &recorder{}

	c := start(t, ft, p, cfg, rec)
	waitReady(t, c)

	assert.Equal(t, firmware, c.Version())
	assert.Equal(t, Ready, c.State())
	p.mu.Lock()
	assert.Equal(t, firmware, p.version)
	assert.Equal(t, "Bresser_5in1", p.rfMode)
	p.mu.Unlock()

	var lines []string
	for _, w := range ft.written() {
		lines = append(lines, w.line)
	}
	assert.Equal(t, []string{"V", "W0F10", "W10B0", "W1171", "WS36", "WS34", "XE"}, lines)
	assert.Equal(t, 1, rec.count(Disconnected, Connecting))
	assert.Equal(t, 1, rec.count(Connecting, Initializing))
	assert.Equal(t, 1, rec.count(Initializing, Ready))
}

func TestStartFailsWhenTransportCannotOpen(t *testing.T) {
	ft := newFake(nil)
	ft.opens = 1
	ft.openLimit = 1

	c := New(ft, &frameParser{}, testConfig(), zerolog.Nop())
	err := c.Start(context.Background())
	var te *sderr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Disconnected, c.State())
	require.NoError(t, c.Close())
}

func TestQueueFIFOWithMinimumGap(t *testing.T) {
	ft := newFake(device(nil))
	cfg := testConfig()
	cfg.WriteGap = 40 * time.Millisecond
	rec := &recorder{}

	c := start(t, ft, &frameParser{}, cfg, rec)
	waitReady(t, c)
	before := len(ft.written())

	ctx := context.Background()
	reqs := []commands.Request{commands.FreeRAM(), commands.Uptime(), commands.CC1101Status(), commands.Help()}
	pending := make([]*Pending, 0, len(reqs))
	for _, r := range reqs {
		p, err := c.Enqueue(ctx, r)
		require.NoError(t, err)
		pending = append(pending, p)
	}

	expected := []string{"1234", "99", "status", "help"}
	for i, p := range pending {
		res, err := p.Wait()
		require.NoError(t, err)
		assert.Equal(t, expected[i], res.Response)
		assert.Equal(t, 1, res.Attempts)
	}

	writes := ft.written()[before:]
	require.Len(t, writes, 4)
	for i, w := range writes {
		assert.Equal(t, reqs[i].Command, w.line)
		if i > 0 {
			gap := w.at.Sub(writes[i-1].at)
			assert.GreaterOrEqual(t, gap, cfg.WriteGap, "gap before %s", w.line)
		}
	}
}

func TestRetriesThenTimeout(t *testing.T) {
	ft := newFake(device(nil))
	c := start(t, ft, &frameParser{}, testConfig(), &recorder{})
	waitReady(t, c)

	_, err := c.SendCommand(context.Background(), commands.Request{Command: "Z", Timeout: 30 * time.Millisecond, Retries: 2})
	var timeout *sderr.CommandTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, 3, ft.count("Z"))
}

func TestFireAndForget(t *testing.T) {
	ft := newFake(device(nil))
	c := start(t, ft, &frameParser{}, testConfig(), &recorder{})
	waitReady(t, c)

	res, err := c.SendCommand(context.Background(), commands.DisableReceiver())
	require.NoError(t, err)
	assert.Equal(t, "XQ", res.Command)
	assert.Empty(t, res.Response)
}

func TestFramesBypassResponseMatching(t *testing.T) {
	ft := newFake(func(cmd string) []string {
		if cmd == "s" {
			return []string{"\x02MS;P0=1;D=01;CP=0;SP=0;\x03", "status"}
		}
		return device(nil)(cmd)
	})
	rec := &recorder{}
	c := start(t, ft, &frameParser{}, testConfig(), rec)
	waitReady(t, c)

	res, err := c.SendCommand(context.Background(), commands.CC1101Status())
	require.NoError(t, err)
	assert.Equal(t, "status", res.Response)

	require.Eventually(t, func() bool { return len(rec.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "MS;P0=1;D=01;CP=0;SP=0;", rec.received()[0].Raw)
}

func TestUnmatchedLinesGoToParser(t *testing.T) {
	ft := newFake(device(nil))
	rec := &recorder{}
	c := start(t, ft, &frameParser{}, testConfig(), rec)
	waitReady(t, c)

	for i := 0; i < 20; i++ {
		ft.lines <- fmt.Sprintf("\x02MU;P0=%d;D=01;\x03", i)
	}
	require.Eventually(t, func() bool { return len(rec.received()) == 20 }, 2*time.Second, 5*time.Millisecond)
	for i, m := range rec.received() {
		assert.Equal(t, fmt.Sprintf("MU;P0=%d;D=01;", i), m.Raw)
	}
}

func TestKeepaliveExhaustion(t *testing.T) {
	var pingOK atomic.Bool
	ft := newFake(device(&pingOK))
	ft.openLimit = 1

	cfg := testConfig()
	cfg.KeepaliveInterval = 20 * time.Millisecond
	cfg.KeepaliveTimeout = 20 * time.Millisecond
	cfg.KeepaliveThreshold = 3
	rec := &recorder{}

	c := start(t, ft, &frameParser{}, cfg, rec)
	waitReady(t, c)

	require.Eventually(t, func() bool { return rec.count(Ready, Reconnecting) == 1 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count(Ready, Reconnecting))
	assert.GreaterOrEqual(t, ft.count("P"), 3)

	rec.mu.Lock()
	var cause error
	for _, tr := range rec.transitions {
		if tr.From == Ready && tr.To == Reconnecting {
			cause = tr.Err
		}
	}
	rec.mu.Unlock()
	assert.ErrorIs(t, cause, ErrKeepaliveExhausted)
	assert.Equal(t, 3, c.Session().MissedKeepalives)
}

func TestKeepaliveSuccess(t *testing.T) {
	ft := newFake(device(nil))
	cfg := testConfig()
	cfg.KeepaliveInterval = 20 * time.Millisecond
	rec := &recorder{}

	c := start(t, ft, &frameParser{}, cfg, rec)
	waitReady(t, c)

	require.Eventually(t, func() bool { return !c.Session().LastKeepalive.IsZero() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Session().MissedKeepalives)
	assert.Equal(t, 0, rec.count(Ready, Reconnecting))
}

func TestReconnectAfterRemoteClose(t *testing.T) {
	ft := newFake(device(nil))
	rec := &recorder{}
	c := start(t, ft, &frameParser{}, testConfig(), rec)
	waitReady(t, c)

	ft.readErr <- &sderr.ConnectionClosedError{Endpoint: "fake"}

	require.Eventually(t, func() bool { return rec.count(Initializing, Ready) == 2 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.count(Ready, Reconnecting))
	assert.Equal(t, 1, rec.count(Reconnecting, Connecting))
	assert.Equal(t, 2, ft.count("V"))
	assert.Equal(t, 1, c.Session().Reconnects)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, tr := range rec.transitions {
		if tr.From == Ready && tr.To == Reconnecting {
			assert.True(t, sderr.IsConnectionClosed(tr.Err))
		}
	}
}

func TestCloseCancelsPendingRequests(t *testing.T) {
	ft := newFake(device(nil))
	rec := &recorder{}
	c := start(t, ft, &frameParser{}, testConfig(), rec)
	waitReady(t, c)

	ctx := context.Background()
	slow := commands.Request{Command: "X", Timeout: 5 * time.Second}
	first, err := c.Enqueue(ctx, slow)
	require.NoError(t, err)
	second, err := c.Enqueue(ctx, commands.FreeRAM())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ft.count("X") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	var cancelled *sderr.CommandCancelled
	_, err = first.Wait()
	assert.ErrorAs(t, err, &cancelled)
	_, err = second.Wait()
	assert.ErrorAs(t, err, &cancelled)

	_, err = c.SendCommand(ctx, commands.Ping())
	assert.ErrorAs(t, err, &cancelled)
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 1, rec.count(Ready, Disconnected))
	assert.False(t, ft.IsOpen())
}

func TestQueueTimeoutWhileNotReady(t *testing.T) {
	ft := newFake(nil)
	cfg := testConfig()
	cfg.InitMaxRetries = 1
	cfg.QueueTimeout = 100 * time.Millisecond
	cfg.ReconnectInterval = time.Second

	c := start(t, ft, &frameParser{}, cfg, &recorder{})

	_, err := c.SendCommand(context.Background(), commands.FreeRAM())
	var timeout *sderr.CommandTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 0, timeout.Attempts)
	assert.Equal(t, 0, ft.count("R"))
}

func TestCallerCancellation(t *testing.T) {
	ft := newFake(device(nil))
	c := start(t, ft, &frameParser{}, testConfig(), &recorder{})
	waitReady(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.SendCommand(ctx, commands.Request{Command: "X", Timeout: 5 * time.Second})
	var cancelled *sderr.CommandCancelled
	require.ErrorAs(t, err, &cancelled)

	res, err := c.SendCommand(context.Background(), commands.FreeRAM())
	require.NoError(t, err)
	assert.Equal(t, "1234", res.Response)
}

func TestStalledCallbackDoesNotBlockReading(t *testing.T) {
	ft := newFake(device(nil))
	release := make(chan struct{})
	var delivered atomic.Int32

	cfg := testConfig()
	cfg.MessageBuffer = 1
	c := New(ft, &frameParser{}, cfg, zerolog.Nop(), OnMessage(func(parser.DecodedMessage) {
		<-release
		delivered.Add(1)
	}))
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()
	waitReady(t, c)

	for i := 0; i < 10; i++ {
		ft.lines <- "\x02MU;P0=1;D=01;\x03"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.SendCommand(ctx, commands.FreeRAM())
	require.NoError(t, err)
	assert.Equal(t, "1234", res.Response)

	close(release)
	require.Eventually(t, func() bool { return delivered.Load() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Less(t, delivered.Load(), int32(10))
}

func TestDecodedMessagesFromDevice(t *testing.T) {
	d, err := demod.New(protocol.Builtin(), zerolog.Nop())
	require.NoError(t, err)
	p := parser.New(d, zerolog.Nop())

	ft := newFake(device(nil))
	rec := &recorder{}
	c := start(t, ft, p, testConfig(), rec)
	waitReady(t, c)

	ft.lines <- "\x02MC;LL=-653;LH=679;SL=-310;SH=351;D=D55B58;C=332;L=21;R=20;\x03\r"
	ft.lines <- "\x02MC;LL=-653;LH=679;SL=-310;SH=351;D=D55B58;C=332;L=21;R=42;\x03"

	require.Eventually(t, func() bool { return len(rec.received()) == 2 }, 2*time.Second, 5*time.Millisecond)
	msgs := rec.received()
	for _, m := range msgs {
		assert.Equal(t, "57", m.ProtocolID)
		assert.Equal(t, "u57#D55B58", m.Payload)
	}
	assert.Equal(t, -64.0, *msgs[0].RSSI)
	assert.Equal(t, -53.0, *msgs[1].RSSI)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{WriteGap: -1}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)

	assert.Equal(t, 10*time.Second, nextBackoff(5*time.Second, time.Minute))
	assert.Equal(t, time.Minute, nextBackoff(40*time.Second, time.Minute))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
