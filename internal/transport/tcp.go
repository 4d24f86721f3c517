package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbehnke/signalduino/internal/sderr"
)

// TCP talks to a SIGNALduino behind a network bridge (ESP firmware or ser2net)
type TCP struct {
	host        string
	port        int
	dialTimeout time.Duration
	readTimeout time.Duration
	logger      zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
	buf  *lineBuffer
}

// NewTCP creates a TCP transport. port 0 selects DefaultTCPPort.
func NewTCP(host string, port int, logger zerolog.Logger) *TCP {
	if port <= 0 {
		port = DefaultTCPPort
	}
	t := &TCP{
		host:        host,
		port:        port,
		dialTimeout: DefaultDialTimeout,
		readTimeout: DefaultReadTimeout,
	}
	t.logger = logger.With().Str("transport", "tcp").Str("addr", t.address()).Logger()
	t.buf = newLineBuffer(lineBufferSize, t.address())
	return t
}

func (t *TCP) address() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *TCP) Open(ctx context.Context) error {
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.address())
	if err != nil {
		return &sderr.TransportError{Op: "open", Endpoint: t.String(), Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.buf.clear()
	t.mu.Unlock()

	t.logger.Info().Msg("tcp connection established")
	return nil
}

func (t *TCP) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return &sderr.TransportError{Op: "close", Endpoint: t.String(), Err: err}
	}
	return nil
}

func (t *TCP) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// ReadLine returns the next complete line, or ErrNoLine after the read timeout
func (t *TCP) ReadLine() (string, error) {
	t.mu.Lock()
	conn := t.conn
	if line, ok := t.buf.next(); ok {
		t.mu.Unlock()
		return line, nil
	}
	t.mu.Unlock()

	if conn == nil {
		return "", ErrNotOpen
	}

	if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return "", &sderr.TransportError{Op: "read", Endpoint: t.String(), Err: err}
	}
	chunk := make([]byte, readChunk)
	n, err := conn.Read(chunk)
	if n > 0 {
		t.mu.Lock()
		if dropped := t.buf.add(chunk[:n]); dropped > 0 {
			t.logger.Warn().Int("dropped", dropped).Stringer("buffer", t.buf).Msg("discarding oversized tcp input")
		}
		line, ok := t.buf.next()
		t.mu.Unlock()
		if ok {
			return line, nil
		}
	}

	if err != nil {
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
			return "", ErrNoLine
		case errors.Is(err, net.ErrClosed):
			return "", ErrNotOpen
		case errors.Is(err, io.EOF):
			return "", &sderr.ConnectionClosedError{Endpoint: t.String()}
		default:
			return "", &sderr.TransportError{Op: "read", Endpoint: t.String(), Err: err}
		}
	}
	return "", ErrNoLine
}

func (t *TCP) WriteLine(line string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}
	if err := conn.SetWriteDeadline(time.Now().Add(t.dialTimeout)); err != nil {
		return &sderr.TransportError{Op: "write", Endpoint: t.String(), Err: err}
	}
	if _, err := conn.Write(encodeLine(line)); err != nil {
		return &sderr.TransportError{Op: "write", Endpoint: t.String(), Err: err}
	}
	return nil
}

func (t *TCP) String() string {
	return fmt.Sprintf("tcp://%s", t.address())
}
