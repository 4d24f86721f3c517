package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/dbehnke/signalduino/internal/sderr"
)

// Serial talks to a USB or UART attached SIGNALduino
type Serial struct {
	portName    string
	baudRate    int
	readTimeout time.Duration
	logger      zerolog.Logger

	mu   sync.Mutex
	port serial.Port
	buf  *lineBuffer
}

// NewSerial creates a serial transport. baudRate 0 selects DefaultBaudRate.
func NewSerial(portName string, baudRate int, logger zerolog.Logger) *Serial {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		portName:    portName,
		baudRate:    baudRate,
		readTimeout: DefaultReadTimeout,
		logger:      logger.With().Str("transport", "serial").Str("port", portName).Logger(),
		buf:         newLineBuffer(lineBufferSize, portName),
	}
}

// ListPorts returns the serial ports present on this host
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

func (s *Serial) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &sderr.TransportError{Op: "open", Endpoint: s.String(), Err: err}
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return &sderr.TransportError{Op: "open", Endpoint: s.String(), Err: err}
	}
	if err := port.SetReadTimeout(s.readTimeout); err != nil {
		port.Close()
		return &sderr.TransportError{Op: "open", Endpoint: s.String(), Err: err}
	}

	s.mu.Lock()
	s.port = port
	s.buf.clear()
	s.mu.Unlock()

	s.logger.Info().Int("baud", s.baudRate).Msg("serial port opened")
	return nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()

	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return &sderr.TransportError{Op: "close", Endpoint: s.String(), Err: err}
	}
	return nil
}

func (s *Serial) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// ReadLine returns the next complete line, or ErrNoLine after the read timeout
func (s *Serial) ReadLine() (string, error) {
	s.mu.Lock()
	port := s.port
	if line, ok := s.buf.next(); ok {
		s.mu.Unlock()
		return line, nil
	}
	s.mu.Unlock()

	if port == nil {
		return "", ErrNotOpen
	}

	chunk := make([]byte, readChunk)
	n, err := port.Read(chunk)
	if err != nil {
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
			if !s.IsOpen() {
				return "", ErrNotOpen
			}
			return "", &sderr.ConnectionClosedError{Endpoint: s.String()}
		}
		return "", &sderr.TransportError{Op: "read", Endpoint: s.String(), Err: err}
	}
	if n == 0 {
		return "", ErrNoLine
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dropped := s.buf.add(chunk[:n]); dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Stringer("buffer", s.buf).Msg("discarding oversized serial input")
	}
	if line, ok := s.buf.next(); ok {
		return line, nil
	}
	return "", ErrNoLine
}

func (s *Serial) WriteLine(line string) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotOpen
	}
	if _, err := port.Write(encodeLine(line)); err != nil {
		return &sderr.TransportError{Op: "write", Endpoint: s.String(), Err: err}
	}
	return nil
}

func (s *Serial) String() string {
	return fmt.Sprintf("serial://%s@%d", s.portName, s.baudRate)
}
