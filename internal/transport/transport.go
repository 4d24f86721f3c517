// Package transport provides line-oriented links to a SIGNALduino over a
// serial port or a TCP bridge.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoLine is returned by ReadLine when no complete line arrived within
	// the read timeout. It is not a failure.
	ErrNoLine = errors.New("no line available")

	// ErrNotOpen is returned when the transport was closed locally or never opened
	ErrNotOpen = errors.New("transport not open")
)

const (
	DefaultBaudRate    = 57600
	DefaultTCPPort     = 23
	DefaultReadTimeout = 500 * time.Millisecond
	DefaultDialTimeout = 5 * time.Second

	lineBufferSize = 8192
	readChunk      = 512
)

// Transport is a bidirectional line link to the device
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	ReadLine() (string, error)
	WriteLine(line string) error
	IsOpen() bool
	String() string
}

// encodeLine terminates a command line. Commands are sent byte for byte so
// characters above 0x7F survive as single latin-1 bytes.
func encodeLine(line string) []byte {
	b := make([]byte, 0, len(line)+1)
	for _, r := range line {
		if r > 0xFF {
			r = '?'
		}
		b = append(b, byte(r))
	}
	return append(b, '\n')
}
