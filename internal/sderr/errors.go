// Package sderr defines the error taxonomy shared by the decoding pipeline,
// the transports and the controller.
package sderr

import (
	"errors"
	"fmt"
	"time"
)

// InvalidInputError reports malformed bit or hex input to a codec helper
type InvalidInputError struct {
	Op     string
	Input  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: invalid input %q: %s", e.Op, truncate(e.Input, 32), e.Reason)
}

// RangeError reports a numeric input outside its domain
type RangeError struct {
	Op    string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: value %d out of range [%d,%d]", e.Op, e.Value, e.Min, e.Max)
}

// LengthExceededError reports a frame longer (or shorter) than the general
// bounds of a protocol. Reason carries the firmware-compatible wording.
type LengthExceededError struct {
	Protocol string
	Length   int
	Max      int
	Reason   string
}

func (e *LengthExceededError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("protocol %s: length %d exceeds %d", e.Protocol, e.Length, e.Max)
}

// LengthMismatchError reports a frame that violates an exact-length override
type LengthMismatchError struct {
	Protocol string
	Length   int
	Want     int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("message must be %d bits, got %d", e.Want, e.Length)
}

// MissingDataError reports absent bit data or protocol id
type MissingDataError struct {
	Reason string
}

func (e *MissingDataError) Error() string { return e.Reason }

// ClassificationFailure means no protocol accepted a frame. Not fatal.
type ClassificationFailure struct {
	Line string
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("unclassified frame: %s", truncate(e.Line, 48))
}

// ChecksumFailure reports a failed integrity check (parity, CRC, digest)
type ChecksumFailure struct {
	Protocol string
	Check    string
	Reason   string
}

func (e *ChecksumFailure) Error() string {
	if e.Check == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Reason)
}

// TransportError wraps an I/O failure on the device link
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConnectionClosedError reports that the remote side closed the link
// unexpectedly. It is distinct from a failure to connect.
type ConnectionClosedError struct {
	Endpoint string
}

func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("%s: remote closed connection", e.Endpoint)
}

// CommandTimeout is the final outcome of a request that exhausted its retries
type CommandTimeout struct {
	Command  string
	Timeout  time.Duration
	Attempts int
}

func (e *CommandTimeout) Error() string {
	return fmt.Sprintf("command %q timed out after %d attempt(s) of %s", e.Command, e.Attempts, e.Timeout)
}

// CommandCancelled is delivered to pending requests when the controller closes
type CommandCancelled struct {
	Command string
}

func (e *CommandCancelled) Error() string {
	return fmt.Sprintf("command %q cancelled", e.Command)
}

// IsTransport reports whether err is a transport failure or a remote close
func IsTransport(err error) bool {
	var te *TransportError
	var ce *ConnectionClosedError
	return errors.As(err, &te) || errors.As(err, &ce)
}

// IsConnectionClosed reports whether err is an unexpected remote close
func IsConnectionClosed(err error) bool {
	var ce *ConnectionClosedError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is a command timeout
func IsTimeout(err error) bool {
	var te *CommandTimeout
	return errors.As(err, &te)
}

// IsCancelled reports whether err is a command cancellation
func IsCancelled(err error) bool {
	var ce *CommandCancelled
	return errors.As(err, &ce)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
