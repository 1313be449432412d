package control

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed exchange.
type Kind int

const (
	KindIOFailure Kind = iota + 1
	KindConnectionClosed
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindIOFailure:
		return "io-failure"
	case KindConnectionClosed:
		return "connection-closed"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	// ErrConnectionClosed matches exchanges cut short by end-of-stream.
	ErrConnectionClosed = errors.New("control: connection closed")
	// ErrTimeout matches exchanges whose deadline passed first.
	ErrTimeout = errors.New("control: timeout")
	// ErrIOFailure matches any other transport failure during an exchange.
	ErrIOFailure = errors.New("control: io failure")
	// ErrQueueOverflow is returned under OverflowReject when the queue is full.
	ErrQueueOverflow = errors.New("control: command queue full")
	// ErrClosed is returned for submissions to, or still queued in, a closed Controller.
	ErrClosed = errors.New("control: controller closed")
)

// ProtocolError describes a failed exchange and keeps the valid bytes
// reassembled before it failed.
type ProtocolError struct {
	Kind     Kind
	Command  string
	Expected int           // total bytes the command should yield
	SoFar    []byte        // reassembled bytes, never more than Expected
	Transfer int           // datagrams completed
	Elapsed  time.Duration // since send; zero when the send itself failed
	Cause    error
}

func (e *ProtocolError) Error() string {
	var msg string
	switch e.Kind {
	case KindTimeout:
		msg = fmt.Sprintf("%s: timeout after %dms after transfer %d", e.Command, e.Elapsed.Milliseconds(), e.Transfer)
	case KindConnectionClosed:
		msg = fmt.Sprintf("%s: unexpected closed connection expecting %d bytes for transfer %d", e.Command, e.Expected, e.Transfer)
	default:
		msg = fmt.Sprintf("%s: %v", e.Command, e.Cause)
	}
	return msg + formatSoFar(e.SoFar)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// Is matches the sentinel for the error's Kind.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrConnectionClosed:
		return e.Kind == KindConnectionClosed
	case ErrIOFailure:
		return e.Kind == KindIOFailure
	}
	return false
}

// KindOf returns the Kind of a ProtocolError in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func formatSoFar(data []byte) string {
	return fmt.Sprintf(" [ %d bytes so far -> %v]", len(data), head(data))
}

// head returns at most the first 8 bytes, enough to identify a payload in logs.
func head(data []byte) []byte {
	if len(data) <= 8 {
		return data
	}
	return data[:8]
}
