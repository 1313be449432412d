package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Kind identifies the link type behind a Conn.
type Kind int

const (
	KindUnknown Kind = iota
	KindUDP
	KindMem
)

func (k Kind) String() string {
	switch k {
	case KindUDP:
		return "udp"
	case KindMem:
		return "mem"
	default:
		return "unknown"
	}
}

// MaxDatagram is the largest payload a single UDP datagram can carry.
const MaxDatagram = 65507

var (
	// ErrWouldBlock is returned by Poll when no data is pending.
	ErrWouldBlock = errors.New("transport: no data pending")
	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("transport: connection closed")
)

// Conn is a connection to a single remote endpoint that is fixed for its
// lifetime. Exactly one goroutine is expected to use it.
type Conn interface {
	// Send transmits b as one datagram.
	Send(b []byte) error
	// Recv waits until data is ready or deadline passes, then reads into b.
	// A passed deadline yields an error for which IsTimeout reports true.
	Recv(b []byte, deadline time.Time) (int, error)
	// Poll reads whatever is already pending without waiting.
	Poll(b []byte) (int, error)
	Kind() Kind
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
}

// Dialer builds Conns of one Kind.
type Dialer interface {
	Kind() Kind
	Dial(ctx context.Context, address string) (Conn, error)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed reports whether err signals that the remote half or the local
// socket is gone.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrClosed)
}
