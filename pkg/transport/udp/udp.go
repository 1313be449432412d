package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"camlink/pkg/transport"
)

// DefaultReadBuffer must hold a full multi-datagram response arriving in one
// burst: a 480 x 640 image is 300 KiB before per-packet overhead.
const DefaultReadBuffer = 512 * 1024

// Options tunes the UDP socket.
type Options struct {
	// ReadBuffer is the requested SO_RCVBUF size in bytes.
	ReadBuffer int
}

// Transport dials connected UDP sockets.
type Transport struct{ opts Options }

func New(opts Options) *Transport {
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = DefaultReadBuffer
	}
	return &Transport{opts: opts}
}

func (t *Transport) Kind() transport.Kind { return transport.KindUDP }

// Dial connects a UDP socket to address. The remote is fixed from here on.
func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", address, err)
	}
	uc, ok := c.(*net.UDPConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("udp: dial %s: unexpected conn type %T", address, c)
	}
	if err := uc.SetReadBuffer(t.opts.ReadBuffer); err != nil {
		_ = uc.Close()
		return nil, fmt.Errorf("udp: set read buffer %d: %w", t.opts.ReadBuffer, err)
	}
	eff, err := effectiveReadBuffer(uc)
	if err != nil {
		eff = t.opts.ReadBuffer
	}
	return &Conn{c: uc, requested: t.opts.ReadBuffer, effective: eff}, nil
}

// Conn is a connected UDP socket.
type Conn struct {
	c         *net.UDPConn
	requested int
	effective int
	closeOnce sync.Once
	closeErr  error
}

func (c *Conn) Kind() transport.Kind { return transport.KindUDP }
func (c *Conn) LocalAddr() net.Addr { return c.c.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }
func (c *Conn) RequestedReadBuffer() int { return c.requested }

// ReadBuffer is the receive buffer size the kernel reports back. On Linux
// this is double the granted size and may be capped by net.core.rmem_max.
func (c *Conn) ReadBuffer() int { return c.effective }

func (c *Conn) Send(b []byte) error {
	if len(b) > transport.MaxDatagram {
		return fmt.Errorf("udp: datagram of %d bytes exceeds %d", len(b), transport.MaxDatagram)
	}
	_, err := c.c.Write(b)
	return err
}

func (c *Conn) Recv(b []byte, deadline time.Time) (int, error) {
	if err := c.c.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	return c.c.Read(b)
}

func (c *Conn) Poll(b []byte) (int, error) {
	// a stale deadline from Recv would fail the poll before it reads
	if err := c.c.SetReadDeadline(time.Time{}); err != nil {
		return 0, err
	}
	return pollRead(c.c, b)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.c.Close() })
	return c.closeErr
}
