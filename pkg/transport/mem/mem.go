package mem

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"camlink/pkg/transport"
)

// Transport is an in-process transport built on net.Pipe. Unlike UDP it does
// not preserve message boundaries: each Send may be split or coalesced by the
// reader, which makes it useful for exercising short-read reassembly and
// end-of-stream handling in tests.
type Transport struct {
	mu        sync.Mutex
	listeners map[string]*Listener
}

func New() *Transport { return &Transport{listeners: make(map[string]*Listener)} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

// Listen registers name so that Dial can reach it.
func (t *Transport) Listen(ctx context.Context, name string) (*Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.listeners[name]; ok {
		return nil, errors.New("mem: listener already exists")
	}
	l := &Listener{name: name, newCh: make(chan *Conn, 8), closeCh: make(chan struct{})}
	t.listeners[name] = l
	go func() {
		select {
		case <-ctx.Done():
		case <-l.closeCh:
		}
		_ = l.Close()
		t.mu.Lock()
		delete(t.listeners, name)
		t.mu.Unlock()
	}()
	return l, nil
}

// Dial connects to the listener registered under name.
func (t *Transport) Dial(ctx context.Context, name string) (transport.Conn, error) {
	t.mu.Lock()
	l := t.listeners[name]
	t.mu.Unlock()
	if l == nil {
		return nil, errors.New("mem: no such listener")
	}
	cli, srv := Pipe(name)
	select {
	case l.newCh <- srv:
	case <-ctx.Done():
		_ = cli.Close()
		_ = srv.Close()
		return nil, ctx.Err()
	case <-l.closeCh:
		_ = cli.Close()
		_ = srv.Close()
		return nil, errors.New("mem listener closed")
	}
	return cli, nil
}

// Listener hands out the device side of dialed pipes.
type Listener struct {
	name      string
	newCh     chan *Conn
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (l *Listener) Addr() net.Addr { return memAddr(l.name) }

func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("mem listener closed")
	case c := <-l.newCh:
		return c, nil
	}
}

func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.closeCh) })
	return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

// DefaultWriteTimeout bounds Send; net.Pipe writes block until read.
const DefaultWriteTimeout = time.Second

// pollWindow is how long Poll lets a blocked writer hand over its bytes.
const pollWindow = time.Millisecond

// Pipe returns both ends of an in-process connection.
func Pipe(name string) (*Conn, *Conn) {
	a, b := net.Pipe()
	return newConn(a, name+"/client", name), newConn(b, name, name+"/client")
}

// Conn is one end of an in-process pipe.
type Conn struct {
	c            net.Conn
	local        memAddr
	remote       memAddr
	WriteTimeout time.Duration
}

func newConn(c net.Conn, local, remote string) *Conn {
	return &Conn{c: c, local: memAddr(local), remote: memAddr(remote), WriteTimeout: DefaultWriteTimeout}
}

func (c *Conn) Kind() transport.Kind { return transport.KindMem }
func (c *Conn) LocalAddr() net.Addr  { return c.local }
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

func (c *Conn) Send(b []byte) error {
	if c.WriteTimeout > 0 {
		if err := c.c.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := c.c.Write(b)
	return err
}

func (c *Conn) Recv(b []byte, deadline time.Time) (int, error) {
	if err := c.setReadDeadline(deadline); err != nil {
		return 0, err
	}
	return c.c.Read(b)
}

func (c *Conn) Poll(b []byte) (int, error) {
	if err := c.setReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := c.c.Read(b)
	if transport.IsTimeout(err) {
		return 0, transport.ErrWouldBlock
	}
	return n, err
}

func (c *Conn) Close() error { return c.c.Close() }

// setReadDeadline lets a closed pipe fall through to Read, which does not
// block once either end is closed and reports io.EOF for a closed remote
// and io.ErrClosedPipe for a closed local end.
func (c *Conn) setReadDeadline(t time.Time) error {
	if err := c.c.SetReadDeadline(t); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}
