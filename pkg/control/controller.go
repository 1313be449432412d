// Package control drives a single remote camera over a datagram transport.
//
// A Controller owns one connection and one manager goroutine. Callers submit
// commands concurrently; the manager executes them strictly one at a time in
// submission order, so at most one exchange is ever on the wire. Each exchange
// flushes stale data, sends the command, and reassembles the fixed-size
// response datagrams until the expected total arrives or the per-command
// deadline (measured from the send) passes. Every submission receives exactly
// one Result.
package control

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"camlink/pkg/command"
	"camlink/pkg/transport"
)

const (
	DefaultQueueCapacity     = 32
	DefaultTimeout           = 3 * time.Second
	DefaultMaxStaleDatagrams = 4096
)

// Options tunes a Controller. Zero values select the defaults.
type Options struct {
	QueueCapacity  int
	Overflow       OverflowPolicy
	DefaultTimeout time.Duration
	// MaxStaleDatagrams bounds how many leftover reads one flush discards.
	MaxStaleDatagrams int
	Logger            *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = DefaultTimeout
	}
	if o.MaxStaleDatagrams <= 0 {
		o.MaxStaleDatagrams = DefaultMaxStaleDatagrams
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Stats are cumulative counters since the Controller was created.
type Stats struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
	Timeouts  uint64
	Rejected  uint64
}

// Controller serialises commands to one remote endpoint.
type Controller struct {
	opts   Options
	log    *zap.Logger
	conn   transport.Conn
	q      *queue
	x      *exchanger
	stop   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	closeErr  error

	mSubmitted atomic.Uint64
	mSucceeded atomic.Uint64
	mFailed    atomic.Uint64
	mTimeouts  atomic.Uint64
	mRejected  atomic.Uint64
}

// New dials address with d and starts the manager. A dial failure is the
// only fatal condition; per-command failures never stop the manager.
func New(ctx context.Context, d transport.Dialer, address string, opts Options) (*Controller, error) {
	conn, err := d.Dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("control: connect %s %s: %w", d.Kind(), address, err)
	}
	return NewWithConn(conn, opts), nil
}

// NewWithConn starts a manager on an already established connection, which
// the Controller takes ownership of.
func NewWithConn(conn transport.Conn, opts Options) *Controller {
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("remote", conn.RemoteAddr().String()), zap.Stringer("kind", conn.Kind()))
	c := &Controller{
		opts:   opts,
		log:    log,
		conn:   conn,
		q:      newQueue(opts.QueueCapacity, opts.Overflow),
		x:      newExchanger(conn, opts.MaxStaleDatagrams, log),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	fields := []zap.Field{
		zap.Int("queue_capacity", opts.QueueCapacity),
		zap.Stringer("overflow", opts.Overflow),
		zap.Duration("default_timeout", opts.DefaultTimeout),
	}
	if rb, ok := conn.(interface{ ReadBuffer() int }); ok {
		fields = append(fields, zap.Int("read_buffer", rb.ReadBuffer()))
	}
	log.Info("camera controller started", fields...)
	go c.run()
	return c
}

// Submit queues cmd and blocks until the manager has executed it. A
// non-positive timeout selects Options.DefaultTimeout. ctx only bounds the
// wait for queue space: once queued, a command always runs and Submit waits
// for its Result.
func (c *Controller) Submit(ctx context.Context, cmd command.Command, timeout time.Duration) Result {
	c.mSubmitted.Add(1)
	if cmd.IsZero() {
		c.mFailed.Add(1)
		return failed(nil, fmt.Errorf("control: submit: %w", command.ErrEmptyName))
	}
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}
	t := newTask(cmd, timeout)
	if err := c.q.push(ctx, t, c.stop); err != nil {
		c.mRejected.Add(1)
		c.mFailed.Add(1)
		c.log.Warn("command not queued", zap.String("cmd", cmd.Name()), zap.Error(err))
		return failed(nil, err)
	}
	return t.wait()
}

// Pending is the number of queued commands not yet picked up.
func (c *Controller) Pending() int { return c.q.len() }

func (c *Controller) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *Controller) Stats() Stats {
	return Stats{
		Submitted: c.mSubmitted.Load(),
		Succeeded: c.mSucceeded.Load(),
		Failed:    c.mFailed.Load(),
		Timeouts:  c.mTimeouts.Load(),
		Rejected:  c.mRejected.Load(),
	}
}

// Close stops the manager after the exchange in flight, if any, fails every
// command still queued with ErrClosed, and closes the connection.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.exited
		if n := c.q.close(); n > 0 {
			c.mFailed.Add(uint64(n))
			c.log.Warn("failed queued commands on close", zap.Int("count", n))
		}
		c.closeErr = c.conn.Close()
		c.log.Info("camera controller stopped")
	})
	return c.closeErr
}
