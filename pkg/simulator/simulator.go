// Package simulator is a stand-in for the camera: a UDP listener that answers
// ASCII command names with fixed-size reply datagrams.
//
// It reproduces the quirks the controller has to live with: a fraction of
// requests is silently dropped, unknown commands get no answer at all, and
// replies can be delayed long enough to arrive after the requester gave up.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"camlink/pkg/core/priocq"
)

const (
	// DefaultAddr is where the camera listens out of the box.
	DefaultAddr = "127.0.0.1:12345"
	// DefaultDropRate is the fraction of requests a real unit loses.
	DefaultDropRate = 0.1

	maxRequest = 2048
)

// Options configures a Simulator. The zero value answers every known
// command immediately and never drops.
type Options struct {
	// DropRate in [0,1] is the probability a known request gets no reply.
	DropRate float64
	// Seed makes drops reproducible when Rand is nil. Zero seeds from the clock.
	Seed int64
	Rand *rand.Rand
	// ReplyDelay holds every reply back; replies are sent asynchronously.
	ReplyDelay time.Duration
	// RateBytesPerSec paces reply datagrams; zero sends them back to back.
	RateBytesPerSec int64
	// Burst is the token bucket capacity; zero means one second of rate.
	Burst int64
	// Table maps a command name to its reply datagrams. Nil uses DefaultTable.
	Table  map[string][][]byte
	Logger *zap.Logger
}

// Stats are cumulative request counters.
type Stats struct {
	Received uint64
	Replied  uint64
	Dropped  uint64
	Unknown  uint64
}

// Simulator serves one UDP socket.
type Simulator struct {
	opts   Options
	log    *zap.Logger
	table  map[string][][]byte
	rng    *rand.Rand
	bucket *priocq.TokenBucket

	conn      *net.UDPConn
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	received atomic.Uint64
	replied  atomic.Uint64
	dropped  atomic.Uint64
	unknown  atomic.Uint64
}

func New(opts Options) (*Simulator, error) {
	if opts.DropRate < 0 || opts.DropRate > 1 {
		return nil, fmt.Errorf("simulator: drop rate %v outside [0,1]", opts.DropRate)
	}
	if opts.ReplyDelay < 0 {
		return nil, fmt.Errorf("simulator: negative reply delay %s", opts.ReplyDelay)
	}
	s := &Simulator{
		opts:  opts,
		log:   opts.Logger,
		table: opts.Table,
		rng:   opts.Rand,
		done:  make(chan struct{}),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.table == nil {
		s.table = DefaultTable()
	}
	if s.rng == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	if opts.RateBytesPerSec > 0 {
		s.bucket = priocq.NewTokenBucket(opts.RateBytesPerSec, opts.Burst)
	}
	return s, nil
}

// Listen binds the UDP socket. Use "127.0.0.1:0" for an ephemeral port.
func (s *Simulator) Listen(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("simulator: listen %s: %w", addr, err)
	}
	uc, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return fmt.Errorf("simulator: unexpected conn type %T", pc)
	}
	s.conn = uc
	s.log.Info("camera simulator listening",
		zap.String("addr", uc.LocalAddr().String()),
		zap.Float64("drop_rate", s.opts.DropRate),
		zap.Duration("reply_delay", s.opts.ReplyDelay),
		zap.Int64("rate_bytes_per_sec", s.opts.RateBytesPerSec))
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Simulator) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve answers requests until ctx is done or Close is called.
func (s *Simulator) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("simulator: serve before listen")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-s.done:
		}
	}()

	buf := make([]byte, maxRequest)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				cancel()
				s.wg.Wait()
				return nil
			}
			s.log.Warn("read request", zap.Error(err))
			continue
		}
		s.handle(ctx, strings.TrimSpace(string(buf[:n])), from)
	}
}

func (s *Simulator) handle(ctx context.Context, name string, from *net.UDPAddr) {
	s.received.Add(1)
	reply, ok := s.table[name]
	if !ok {
		s.unknown.Add(1)
		s.log.Debug("unknown command", zap.String("cmd", name), zap.Stringer("from", from))
		return
	}
	if s.opts.DropRate > 0 && s.rng.Float64() < s.opts.DropRate {
		s.dropped.Add(1)
		s.log.Debug("dropping request", zap.String("cmd", name), zap.Stringer("from", from))
		return
	}
	if s.opts.ReplyDelay <= 0 {
		s.reply(ctx, name, reply, from)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(s.opts.ReplyDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.reply(ctx, name, reply, from)
	}()
}

func (s *Simulator) reply(ctx context.Context, name string, datagrams [][]byte, to *net.UDPAddr) {
	for i, d := range datagrams {
		if s.bucket != nil {
			if err := s.bucket.Take(ctx, int64(len(d))); err != nil {
				return
			}
		}
		if _, err := s.conn.WriteToUDP(d, to); err != nil {
			s.log.Warn("write reply", zap.String("cmd", name), zap.Int("datagram", i), zap.Error(err))
			return
		}
	}
	s.replied.Add(1)
	s.log.Debug("replied", zap.String("cmd", name), zap.Int("datagrams", len(datagrams)), zap.Stringer("to", to))
}

func (s *Simulator) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Replied:  s.replied.Load(),
		Dropped:  s.dropped.Load(),
		Unknown:  s.unknown.Load(),
	}
}

// Close stops Serve and waits for delayed replies to finish or be abandoned.
func (s *Simulator) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			err = s.conn.Close()
		}
	})
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}
