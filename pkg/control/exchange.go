package control

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"camlink/pkg/command"
	"camlink/pkg/transport"
)

// exchanger runs one send/receive cycle at a time on a Conn it does not share.
//
// Reassembly policy: bytes from every read are appended to scratch, which
// persists across reads within an exchange. Whenever scratch holds at least
// one datagram's worth, exactly DatagramSize bytes move to the output and the
// output offset advances by that same amount; any remainder stays in scratch
// as the start of the next datagram. Offset and copied bytes therefore never
// disagree, whether a datagram arrives in one read or several.
type exchanger struct {
	conn     transport.Conn
	rx       []byte // one read's worth; sized for the largest UDP datagram
	scratch  []byte
	maxStale int
	log      *zap.Logger
	now      func() time.Time
}

func newExchanger(conn transport.Conn, maxStale int, log *zap.Logger) *exchanger {
	return &exchanger{
		conn:     conn,
		rx:       make([]byte, transport.MaxDatagram),
		scratch:  make([]byte, 0, 2048),
		maxStale: maxStale,
		log:      log,
		now:      time.Now,
	}
}

// flush discards anything that arrived since the previous exchange, such as
// datagrams answering a command that already timed out.
func (x *exchanger) flush() {
	x.scratch = x.scratch[:0]
	dropped, bytes := 0, 0
	for dropped < x.maxStale {
		n, err := x.conn.Poll(x.rx)
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) || transport.IsClosed(err) {
				break
			}
			// e.g. a deferred ICMP refusal from the previous send
			x.log.Debug("flush read error", zap.Error(err))
			dropped++
			continue
		}
		if n == 0 {
			break
		}
		dropped++
		bytes += n
	}
	if dropped > 0 {
		x.log.Info("discarded stale data", zap.Int("reads", dropped), zap.Int("bytes", bytes))
	}
	if dropped >= x.maxStale {
		x.log.Warn("stale data flush hit its bound", zap.Int("max_stale", x.maxStale))
	}
}

// run executes the exchange for cmd. On failure it returns the bytes
// reassembled so far together with a *ProtocolError.
func (x *exchanger) run(cmd command.Command, timeout time.Duration) ([]byte, error) {
	size := cmd.DatagramSize()
	data := make([]byte, cmd.Total())
	received, transfer := 0, 0

	fail := func(kind Kind, elapsed time.Duration, cause error) ([]byte, error) {
		sofar := append([]byte(nil), data[:received]...)
		return sofar, &ProtocolError{
			Kind:     kind,
			Command:  cmd.Name(),
			Expected: len(data),
			SoFar:    sofar,
			Transfer: transfer,
			Elapsed:  elapsed,
			Cause:    cause,
		}
	}

	x.flush()

	if err := x.conn.Send(cmd.Payload()); err != nil {
		return fail(KindIOFailure, 0, fmt.Errorf("send: %w", err))
	}

	start := x.now()
	deadline := start.Add(timeout)

	for received < len(data) {
		if !x.now().Before(deadline) {
			break
		}
		n, err := x.conn.Recv(x.rx, deadline)
		if err != nil {
			switch {
			case transport.IsTimeout(err):
				// not terminal by itself; the deadline check above decides
				x.log.Debug("readiness wait elapsed", zap.String("cmd", cmd.Name()), zap.Int("transfer", transfer))
				continue
			case transport.IsClosed(err):
				return fail(KindConnectionClosed, x.now().Sub(start), err)
			default:
				return fail(KindIOFailure, x.now().Sub(start), fmt.Errorf("receive: %w", err))
			}
		}

		x.scratch = append(x.scratch, x.rx[:n]...)
		if len(x.scratch) < size {
			x.log.Debug("short data",
				zap.String("cmd", cmd.Name()),
				zap.Int("read", n),
				zap.Int("buffered", len(x.scratch)),
				zap.Int("transfer", transfer))
			continue
		}
		for len(x.scratch) >= size && received < len(data) {
			copy(data[received:received+size], x.scratch[:size])
			received += size
			transfer++
			x.scratch = x.scratch[:copy(x.scratch, x.scratch[size:])]
		}
	}

	elapsed := x.now().Sub(start)
	if received < len(data) {
		return fail(KindTimeout, elapsed, nil)
	}
	if len(x.scratch) > 0 {
		x.log.Debug("surplus bytes after complete response", zap.String("cmd", cmd.Name()), zap.Int("bytes", len(x.scratch)))
	}
	x.scratch = x.scratch[:0]
	return data, nil
}
