package control

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// run is the manager loop: idle until a task arrives, execute it, publish the
// Result, repeat. It only returns once stop is closed.
func (c *Controller) run() {
	defer close(c.exited)
	for {
		t, ok := c.q.pop(c.stop)
		if !ok {
			return
		}
		if t == nil {
			c.log.Warn("manager woke without a task; continuing")
			continue
		}
		r := c.execute(t)
		switch {
		case r.Success():
			c.mSucceeded.Add(1)
		case KindOf(r.Err) == KindTimeout:
			c.mTimeouts.Add(1)
			c.mFailed.Add(1)
		default:
			c.mFailed.Add(1)
		}
		t.complete(r)
	}
}

func (c *Controller) execute(t *task) (res Result) {
	log := c.log.With(zap.String("cmd", t.cmd.Name()))
	defer func() {
		if p := recover(); p != nil {
			log.Error("exchange panicked", zap.Any("panic", p))
			res = failed(nil, &ProtocolError{
				Kind:     KindIOFailure,
				Command:  t.cmd.Name(),
				Expected: t.cmd.Total(),
				SoFar:    []byte{},
				Cause:    fmt.Errorf("panic: %v", p),
			})
		}
	}()

	queued := time.Since(t.enqueued)
	log.Debug("exchange start",
		zap.Int("datagram_size", t.cmd.DatagramSize()),
		zap.Int("datagram_count", t.cmd.DatagramCount()),
		zap.Duration("timeout", t.timeout),
		zap.Duration("queued", queued))

	start := time.Now()
	data, err := c.x.run(t.cmd, t.timeout)
	if err != nil {
		log.Warn("exchange failed", zap.Int("bytes", len(data)), zap.Duration("took", time.Since(start)), zap.Error(err))
		return failed(data, err)
	}
	log.Debug("exchange complete", zap.Int("bytes", len(data)), zap.Duration("took", time.Since(start)))
	return succeeded(data)
}
