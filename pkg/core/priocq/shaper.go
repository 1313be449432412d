// Package priocq provides rate shaping for datagram emitters.
package priocq

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a token bucket for byte-rate shaping.
type TokenBucket struct {
	mu       sync.Mutex
	capacity int64
	tokens   int64
	rate     int64 // tokens per second
	last     time.Time
	nowFn    func() time.Time
}

// NewTokenBucket builds a full bucket refilled at ratePerSec. A non-positive
// capacity defaults to one second worth of tokens.
func NewTokenBucket(ratePerSec, capacity int64) *TokenBucket {
	if capacity <= 0 {
		capacity = ratePerSec
	}
	return &TokenBucket{capacity: capacity, tokens: capacity, rate: ratePerSec, last: time.Now(), nowFn: time.Now}
}

// Allow tries to consume n tokens; if not enough, returns duration to wait.
func (b *TokenBucket) Allow(n int64) (ok bool, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.nowFn()
	if dt := now.Sub(b.last); dt > 0 {
		add := (b.rate * dt.Nanoseconds()) / int64(time.Second)
		if add > 0 {
			b.tokens += add
			if b.tokens > b.capacity {
				b.tokens = b.capacity
			}
			b.last = now
		}
	}
	if b.tokens >= n {
		b.tokens -= n
		return true, 0
	}
	if b.rate <= 0 {
		return false, time.Duration(1<<63 - 1)
	}
	need := n - b.tokens
	return false, time.Duration((need * int64(time.Second)) / b.rate)
}

// Take blocks until n tokens are consumed or ctx is done. Requests larger
// than the capacity are clamped so they can eventually pass.
func (b *TokenBucket) Take(ctx context.Context, n int64) error {
	if n > b.capacity {
		n = b.capacity
	}
	for {
		ok, wait := b.Allow(n)
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
