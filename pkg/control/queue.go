package control

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"camlink/pkg/command"
)

// OverflowPolicy decides what Submit does when the queue is full.
type OverflowPolicy int

const (
	// OverflowBlock waits for space until the caller's context is done.
	OverflowBlock OverflowPolicy = iota
	// OverflowReject fails the submission with ErrQueueOverflow.
	OverflowReject
)

func (p OverflowPolicy) String() string {
	if p == OverflowReject {
		return "reject"
	}
	return "block"
}

// ParseOverflowPolicy accepts "block" (or empty) and "reject".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return OverflowBlock, nil
	case "reject", "fail":
		return OverflowReject, nil
	default:
		return 0, fmt.Errorf("control: unknown overflow policy %q", s)
	}
}

// task pairs a command and its timeout with a single-slot result channel.
// The manager writes done exactly once; the submitting caller reads it.
type task struct {
	cmd      command.Command
	timeout  time.Duration
	enqueued time.Time
	done     chan Result
}

func newTask(cmd command.Command, timeout time.Duration) *task {
	return &task{cmd: cmd, timeout: timeout, done: make(chan Result, 1)}
}

func (t *task) complete(r Result) { t.done <- r }

func (t *task) wait() Result { return <-t.done }

// queue is a bounded FIFO of tasks shared between callers and the manager.
type queue struct {
	ch     chan *task
	policy OverflowPolicy

	// mu orders pushes against the final drain in close
	mu     sync.RWMutex
	closed bool
}

func newQueue(capacity int, policy OverflowPolicy) *queue {
	return &queue{ch: make(chan *task, capacity), policy: policy}
}

func (q *queue) push(ctx context.Context, t *task, stop <-chan struct{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-stop:
		return ErrClosed
	default:
	}
	t.enqueued = time.Now()
	if q.policy == OverflowReject {
		select {
		case q.ch <- t:
			return nil
		default:
			return fmt.Errorf("%w (capacity %d)", ErrQueueOverflow, cap(q.ch))
		}
	}
	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("control: waiting for queue space: %w", ctx.Err())
	case <-stop:
		return ErrClosed
	}
}

// pop blocks for the next task. It returns false once stop is closed.
func (q *queue) pop(stop <-chan struct{}) (*task, bool) {
	select {
	case <-stop:
		return nil, false
	default:
	}
	select {
	case <-stop:
		return nil, false
	case t := <-q.ch:
		return t, true
	}
}

func (q *queue) len() int { return len(q.ch) }

// close rejects further pushes and fails every task still queued.
func (q *queue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	n := 0
	for {
		select {
		case t := <-q.ch:
			t.complete(failed(nil, ErrClosed))
			n++
		default:
			return n
		}
	}
}
