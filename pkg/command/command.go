// Package command describes the commands a remote camera understands and the
// shape (datagram size x datagram count) of the response each one produces.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmptyName    = errors.New("command: empty name")
	ErrInvalidShape = errors.New("command: datagram size and count must be positive")
	ErrNotASCII     = errors.New("command: name must be printable ASCII")
	ErrTooLarge     = errors.New("command: response too large")
)

// MaxTotal caps the response bytes one command may expect; the controller
// allocates the whole response up front.
const MaxTotal = 64 << 20

// Command is an immutable descriptor of the bytes to transmit and the expected
// response shape. The wire payload is the ASCII command name.
type Command struct {
	name  string
	size  int
	count int
}

// New builds a descriptor expecting count datagrams of size bytes each.
// The argument order follows the device documentation: count before size.
func New(name string, count, size int) (Command, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Command{}, ErrEmptyName
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return Command{}, fmt.Errorf("%w: %q", ErrNotASCII, name)
		}
	}
	if size <= 0 || count <= 0 {
		return Command{}, fmt.Errorf("%w: %s %dx%d", ErrInvalidShape, name, count, size)
	}
	if count > MaxTotal/size {
		return Command{}, fmt.Errorf("%w: %s %dx%d exceeds %d bytes", ErrTooLarge, name, count, size, MaxTotal)
	}
	return Command{name: name, size: size, count: count}, nil
}

// MustNew is like New but panics on an invalid descriptor.
func MustNew(name string, count, size int) Command {
	c, err := New(name, count, size)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Command) Name() string { return c.name }

// Payload returns a fresh copy of the request datagram.
func (c Command) Payload() []byte { return []byte(c.name) }

func (c Command) DatagramSize() int  { return c.size }
func (c Command) DatagramCount() int { return c.count }

// Total is the number of response bytes a complete exchange yields.
func (c Command) Total() int { return c.size * c.count }

// IsZero reports whether c was not built through New.
func (c Command) IsZero() bool { return c.name == "" }

func (c Command) String() string {
	return fmt.Sprintf("Command %s expect %d x %dBytes", c.name, c.count, c.size)
}

// Entry couples a command with the timeout it is normally issued with.
type Entry struct {
	Command Command
	Timeout time.Duration
}

// Table is a thread-safe, out-of-band command table keyed by name.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewTable() *Table { return &Table{entries: make(map[string]Entry)} }

// Register adds or replaces the entry for cmd's name.
func (t *Table) Register(cmd Command, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[cmd.Name()] = Entry{Command: cmd, Timeout: timeout}
}

// Lookup returns the entry registered under name.
func (t *Table) Lookup(name string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	return e, ok
}

// Entries returns all entries sorted by name.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Command.Name() < out[j].Command.Name() })
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// DefaultTimeout is the per-command budget the demo driver uses.
const DefaultTimeout = 3000 * time.Millisecond

// Defaults returns the table of commands the reference camera supports.
func Defaults() *Table {
	t := NewTable()
	t.Register(MustNew("RESET", 1, 4), DefaultTimeout)
	t.Register(MustNew("FILTER", 1, 4), DefaultTimeout)
	t.Register(MustNew("STATUS", 1, 8), DefaultTimeout)
	t.Register(MustNew("IMAGE", 480, 640), DefaultTimeout)
	return t
}
