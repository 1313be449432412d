// Package netstack maps configured transport kinds to transport.Dialer
// implementations.
package netstack

import (
	"strings"

	"camlink/pkg/transport"
	"camlink/pkg/transport/mem"
	"camlink/pkg/transport/udp"
)

// Options carries per-kind tuning.
type Options struct {
	// UDPReadBuffer is the requested SO_RCVBUF for udp sockets.
	UDPReadBuffer int
	// Mem is the in-process transport that "mem" resolves to. A fresh one
	// is created when nil, which is only useful if the caller listens on it.
	Mem *mem.Transport
}

// NewByKind constructs a Dialer by string kind.
func NewByKind(kind string, opts Options) (transport.Dialer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "udp", "udp4", "udp6":
		return udp.New(udp.Options{ReadBuffer: opts.UDPReadBuffer}), nil
	case "mem", "inproc":
		if opts.Mem != nil {
			return opts.Mem, nil
		}
		return mem.New(), nil
	default:
		return nil, ErrUnknownKind(kind)
	}
}

// ErrUnknownKind is returned for kinds no transport implements.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
