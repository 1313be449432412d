//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package udp

import (
	"errors"
	"net"
	"time"

	"camlink/pkg/transport"
)

// pollWindow bounds the fallback poll where MSG_DONTWAIT is unavailable.
const pollWindow = time.Millisecond

func effectiveReadBuffer(*net.UDPConn) (int, error) {
	return 0, errors.New("udp: SO_RCVBUF readback unsupported on this platform")
}

func pollRead(c *net.UDPConn, b []byte) (int, error) {
	if err := c.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := c.Read(b)
	if transport.IsTimeout(err) {
		return 0, transport.ErrWouldBlock
	}
	return n, err
}
