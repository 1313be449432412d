//go:build linux || darwin || freebsd || netbsd || openbsd

package udp

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"camlink/pkg/transport"
)

func effectiveReadBuffer(c *net.UDPConn) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var serr error
	if err := rc.Control(func(fd uintptr) {
		size, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	}); err != nil {
		return 0, err
	}
	if serr != nil {
		return 0, os.NewSyscallError("getsockopt", serr)
	}
	return size, nil
}

// pollRead performs a single MSG_DONTWAIT receive on the socket.
func pollRead(c *net.UDPConn, b []byte) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var rerr error
	err = rc.Read(func(fd uintptr) bool {
		n, _, rerr = unix.Recvfrom(int(fd), b, unix.MSG_DONTWAIT)
		// never park in the poller; an empty socket is an answer
		return true
	})
	if err != nil {
		return 0, err
	}
	if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) {
		return 0, transport.ErrWouldBlock
	}
	if rerr != nil {
		return 0, os.NewSyscallError("recvfrom", rerr)
	}
	return n, nil
}
