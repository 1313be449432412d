// Package transport defines the datagram connection the camera controller
// drives and the helpers used to classify its errors.
//
// Key concepts:
//   - Conn: a connection to one fixed remote endpoint, owned by a single
//     goroutine. Recv waits for readiness bounded by a deadline; Poll never
//     waits and reports ErrWouldBlock when nothing is pending.
//   - Dialer: builds Conns of one Kind (udp for devices, mem for tests).
//
// Implementations live in the udp and mem subpackages; netstack maps a
// configured kind string to a Dialer.
package transport
