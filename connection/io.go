// File: connection/io.go
// Package connection
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking socket plumbing: resolution with IPv6 preference, socket
// creation, best-effort kernel buffer widening, and the poll(2) readiness
// primitive behind Wait and Loop.

package connection

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

const (
	// recvChunk bounds one non-blocking receive.
	recvChunk = 128 * 1024

	// sendChunk bounds one non-blocking send. Sending the whole buffer in
	// one call is not portable across socket implementations with small
	// send-buffer ceilings.
	sendChunk = 128 * 1024

	// sockBufCeiling stops the kernel buffer widening loop.
	sockBufCeiling = 1 << 20
)

// dial resolves host, preferring IPv6 and falling back to IPv4, opens a
// non-blocking TCP socket and starts the connection attempt. A connection
// still in progress is success at this stage; completion is observed via
// poll writability.
func dial(host string, port int) (int, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return -1, fmt.Errorf("resolve %s: %w", host, err)
	}
	var v4, v6 net.IP
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			if v4 == nil {
				v4 = ip4
			}
		} else if v6 == nil {
			v6 = ip
		}
	}

	family := unix.AF_INET6
	var sa unix.Sockaddr
	switch {
	case v6 != nil:
		sa6 := &unix.SockaddrInet6{Port: port}
		copy(sa6.Addr[:], v6.To16())
		sa = sa6
	case v4 != nil:
		family = unix.AF_INET
		sa4 := &unix.SockaddrInet4{Port: port}
		copy(sa4.Addr[:], v4)
		sa = sa4
	default:
		return -1, fmt.Errorf("resolve %s: no addresses", host)
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	widenSocketBuffers(fd)

	if err := unix.Connect(fd, sa); err != nil &&
		err != unix.EINPROGRESS && err != unix.EWOULDBLOCK {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	return fd, nil
}

// widenSocketBuffers asks the kernel for larger send/receive buffers.
// Pure throughput optimization: every failure is silently absorbed. Each
// doubling is an independent attempt, capped when the kernel refuses, the
// value stops growing, or it reaches the ceiling.
func widenSocketBuffers(fd int) {
	for _, opt := range []int{unix.SO_SNDBUF, unix.SO_RCVBUF} {
		for i := 0; i < 10; i++ {
			before, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, opt)
			if err != nil {
				break
			}
			if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, opt, before*2); err != nil {
				break
			}
			after, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, opt)
			if err != nil || after <= before || after >= sockBufCeiling {
				break
			}
		}
	}
}

// pollOnce waits up to timeoutMs (negative blocks) for readiness on the
// socket and services it. Reports false only when the poll timed out with
// nothing to do. Interruption by a signal is retryable, not an error.
func (c *Connection) pollOnce(timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	if c.NeedsWrite() {
		fds[0].Events |= unix.POLLOUT
	}
	n, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	re := fds[0].Revents
	if re&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
		_ = c.OnRead()
	}
	if re&unix.POLLOUT != 0 && c.fd >= 0 {
		_ = c.OnWrite()
	}
	return true, nil
}
