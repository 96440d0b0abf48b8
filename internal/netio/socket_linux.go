//go:build linux

package netio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by Accept/Read/Write in place of EAGAIN, so
// callers can tell "not ready yet" from a real failure without reaching
// into unix.Errno themselves.
var ErrWouldBlock = errors.New("netio: would block")

// Listen opens a non-blocking IPv4 TCP listening socket bound to port on
// all interfaces, the one concrete transport cmd/reactor serve needs to
// drive a real accept/read/write demo against the scheduler.
func Listen(port int) (int32, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netio: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: setsockopt: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: bind: %w", err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: listen: %w", err)
	}
	return int32(fd), nil
}

// Accept non-blockingly accepts one pending connection, returning
// ErrWouldBlock if none is ready.
func Accept(listenFD int32) (int32, error) {
	connFD, _, err := unix.Accept4(int(listenFD), unix.SOCK_NONBLOCK)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return -1, ErrWouldBlock
	}
	if err != nil {
		return -1, fmt.Errorf("netio: accept: %w", err)
	}
	return int32(connFD), nil
}

// Read non-blockingly reads into buf, returning ErrWouldBlock if fd has
// nothing pending right now.
func Read(fd int32, buf []byte) (int, error) {
	n, err := unix.Read(int(fd), buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	if err != nil {
		return 0, fmt.Errorf("netio: read: %w", err)
	}
	return n, nil
}

// Write non-blockingly writes buf, returning ErrWouldBlock if the socket
// buffer is currently full.
func Write(fd int32, buf []byte) (int, error) {
	n, err := unix.Write(int(fd), buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	if err != nil {
		return 0, fmt.Errorf("netio: write: %w", err)
	}
	return n, nil
}

// Close releases fd.
func Close(fd int32) error {
	return unix.Close(int(fd))
}
