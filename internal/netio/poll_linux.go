//go:build linux

package netio

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Poller tracks fd interest sets and turns one poll(2) call into a batch of
// ReadyFD results. Ported from the teacher's asyncrt/netpoll_linux.go, with
// the executor-specific waiter map replaced by a plain interest set the
// caller (cmd/reactor serve) registers and drains explicitly.
type Poller struct {
	mu       sync.Mutex
	interest map[int32]int16
}

// New constructs an empty Poller.
func New() *Poller {
	return &Poller{interest: make(map[int32]int16)}
}

// Register adds kind to fd's interest set. Safe to call multiple times;
// interests accumulate until Unregister removes them.
func (p *Poller) Register(fd int32, kind Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interest[fd] |= kindEvents(kind)
}

// Unregister removes kind from fd's interest set, dropping the fd entirely
// once no interests remain.
func (p *Poller) Unregister(fd int32, kind Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	events, ok := p.interest[fd]
	if !ok {
		return
	}
	events &^= kindEvents(kind)
	if events == 0 {
		delete(p.interest, fd)
		return
	}
	p.interest[fd] = events
}

func kindEvents(kind Kind) int16 {
	if kind == Write {
		return unix.POLLOUT
	}
	return unix.POLLIN
}

// Poll blocks for up to timeoutMs (negative means forever) and returns the
// fds whose registered interests fired. A zero-length, nil-error result
// means the timeout elapsed with nothing ready, or that no fd is
// registered, in which case Poll returns at once without blocking.
func (p *Poller) Poll(timeoutMs int64) ([]ReadyFD, error) {
	p.mu.Lock()
	if len(p.interest) == 0 {
		p.mu.Unlock()
		return nil, nil
	}
	pfds := make([]unix.PollFd, 0, len(p.interest))
	for fd, events := range p.interest {
		pfds = append(pfds, unix.PollFd{Fd: fd, Events: events})
	}
	p.mu.Unlock()

	timeout := clampTimeout(timeoutMs)
	for {
		n, err := unix.Poll(pfds, timeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		break
	}

	ready := make([]ReadyFD, 0, len(pfds))
	for _, pfd := range pfds {
		if pfd.Revents == 0 {
			continue
		}
		r := ReadyFD{
			FD:       pfd.Fd,
			Readable: pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0,
			Writable: pfd.Revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0,
		}
		ready = append(ready, r)
	}
	return ready, nil
}

func clampTimeout(timeoutMs int64) int {
	const maxTimeout = int64(^uint(0) >> 1)
	switch {
	case timeoutMs < 0:
		return -1
	case timeoutMs > maxTimeout:
		return int(maxTimeout)
	default:
		return int(timeoutMs)
	}
}
