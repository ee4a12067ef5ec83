//go:build linux

package ptyexec

import (
	"sync"

	"golang.org/x/sys/unix"
)

const epollPollTimeoutMillis = 200

// epollReactor implements Reactor with a single epoll instance shared by
// every registered fd, matching the teacher corpus's Linux-first use of
// golang.org/x/sys/unix for direct syscall access.
type epollReactor struct {
	epfd int

	mu        sync.Mutex
	callbacks map[int32]func() bool
	closed    chan struct{}
}

// NewReactor creates an epoll-backed Reactor.
func NewReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	r := &epollReactor{
		epfd:      epfd,
		callbacks: make(map[int32]func() bool),
		closed:    make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

func (r *epollReactor) AddReader(fd uintptr, onReadable func() bool) func() {
	fdInt := int32(fd)

	r.mu.Lock()
	r.callbacks[fdInt] = onReadable
	r.mu.Unlock()

	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     fdInt,
	})

	var once sync.Once
	return func() {
		once.Do(func() { r.removeFd(fdInt, int(fd)) })
	}
}

func (r *epollReactor) removeFd(fdInt int32, fd int) {
	r.mu.Lock()
	delete(r.callbacks, fdInt)
	r.mu.Unlock()
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *epollReactor) loop() {
	events := make([]unix.EpollEvent, 16)
	for {
		select {
		case <-r.closed:
			return
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, epollPollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fdInt := events[i].Fd
			r.mu.Lock()
			cb := r.callbacks[fdInt]
			r.mu.Unlock()
			if cb == nil {
				continue
			}
			if !cb() {
				r.removeFd(fdInt, int(fdInt))
			}
		}
	}
}

func (r *epollReactor) Close() error {
	close(r.closed)
	return unix.Close(r.epfd)
}
