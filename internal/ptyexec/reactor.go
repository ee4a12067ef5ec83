package ptyexec

// Reactor provides cooperative read-readiness notification around a file
// descriptor, letting one goroutine own blocking reads from many streams
// instead of spending a dedicated OS thread per stream.
type Reactor interface {
	// AddReader registers onReadable to be invoked whenever fd has data
	// ready to read. onReadable performs the actual bounded read itself and
	// returns false once the stream has ended (EOF or error), after which
	// the reactor stops invoking it and releases its resources for fd. The
	// returned remove func lets the caller deregister fd before it would
	// otherwise end, e.g. during unrelated session teardown; it is
	// idempotent and does not block on the callback's own goroutine.
	AddReader(fd uintptr, onReadable func() (keepGoing bool)) (remove func())

	// Close releases reactor-wide resources. Safe to call once at process
	// or session teardown.
	Close() error
}
