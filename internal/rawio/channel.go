package rawio

import (
	"io"
	"syscall"

	"github.com/pkg/errors"
)

// ErrWouldBlock is returned by a non-blocking channel which currently has no data to read or no capacity to
// accept a write. It is not a failure: the caller is expected to retry later.
var ErrWouldBlock = errors.New("operation would block")

// ErrUnsupported is returned by channels for operations they cannot perform at all (e.g. seeking a socket).
var ErrUnsupported = errors.New("operation not supported by channel")

// RawChannel is an unbuffered byte source and/or sink: a file, a pipe or a socket.
//
// Read returns (0, io.EOF) at the end of the stream. A read returning zero bytes and no error is also
// treated as the end of the stream. Write may accept fewer bytes than given without returning an error.
// Both return ErrWouldBlock (with zero bytes) if the channel is non-blocking and would have to wait.
// A call interrupted by a signal returns an error for which IsInterrupted is true; callers retry it.
type RawChannel interface {
	io.ReadWriteCloser

	// Seek moves the channel cursor and returns the new absolute offset
	Seek(offset int64, whence int) (int64, error)
	// Tell returns the current absolute offset of the channel
	Tell() (int64, error)
	// Truncate resizes the channel to `size` bytes and returns the new size
	Truncate(size int64) (int64, error)

	Readable() bool
	Writable() bool
	Seekable() bool

	// Fileno returns the underlying OS file descriptor, if any
	Fileno() (uintptr, error)
	// Isatty returns true if the channel is connected to a terminal
	Isatty() bool

	// Closed returns true once Close has been called
	Closed() bool
}

// IsInterrupted returns true if the error reports a call interrupted by the delivery of a signal (EINTR).
func IsInterrupted(err error) bool {
	return err != nil && errors.Is(err, syscall.EINTR)
}

// IsEOF returns true if the read result should be treated as end of stream.
func IsEOF(n int, err error) bool {
	return n == 0 && (err == nil || err == io.EOF || errors.Is(err, io.EOF))
}
