package streams

import (
	"fmt"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrWouldBlock is returned when nothing could be transferred because the raw channel is non-blocking and
// would have to wait. It is distinct from io.EOF and from a short read.
var ErrWouldBlock = rawio.ErrWouldBlock

// UsageError reports a programming error: an invalid argument, or an operation on a stream which is not
// initialized, closed or detached. It is never retried.
type UsageError struct {
	Op  string
	Msg string
}

func (e *UsageError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

// UnsupportedOperationError reports an operation the stream can not perform in its configuration, such as
// writing to a read-only stream or seeking a pipe.
type UnsupportedOperationError struct {
	Op  string
	Msg string
}

func (e *UnsupportedOperationError) Error() string {
	return e.Op + ": " + e.Msg
}

// ChannelError reports a failure of the raw channel, or a raw channel which returned a length outside the
// requested bounds.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("raw %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// BlockingPartialError is not a failure but a control signal: the write could not complete without blocking.
// Written is the exact number of bytes of the caller's data which were accepted (flushed to the raw channel
// or kept in the buffer). The caller should retry the rest later.
type BlockingPartialError struct {
	Written int
}

func (e *BlockingPartialError) Error() string {
	return fmt.Sprintf("write could not complete without blocking (%d bytes written)", e.Written)
}

// Is makes errors.Is(err, ErrWouldBlock) true for partial writes
func (e *BlockingPartialError) Is(target error) bool {
	return target == ErrWouldBlock
}

// PositionReconstructionError is returned when a text position cookie can not be produced or replayed.
type PositionReconstructionError struct {
	Msg string
}

func (e *PositionReconstructionError) Error() string {
	return e.Msg
}

// ReentrancyError is returned when a goroutine tries to enter a stream's critical section which it already
// holds, typically from a raw channel callback.
type ReentrancyError struct {
	Stream string
}

func (e *ReentrancyError) Error() string {
	return "reentrant call inside " + e.Stream
}

func usageError(op, format string, args ...interface{}) error {
	return errors.WithStack(&UsageError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

func unsupportedError(op, format string, args ...interface{}) error {
	return errors.WithStack(&UnsupportedOperationError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

func channelError(op string, err error) error {
	return errors.WithStack(&ChannelError{Op: op, Err: err})
}

// UsageErrorf creates a new UsageError for the given operation
func UsageErrorf(op, format string, args ...interface{}) error {
	return usageError(op, format, args...)
}

// UnsupportedErrorf creates a new UnsupportedOperationError for the given operation
func UnsupportedErrorf(op, format string, args ...interface{}) error {
	return unsupportedError(op, format, args...)
}

// PositionErrorf creates a new PositionReconstructionError
func PositionErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&PositionReconstructionError{Msg: fmt.Sprintf(format, args...)})
}

// ChainErrors combines the error of a final operation (typically closing the raw channel) with the error of
// the step before it (typically a flush). The primary error comes first; a nil primary returns the cause.
func ChainErrors(primary, cause error) error {
	if primary == nil {
		return cause
	}
	if cause == nil {
		return primary
	}
	return multierror.Append(primary, cause)
}

// IsUsageError returns true if the error chain contains a UsageError
func IsUsageError(err error) bool {
	var target *UsageError
	return errors.As(err, &target)
}

// IsUnsupported returns true if the error chain contains an UnsupportedOperationError
func IsUnsupported(err error) bool {
	var target *UnsupportedOperationError
	return errors.As(err, &target)
}
