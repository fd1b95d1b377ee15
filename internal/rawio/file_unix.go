//go:build unix

package rawio

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// sysRead reads straight from the descriptor, so EAGAIN on a non-blocking descriptor is visible to us
// instead of being absorbed by the runtime poller.
func (c *FileChannel) sysRead(p []byte) (int, error) {
	n, err := unix.Read(int(c.fd), p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, ErrWouldBlock
		}
		return 0, &os.PathError{Op: "read", Path: c.file.Name(), Err: err}
	}
	return n, nil
}

func (c *FileChannel) sysWrite(p []byte) (int, error) {
	n, err := unix.Write(int(c.fd), p)
	if err != nil {
		if n < 0 {
			n = 0
		}
		if err == unix.EAGAIN {
			if n > 0 {
				return n, nil
			}
			return 0, ErrWouldBlock
		}
		return n, &os.PathError{Op: "write", Path: c.file.Name(), Err: err}
	}
	return n, nil
}

// SetNonblock switches the descriptor between blocking and non-blocking mode
func (c *FileChannel) SetNonblock(nonblocking bool) error {
	if c.closed {
		return errors.WithStack(os.ErrClosed)
	}
	return errors.WithStack(unix.SetNonblock(int(c.fd), nonblocking))
}
