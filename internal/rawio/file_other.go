//go:build !unix

package rawio

import (
	"io"

	"github.com/pkg/errors"
)

func (c *FileChannel) sysRead(p []byte) (int, error) {
	n, err := c.file.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, errors.WithStack(err)
}

func (c *FileChannel) sysWrite(p []byte) (int, error) {
	n, err := c.file.Write(p)
	return n, errors.WithStack(err)
}

// SetNonblock is not available on this platform
func (c *FileChannel) SetNonblock(nonblocking bool) error {
	return errors.Wrap(ErrUnsupported, "non-blocking mode")
}
