package rawio

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// FileChannel is a raw channel over an operating system file descriptor: a regular file, a pipe or a
// terminal.
type FileChannel struct {
	file     *os.File
	fd       uintptr
	readable bool
	writable bool
	seekable int // -1 = not probed yet, 0 = no, 1 = yes
	closed   bool
}

// OpenFile opens a file with a mode string: one of "r", "w", "a" or "x", optionally followed by "+" to open
// the file for both reading and writing. A "b" or "t" in the mode is accepted and ignored.
func OpenFile(name, mode string, perm os.FileMode) (*FileChannel, error) {
	flag, readable, writable, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log.Debugf("Opened %v with mode %q", name, mode)
	return NewFileChannel(f, readable, writable), nil
}

// NewFileChannel wraps an already opened file. The caller declares which directions are allowed.
func NewFileChannel(f *os.File, readable, writable bool) *FileChannel {
	return &FileChannel{
		file:     f,
		fd:       f.Fd(),
		readable: readable,
		writable: writable,
		seekable: -1,
	}
}

func parseMode(mode string) (flag int, readable, writable bool, err error) {
	plus := strings.Contains(mode, "+")
	cleaned := strings.NewReplacer("+", "", "b", "", "t", "").Replace(mode)
	switch cleaned {
	case "r":
		flag, readable = os.O_RDONLY, true
	case "w":
		flag, writable = os.O_WRONLY|os.O_CREATE|os.O_TRUNC, true
	case "a":
		flag, writable = os.O_WRONLY|os.O_CREATE|os.O_APPEND, true
	case "x":
		flag, writable = os.O_WRONLY|os.O_CREATE|os.O_EXCL, true
	default:
		return 0, false, false, errors.Errorf("invalid mode: %q", mode)
	}
	if plus {
		flag = flag&^(os.O_RDONLY|os.O_WRONLY) | os.O_RDWR
		readable, writable = true, true
	}
	return flag, readable, writable, nil
}

func (c *FileChannel) Read(p []byte) (int, error) {
	if c.closed {
		return 0, errors.WithStack(os.ErrClosed)
	}
	if !c.readable {
		return 0, errors.Wrapf(ErrUnsupported, "%v is not readable", c.file.Name())
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.sysRead(p)
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

func (c *FileChannel) Write(p []byte) (int, error) {
	if c.closed {
		return 0, errors.WithStack(os.ErrClosed)
	}
	if !c.writable {
		return 0, errors.Wrapf(ErrUnsupported, "%v is not writable", c.file.Name())
	}
	return c.sysWrite(p)
}

func (c *FileChannel) Seek(offset int64, whence int) (int64, error) {
	if c.closed {
		return 0, errors.WithStack(os.ErrClosed)
	}
	n, err := c.file.Seek(offset, whence)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return n, nil
}

func (c *FileChannel) Tell() (int64, error) {
	return c.Seek(0, io.SeekCurrent)
}

func (c *FileChannel) Truncate(size int64) (int64, error) {
	if c.closed {
		return 0, errors.WithStack(os.ErrClosed)
	}
	if err := c.file.Truncate(size); err != nil {
		return 0, errors.WithStack(err)
	}
	return size, nil
}

func (c *FileChannel) Readable() bool { return c.readable }
func (c *FileChannel) Writable() bool { return c.writable }

// Seekable probes the descriptor once; pipes, sockets and terminals are not seekable.
func (c *FileChannel) Seekable() bool {
	if c.seekable < 0 {
		if _, err := c.file.Seek(0, io.SeekCurrent); err != nil {
			c.seekable = 0
		} else {
			c.seekable = 1
		}
	}
	return c.seekable == 1
}

func (c *FileChannel) Fileno() (uintptr, error) {
	if c.closed {
		return 0, errors.WithStack(os.ErrClosed)
	}
	return c.fd, nil
}

func (c *FileChannel) Isatty() bool {
	return !c.closed && term.IsTerminal(int(c.fd))
}

// Close closes the file. Calling Close on a closed channel will simply succeed.
func (c *FileChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.file.Close(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (c *FileChannel) Closed() bool {
	return c.closed
}

// Name returns the name of the underlying file
func (c *FileChannel) Name() string {
	return c.file.Name()
}

func (c *FileChannel) String() string {
	return c.file.Name()
}
