package rawio

import (
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// ConnChannel is a raw channel over a network connection. It is not seekable. Non-blocking behaviour is
// obtained with deadlines: when a read or write deadline expires, the call reports ErrWouldBlock.
type ConnChannel struct {
	net.Conn
	closed bool
}

// NewConnChannel wraps a net.Conn. It will not create a new instance if the connection is already wrapped.
func NewConnChannel(conn net.Conn) *ConnChannel {
	if c, ok := conn.(*ConnChannel); ok {
		return c
	}
	return &ConnChannel{
		Conn: conn,
	}
}

func (c *ConnChannel) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			return 0, io.EOF
		}
		if isTimeout(err) {
			return 0, ErrWouldBlock
		}
		return 0, errors.WithStack(err)
	}
	return n, nil
}

func (c *ConnChannel) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if err != nil {
		if isTimeout(err) {
			if n > 0 {
				return n, nil
			}
			return 0, ErrWouldBlock
		}
		return n, errors.WithStack(err)
	}
	return n, nil
}

func (c *ConnChannel) Seek(int64, int) (int64, error) {
	return 0, errors.Wrap(ErrUnsupported, "connection is not seekable")
}

func (c *ConnChannel) Tell() (int64, error) {
	return 0, errors.Wrap(ErrUnsupported, "connection is not seekable")
}

func (c *ConnChannel) Truncate(int64) (int64, error) {
	return 0, errors.Wrap(ErrUnsupported, "connection can not be truncated")
}

func (c *ConnChannel) Readable() bool { return true }
func (c *ConnChannel) Writable() bool { return true }
func (c *ConnChannel) Seekable() bool { return false }

// Fileno returns the socket descriptor, when the connection exposes one
func (c *ConnChannel) Fileno() (uintptr, error) {
	sc, ok := c.Conn.(syscall.Conn)
	if !ok {
		return 0, errors.Wrap(ErrUnsupported, "connection has no file descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	var fd uintptr
	if err := raw.Control(func(f uintptr) { fd = f }); err != nil {
		return 0, errors.WithStack(err)
	}
	return fd, nil
}

func (c *ConnChannel) Isatty() bool { return false }

// Close will close the underlying connection. If the Close has already been called, it will do nothing
func (c *ConnChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.Conn.Close(); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return errors.WithStack(err)
	}
	return nil
}

func (c *ConnChannel) Closed() bool {
	return c.closed
}

func (c *ConnChannel) String() string {
	return c.Conn.RemoteAddr().Network() + "://" + c.Conn.RemoteAddr().String()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
