package streams

import (
	"io"
)

// Closed is an interface which defines if a method to check if a stream is closed or not
type Closed interface {
	Closed() bool
}

var (
	_ Buffered           = (*BufferedStream)(nil)
	_ io.ReadWriteCloser = (*BufferedStream)(nil)
	_ Closed             = (*BufferedStream)(nil)
	_ io.StringWriter    = (*BufferedStream)(nil)
)
