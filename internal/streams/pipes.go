package streams

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type logWriter struct {
	Name func() string
}

func (l *logWriter) Write(p []byte) (n int, err error) {
	log.Debugf("%v: %q", l.Name(), string(p))
	return len(p), nil
}

// Copy pipes everything from `r` to `w` through a buffer of `bufferSize` bytes and flushes `w` if it is
// buffered. With STREAMIO_PIPE_DEBUG=1 the transferred data is also written to the log.
func Copy(w io.Writer, r io.Reader, bufferSize int) (int64, error) {
	if os.Getenv("STREAMIO_PIPE_DEBUG") == "1" {
		src := r
		r = io.TeeReader(src, &logWriter{Name: func() string {
			return fmt.Sprintf("Read [%v]->%v", src, w)
		}})
	}
	n, err := io.CopyBuffer(w, r, make([]byte, bufferSize))
	if err != nil {
		return n, err
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		return n, f.Flush()
	}
	return n, nil
}

// TryClose closes a stream and just reports to log if it fails
func TryClose(closer io.Closer) {
	if closer == nil {
		return
	}

	if c, ok := closer.(Closed); ok {
		if c.Closed() {
			return
		}
	}

	if err := closer.Close(); err != nil && !strings.Contains(err.Error(), " use of closed network connection") {
		err = errors.WithStack(err)
		log.WithError(err).Errorf("Could not close stream: %v", err)
	}
}

// LogClose will log when closing a stream fails
func LogClose(closer io.Closer) error {
	if closer == nil {
		return nil
	}

	if c, ok := closer.(Closed); ok {
		if c.Closed() {
			return nil
		}
	}

	if err := closer.Close(); err != nil {
		err = errors.WithStack(err)
		log.WithError(err).Errorf("Could not close: %v", err)
		return err
	} else {
		return nil
	}
}
