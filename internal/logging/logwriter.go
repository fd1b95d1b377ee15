package logging

import (
	"sync"

	"github.com/bokysan/streamio/internal/textio"
)

// TextWriter adapts a text stream to io.Writer, so it can be used as a log output. Writes from different
// goroutines are serialized.
type TextWriter struct {
	mutex  sync.Mutex
	stream *textio.TextStream
}

func NewTextWriter(stream *textio.TextStream) *TextWriter {
	return &TextWriter{
		stream: stream,
	}
}

func (w *TextWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, err := w.stream.Write(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *TextWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.stream.Close()
}

func (w *TextWriter) String() string {
	return w.stream.String()
}
