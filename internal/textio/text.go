// Package textio implements a text layer over buffered byte streams: incremental decoding and encoding, newline
// handling, and positions which survive the encoding boundary.
package textio

import (
	"fmt"
	"io"

	"github.com/bokysan/streamio/internal/codec"
	"github.com/bokysan/streamio/internal/streams"
	log "github.com/sirupsen/logrus"
)

// positionSnapshot is taken each time a chunk is decoded while telling is enabled: the decoder flags before the
// chunk, and every byte fed to the decoder since then (its buffered input followed by the chunk).
type positionSnapshot struct {
	decFlags uint64
	input    []byte
}

// TextStream reads and writes text over a buffered byte stream
type TextStream struct {
	buffer   streams.Buffered
	detached bool

	encoding *codec.Info
	errors   codec.ErrorPolicy
	decoder  codec.Decoder
	encoder  codec.Encoder
	newlines *NewlineDecoder

	newline        Newline
	readUniversal  bool
	readTranslate  bool
	readNL         string
	writeTranslate bool
	writeNL        string

	lineBuffering bool
	writeThrough  bool
	chunkSize     int

	decoded  DecodeBuffer
	b2cratio float64
	snapshot *positionSnapshot
	seekable bool
	telling  bool

	pending      [][]byte
	pendingCount int
}

// NewTextStream wraps a buffered byte stream
func NewTextStream(buffer streams.Buffered, opts Options) (*TextStream, error) {
	if buffer == nil {
		return nil, streams.UsageErrorf("init", "buffer must not be nil")
	}
	if opts.ChunkSize < 0 {
		return nil, streams.UsageErrorf("init", "chunk size must be strictly positive")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Encoding == "" {
		opts.Encoding = "utf-8"
	}
	if opts.Newline < NewlineDefault || opts.Newline > NewlineCRLF {
		return nil, streams.UsageErrorf("init", "illegal newline value: %d", opts.Newline)
	}

	info, err := codec.Lookup(opts.Encoding)
	if err != nil {
		return nil, streams.UsageErrorf("init", "%v", err)
	}
	policy, err := codec.ParseErrorPolicy(opts.Errors)
	if err != nil {
		return nil, streams.UsageErrorf("init", "%v", err)
	}

	t := &TextStream{
		buffer:        buffer,
		encoding:      info,
		errors:        policy,
		newline:       opts.Newline,
		lineBuffering: opts.LineBuffering,
		writeThrough:  opts.WriteThrough,
		chunkSize:     opts.ChunkSize,
	}

	t.readUniversal = opts.Newline == NewlineDefault || opts.Newline == NewlineUntranslated
	t.readTranslate = opts.Newline == NewlineDefault
	t.readNL = opts.Newline.literal()
	t.writeTranslate = opts.Newline != NewlineUntranslated
	t.writeNL = t.readNL
	if t.writeNL == "" {
		t.writeNL = lineSeparator()
	}

	if buffer.Readable() {
		t.decoder = info.NewDecoder(policy)
		if t.readUniversal {
			t.newlines = NewNewlineDecoder(t.decoder, t.readTranslate)
			t.decoder = t.newlines
		}
	}
	if buffer.Writable() {
		t.encoder = info.NewEncoder(policy)
	}

	t.seekable = buffer.Seekable()
	t.telling = t.seekable

	if t.seekable && t.encoder != nil {
		// Don't write a start-of-stream marker in the middle of a file
		pos, err := buffer.Tell()
		if err != nil {
			return nil, err
		}
		if pos != 0 {
			if err := t.encoder.SetState(0); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

func (t *TextStream) String() string {
	if t.buffer == nil {
		return fmt.Sprintf("TextStream(detached, encoding=%v)", t.encoding)
	}
	return fmt.Sprintf("TextStream(%v, encoding=%v)", t.buffer, t.encoding)
}

func (t *TextStream) checkAttached(op string) error {
	if t.detached {
		return streams.UsageErrorf(op, "underlying buffer has been detached")
	}
	if t.buffer == nil {
		return streams.UsageErrorf(op, "stream is not initialized")
	}
	return nil
}

func (t *TextStream) checkClosed(op string) error {
	if err := t.checkAttached(op); err != nil {
		return err
	}
	if t.buffer.Closed() {
		return streams.UsageErrorf(op, "I/O operation on closed file")
	}
	return nil
}

// Flush writes out pending text, flushes the byte stream and re-enables telling
func (t *TextStream) Flush() error {
	if err := t.checkClosed("flush"); err != nil {
		return err
	}
	t.telling = t.seekable
	if err := t.writeFlush(); err != nil {
		return err
	}
	return t.buffer.Flush()
}

// Close flushes and closes the byte stream. The byte stream is closed even if the flush fails.
func (t *TextStream) Close() error {
	if err := t.checkAttached("close"); err != nil {
		return err
	}
	if t.buffer.Closed() {
		return nil
	}
	flushErr := t.Flush()
	if flushErr != nil {
		log.WithError(flushErr).Debugf("%v: flush before close failed", t)
	}
	return streams.ChainErrors(t.buffer.Close(), flushErr)
}

// Closed returns true if the byte stream has been closed
func (t *TextStream) Closed() bool {
	if t.buffer == nil {
		return false
	}
	return t.buffer.Closed()
}

// Detach flushes the stream and returns the byte stream. The text stream is unusable afterwards.
func (t *TextStream) Detach() (streams.Buffered, error) {
	if err := t.checkAttached("detach"); err != nil {
		return nil, err
	}
	if err := t.Flush(); err != nil {
		return nil, err
	}
	buffer := t.buffer
	t.buffer = nil
	t.detached = true
	return buffer, nil
}

// Truncate flushes and truncates the byte stream. A negative size truncates at the current position.
func (t *TextStream) Truncate(size int64) (int64, error) {
	if err := t.checkClosed("truncate"); err != nil {
		return 0, err
	}
	if err := t.Flush(); err != nil {
		return 0, err
	}
	return t.buffer.Truncate(size)
}

// Reconfigure changes line buffering and write-through on an open stream. Pending text is flushed first.
func (t *TextStream) Reconfigure(opts ReconfigureOptions) error {
	if err := t.checkClosed("reconfigure"); err != nil {
		return err
	}
	if err := t.Flush(); err != nil {
		return err
	}
	if opts.LineBuffering != nil {
		t.lineBuffering = *opts.LineBuffering
	}
	if opts.WriteThrough != nil {
		t.writeThrough = *opts.WriteThrough
	}
	return nil
}

// Buffer returns the underlying byte stream, nil once detached
func (t *TextStream) Buffer() streams.Buffered {
	return t.buffer
}

func (t *TextStream) Readable() bool {
	return t.buffer != nil && t.buffer.Readable()
}

func (t *TextStream) Writable() bool {
	return t.buffer != nil && t.buffer.Writable()
}

func (t *TextStream) Seekable() bool {
	return t.buffer != nil && t.seekable && !t.Closed()
}

func (t *TextStream) Fileno() (uintptr, error) {
	if err := t.checkAttached("fileno"); err != nil {
		return 0, err
	}
	return t.buffer.Fileno()
}

func (t *TextStream) Isatty() bool {
	return t.buffer != nil && t.buffer.Isatty()
}

// Encoding returns the canonical name of the encoding
func (t *TextStream) Encoding() string {
	return t.encoding.Name
}

// Errors returns the codec error policy
func (t *TextStream) Errors() codec.ErrorPolicy {
	return t.errors
}

// Newline returns the configured newline mode
func (t *TextStream) Newline() Newline {
	return t.newline
}

// Newlines lists the line endings read so far. It is only tracked in the universal newline modes.
func (t *TextStream) Newlines() []string {
	if t.newlines == nil {
		return nil
	}
	return t.newlines.Newlines()
}

func (t *TextStream) LineBuffering() bool {
	return t.lineBuffering
}

func (t *TextStream) WriteThrough() bool {
	return t.writeThrough
}

var (
	_ io.Closer       = (*TextStream)(nil)
	_ streams.Closed  = (*TextStream)(nil)
	_ io.StringWriter = (*TextStream)(nil)
)
