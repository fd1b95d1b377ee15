package streams

import (
	"fmt"
	"io"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the buffer size used when none is configured
const DefaultBufferSize = 8192

type lifecycle int

const (
	stateUninitialized lifecycle = iota
	stateReady
	stateDetached
	stateClosed
)

// Buffered is the contract of a buffered byte stream. TextStream can wrap anything implementing it.
type Buffered interface {
	io.ReadWriteSeeker
	io.Closer

	ReadN(n int) ([]byte, error)
	Read1(n int) ([]byte, error)
	Peek(n int) ([]byte, error)
	ReadLine(limit int) ([]byte, error)
	Flush() error
	Tell() (int64, error)
	Truncate(size int64) (int64, error)
	Detach() (rawio.RawChannel, error)

	Readable() bool
	Writable() bool
	Seekable() bool
	Closed() bool
	Fileno() (uintptr, error)
	Isatty() bool
}

// BufferedStream sits between a raw channel and application code. It owns one fixed-size buffer which holds
// either read-ahead data or pending (write-behind) data, never both at the same time.
//
// A BufferedStream is created in one of three configurations: reader, writer or random access (reader and
// writer over a seekable channel). The zero value is an uninitialized stream; every operation on it fails
// with a UsageError.
type BufferedStream struct {
	raw        rawio.RawChannel
	readable   bool
	writable   bool
	bufferSize int
	buffer     []byte

	pos      int   // logical cursor in the buffer
	readEnd  int   // end of valid read-ahead, -1 if not primed
	writePos int   // start of pending write data
	writeEnd int   // end of pending write data, -1 if not primed
	rawPos   int   // raw channel cursor relative to the buffer start, -1 if unknown
	absPos   int64 // best known absolute raw offset, -1 if unknown

	lock       NonReentrantLock
	state      lifecycle
	attributes map[string]interface{}
}

// NewBufferedReader creates a read-only buffered stream over a readable raw channel
func NewBufferedReader(raw rawio.RawChannel, bufferSize int) (*BufferedStream, error) {
	if !raw.Readable() {
		return nil, unsupportedError("init", "raw stream is not readable")
	}
	return newBufferedStream(raw, bufferSize, true, false)
}

// NewBufferedWriter creates a write-only buffered stream over a writable raw channel
func NewBufferedWriter(raw rawio.RawChannel, bufferSize int) (*BufferedStream, error) {
	if !raw.Writable() {
		return nil, unsupportedError("init", "raw stream is not writable")
	}
	return newBufferedStream(raw, bufferSize, false, true)
}

// NewBufferedRandom creates a read-write buffered stream over a seekable raw channel
func NewBufferedRandom(raw rawio.RawChannel, bufferSize int) (*BufferedStream, error) {
	if !raw.Seekable() {
		return nil, unsupportedError("init", "raw stream is not seekable")
	}
	if !raw.Readable() {
		return nil, unsupportedError("init", "raw stream is not readable")
	}
	if !raw.Writable() {
		return nil, unsupportedError("init", "raw stream is not writable")
	}
	return newBufferedStream(raw, bufferSize, true, true)
}

func newBufferedStream(raw rawio.RawChannel, bufferSize int, readable, writable bool) (*BufferedStream, error) {
	if bufferSize <= 0 {
		return nil, usageError("init", "buffer size must be strictly positive")
	}
	b := &BufferedStream{
		raw:        raw,
		readable:   readable,
		writable:   writable,
		bufferSize: bufferSize,
		absPos:     -1,
		state:      stateReady,
		attributes: make(map[string]interface{}),
	}
	b.lock.Name = b.String()
	b.resetReadBuf()
	b.resetWriteBuf()
	b.pos = 0
	b.rawPos = -1
	if _, err := b.rawTell(); err != nil {
		// Not seekable, the absolute position stays unknown
		b.absPos = -1
	}
	return b, nil
}

func (b *BufferedStream) String() string {
	kind := "BufferedRandom"
	if !b.writable {
		kind = "BufferedReader"
	} else if !b.readable {
		kind = "BufferedWriter"
	}
	if s, ok := b.raw.(fmt.Stringer); ok {
		return kind + "(" + s.String() + ")"
	}
	return kind
}

// ensureBuffer allocates the buffer on first use
func (b *BufferedStream) ensureBuffer() {
	if b.buffer == nil {
		b.buffer = make([]byte, b.bufferSize)
	}
}

func (b *BufferedStream) validReadBuffer() bool {
	return b.readable && b.readEnd != -1
}

func (b *BufferedStream) validWriteBuffer() bool {
	return b.writable && b.writeEnd != -1
}

// readahead is the number of buffered bytes not consumed yet
func (b *BufferedStream) readahead() int {
	if b.validReadBuffer() {
		return b.readEnd - b.pos
	}
	return 0
}

// rawOffset is how far the raw channel cursor is ahead of the logical cursor
func (b *BufferedStream) rawOffset() int64 {
	if (b.validReadBuffer() || b.validWriteBuffer()) && b.rawPos >= 0 {
		return int64(b.rawPos - b.pos)
	}
	return 0
}

func (b *BufferedStream) adjustPosition(pos int) {
	b.pos = pos
	if b.validReadBuffer() && b.readEnd < b.pos {
		b.readEnd = b.pos
	}
}

// minusLastBlock rounds size down to a whole number of buffers
func (b *BufferedStream) minusLastBlock(size int) int {
	return b.bufferSize * (size / b.bufferSize)
}

func (b *BufferedStream) resetReadBuf() {
	b.readEnd = -1
}

func (b *BufferedStream) resetWriteBuf() {
	b.writePos = 0
	b.writeEnd = -1
}

func (b *BufferedStream) checkInitialized(op string) error {
	switch b.state {
	case stateUninitialized:
		return usageError(op, "stream is not initialized")
	case stateDetached:
		return usageError(op, "raw stream has been detached")
	}
	return nil
}

func (b *BufferedStream) checkClosed(op string) error {
	if err := b.checkInitialized(op); err != nil {
		return err
	}
	if b.Closed() {
		return usageError(op, "%s of closed file", op)
	}
	return nil
}

func (b *BufferedStream) rawTell() (int64, error) {
	n, err := b.raw.Tell()
	if err != nil {
		return -1, channelError("tell", err)
	}
	if n < 0 {
		return -1, channelError("tell", errors.Errorf("raw stream returned invalid position %d", n))
	}
	b.absPos = n
	return n, nil
}

func (b *BufferedStream) rawSeek(target int64, whence int) (int64, error) {
	log.Tracef("%v: raw seek(%d, %d)", b, target, whence)
	n, err := b.raw.Seek(target, whence)
	if err != nil {
		return -1, channelError("seek", err)
	}
	if n < 0 {
		return -1, channelError("seek", errors.Errorf("raw stream returned invalid position %d", n))
	}
	b.absPos = n
	return n, nil
}

// rawTellCached returns the cached absolute position if known
func (b *BufferedStream) rawTellCached() (int64, error) {
	if b.absPos != -1 {
		return b.absPos, nil
	}
	return b.rawTell()
}

// Tell returns the logical position of the stream
func (b *BufferedStream) Tell() (int64, error) {
	if err := b.checkClosed("tell"); err != nil {
		return 0, err
	}
	if !b.raw.Seekable() {
		return 0, unsupportedError("tell", "underlying stream is not seekable")
	}
	pos, err := b.rawTell()
	if err != nil {
		return 0, err
	}
	pos -= b.rawOffset()
	if pos < 0 {
		pos = 0
	}
	return pos, nil
}

// Seek moves the logical position. Targets within the current read-ahead window are served from the buffer
// without touching the raw channel.
func (b *BufferedStream) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart && whence != io.SeekCurrent && whence != io.SeekEnd {
		return 0, usageError("seek", "whence value %d unsupported", whence)
	}
	if err := b.checkClosed("seek"); err != nil {
		return 0, err
	}
	if !b.raw.Seekable() {
		return 0, unsupportedError("seek", "underlying stream is not seekable")
	}
	if whence == io.SeekStart && offset < 0 {
		return 0, usageError("seek", "negative seek position %d", offset)
	}

	if err := b.lock.Lock(); err != nil {
		return 0, err
	}
	defer b.lock.Unlock()

	if (whence == io.SeekStart || whence == io.SeekCurrent) && b.readable {
		current, err := b.rawTellCached()
		if err != nil {
			return 0, err
		}
		if avail := int64(b.readahead()); avail > 0 {
			target := offset
			if whence == io.SeekStart {
				target = offset - (current - b.rawOffset())
			}
			if target >= -int64(b.pos) && target <= avail {
				b.pos += int(target)
				return current - avail + target, nil
			}
		}
	}

	if b.writable {
		if err := b.flushUnlocked(); err != nil {
			return 0, err
		}
	}
	if whence == io.SeekCurrent {
		offset -= b.rawOffset()
	}
	n, err := b.rawSeek(offset, whence)
	if err != nil {
		return 0, err
	}
	b.rawPos = -1
	if b.readable {
		b.resetReadBuf()
	}
	return n, nil
}

// Truncate flushes, resizes the raw channel and refreshes the cached position. A negative size truncates at
// the current position.
func (b *BufferedStream) Truncate(size int64) (int64, error) {
	if err := b.checkClosed("truncate"); err != nil {
		return 0, err
	}
	if !b.writable {
		return 0, unsupportedError("truncate", "stream is not writable")
	}

	if err := b.lock.Lock(); err != nil {
		return 0, err
	}
	defer b.lock.Unlock()

	if err := b.flushAndRewindUnlocked(); err != nil {
		return 0, err
	}
	if size < 0 {
		pos, err := b.rawTell()
		if err != nil {
			return 0, err
		}
		size = pos
	}
	n, err := b.raw.Truncate(size)
	if err != nil {
		return 0, channelError("truncate", err)
	}
	b.absPos = -1
	if _, err := b.rawTell(); err != nil {
		log.Debugf("%v: could not refresh position after truncate: %v", b, err)
	}
	return n, nil
}

// Flush writes out pending data. On a random access stream it also moves the raw channel back to the logical
// position and discards the read-ahead. Flushing a reader does nothing.
func (b *BufferedStream) Flush() error {
	if err := b.checkClosed("flush"); err != nil {
		return err
	}
	if !b.writable {
		return nil
	}
	if err := b.lock.Lock(); err != nil {
		return err
	}
	defer b.lock.Unlock()
	return b.flushAndRewindUnlocked()
}

func (b *BufferedStream) flushAndRewindUnlocked() error {
	if err := b.flushUnlocked(); err != nil {
		return err
	}
	if b.readable {
		// Rewind the raw channel so that its position corresponds to the logical position
		_, err := b.rawSeek(-b.rawOffset(), io.SeekCurrent)
		b.resetReadBuf()
		if err != nil {
			return err
		}
	}
	return nil
}

// flushUnlocked writes the pending region to the raw channel. On success the write buffer is no longer
// valid, so rawOffset() only depends on the read buffer afterwards.
func (b *BufferedStream) flushUnlocked() error {
	if !b.validWriteBuffer() || b.writePos == b.writeEnd {
		b.resetWriteBuf()
		return nil
	}

	rewind := b.rawOffset() + int64(b.pos-b.writePos)
	if rewind != 0 {
		if _, err := b.rawSeek(-rewind, io.SeekCurrent); err != nil {
			return err
		}
		b.rawPos -= int(rewind)
	}

	for b.writePos < b.writeEnd {
		n, err := b.rawWrite(b.buffer[b.writePos:b.writeEnd])
		if err == ErrWouldBlock {
			log.Tracef("%v: flush would block with %d bytes pending", b, b.writeEnd-b.writePos)
			return &BlockingPartialError{Written: 0}
		} else if err != nil {
			return err
		}
		b.writePos += n
		b.rawPos = b.writePos
	}

	b.resetWriteBuf()
	return nil
}

// Close flushes and closes the raw channel. The raw channel is closed even if the flush fails; if both fail,
// the close error comes first and the flush error is chained behind it.
func (b *BufferedStream) Close() error {
	if err := b.checkInitialized("close"); err != nil {
		return err
	}
	if err := b.lock.Lock(); err != nil {
		return err
	}
	if b.Closed() {
		b.lock.Unlock()
		return nil
	}
	// Flush takes the lock itself
	b.lock.Unlock()

	flushErr := b.Flush()
	if flushErr != nil {
		log.WithError(flushErr).Debugf("%v: flush before close failed", b)
	}

	if err := b.lock.Lock(); err != nil {
		return ChainErrors(err, flushErr)
	}
	defer b.lock.Unlock()

	closeErr := LogClose(b.raw)
	b.buffer = nil
	b.state = stateClosed
	return ChainErrors(closeErr, flushErr)
}

// Closed returns true if the stream or its raw channel has been closed
func (b *BufferedStream) Closed() bool {
	if b.state == stateClosed {
		return true
	}
	if b.state != stateReady {
		return false
	}
	return b.raw.Closed()
}

// Detach flushes the stream and returns the raw channel. The stream is unusable afterwards.
func (b *BufferedStream) Detach() (rawio.RawChannel, error) {
	if err := b.checkInitialized("detach"); err != nil {
		return nil, err
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	raw := b.raw
	b.raw = nil
	b.buffer = nil
	b.state = stateDetached
	return raw, nil
}

// Raw returns the raw channel, or nil for a detached stream
func (b *BufferedStream) Raw() rawio.RawChannel {
	return b.raw
}

// BufferSize returns the configured capacity of the buffer
func (b *BufferedStream) BufferSize() int {
	return b.bufferSize
}

func (b *BufferedStream) Readable() bool {
	return b.state == stateReady && b.readable
}

func (b *BufferedStream) Writable() bool {
	return b.state == stateReady && b.writable
}

func (b *BufferedStream) Seekable() bool {
	return b.state == stateReady && b.raw.Seekable()
}

func (b *BufferedStream) Fileno() (uintptr, error) {
	if err := b.checkInitialized("fileno"); err != nil {
		return 0, err
	}
	return b.raw.Fileno()
}

func (b *BufferedStream) Isatty() bool {
	return b.state == stateReady && b.raw.Isatty()
}
