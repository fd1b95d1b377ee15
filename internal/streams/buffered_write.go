package streams

import (
	"io"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// rawWrite writes once to the raw channel, retrying on EINTR. It returns ErrWouldBlock if nothing could be
// written without blocking.
func (b *BufferedStream) rawWrite(p []byte) (int, error) {
	for {
		n, err := b.raw.Write(p)
		if rawio.IsInterrupted(err) && n == 0 {
			log.Tracef("%v: raw write interrupted, retrying", b)
			continue
		}
		if n < 0 || n > len(p) {
			return 0, channelError("write", errors.Errorf("raw write returned invalid length %d (should have been between 0 and %d)", n, len(p)))
		}
		if n > 0 {
			if b.absPos != -1 {
				b.absPos += int64(n)
			}
			return n, nil
		}
		if err == nil {
			if len(p) == 0 {
				return 0, nil
			}
			return 0, channelError("write", io.ErrShortWrite)
		}
		if errors.Is(err, ErrWouldBlock) {
			return 0, ErrWouldBlock
		}
		return 0, channelError("write", err)
	}
}

// Write buffers p, flushing to the raw channel as needed. Data larger than the buffer is written directly in
// whole-buffer chunks.
//
// If the raw channel would block, the returned error is a *BlockingPartialError and n is the number of bytes of
// p which were accepted, either written to the channel or kept in the buffer.
func (b *BufferedStream) Write(p []byte) (int, error) {
	if err := b.checkClosed("write"); err != nil {
		return 0, err
	}
	if !b.writable {
		return 0, unsupportedError("write", "stream is not writable")
	}
	if err := b.lock.Lock(); err != nil {
		return 0, err
	}
	defer b.lock.Unlock()

	b.ensureBuffer()

	// Fast path: p fits in the buffer
	if !b.validReadBuffer() && !b.validWriteBuffer() {
		b.pos = 0
		b.rawPos = 0
	}
	avail := b.bufferSize - b.pos
	if len(p) <= avail {
		copy(b.buffer[b.pos:], p)
		if !b.validWriteBuffer() || b.writePos > b.pos {
			b.writePos = b.pos
		}
		b.adjustPosition(b.pos + len(p))
		if b.pos > b.writeEnd {
			b.writeEnd = b.pos
		}
		return len(p), nil
	}

	// Write out the current buffer first
	if err := b.flushUnlocked(); err != nil {
		var partial *BlockingPartialError
		if !errors.As(err, &partial) {
			return 0, err
		}
		if b.readable {
			b.resetReadBuf()
		}
		// Make room by shifting the pending data to the start of the buffer
		copy(b.buffer, b.buffer[b.writePos:b.writeEnd])
		b.writeEnd -= b.writePos
		b.rawPos -= b.writePos
		b.pos -= b.writePos
		b.writePos = 0

		avail = b.bufferSize - b.writeEnd
		if len(p) <= avail {
			copy(b.buffer[b.writeEnd:], p)
			b.writeEnd += len(p)
			b.pos += len(p)
			return len(p), nil
		}
		// Buffer as much as possible
		copy(b.buffer[b.writeEnd:], p[:avail])
		b.writeEnd += avail
		b.pos += avail
		log.Tracef("%v: write would block, accepted %d of %d bytes", b, avail, len(p))
		return avail, &BlockingPartialError{Written: avail}
	}

	// The read-ahead was not modified so the flush did not rewind the raw channel; discard it now
	if offset := b.rawOffset(); offset != 0 {
		if _, err := b.rawSeek(-offset, io.SeekCurrent); err != nil {
			return 0, err
		}
		b.rawPos -= int(offset)
	}

	// The buffer is empty now, write p itself
	remaining := len(p)
	written := 0
	for remaining > b.bufferSize {
		n, err := b.rawWrite(p[written:])
		if err == ErrWouldBlock {
			// Can't buffer everything, still buffer as much as possible
			copy(b.buffer, p[written:written+b.bufferSize])
			b.rawPos = 0
			b.adjustPosition(b.bufferSize)
			b.writePos = 0
			b.writeEnd = b.bufferSize
			written += b.bufferSize
			log.Tracef("%v: direct write would block, accepted %d of %d bytes", b, written, len(p))
			return written, &BlockingPartialError{Written: written}
		} else if err != nil {
			return written, err
		}
		written += n
		remaining -= n
	}

	if b.readable {
		b.resetReadBuf()
	}
	if remaining > 0 {
		copy(b.buffer, p[written:])
		written += remaining
	}
	b.writePos = 0
	b.writeEnd = remaining
	b.adjustPosition(remaining)
	b.rawPos = 0
	return written, nil
}

// WriteString writes the bytes of s
func (b *BufferedStream) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}
