package streams

import (
	"bytes"
	"io"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// maxReadAllChunk caps the size of a single raw read when reading until the end of the stream
const maxReadAllChunk = 1 << 20

// rawRead reads once from the raw channel, retrying on EINTR. It returns (0, nil) at the end of the stream and
// (0, ErrWouldBlock) if the channel would block.
func (b *BufferedStream) rawRead(p []byte) (int, error) {
	for {
		n, err := b.raw.Read(p)
		if rawio.IsInterrupted(err) && n == 0 {
			log.Tracef("%v: raw read interrupted, retrying", b)
			continue
		}
		if n < 0 || n > len(p) {
			return 0, channelError("read", errors.Errorf("raw read returned invalid length %d (should have been between 0 and %d)", n, len(p)))
		}
		if n > 0 {
			if b.absPos != -1 {
				b.absPos += int64(n)
			}
			return n, nil
		}
		if err == nil || err == io.EOF {
			return 0, nil
		}
		if errors.Is(err, ErrWouldBlock) {
			return 0, ErrWouldBlock
		}
		return 0, channelError("read", err)
	}
}

// fillBuffer appends one raw read to the read-ahead window
func (b *BufferedStream) fillBuffer() (int, error) {
	b.ensureBuffer()
	start := 0
	if b.validReadBuffer() {
		start = b.readEnd
	}
	n, err := b.rawRead(b.buffer[start:])
	if n <= 0 {
		return n, err
	}
	b.readEnd = start + n
	b.rawPos = start + n
	return n, nil
}

func (b *BufferedStream) checkReadable(op string) error {
	if err := b.checkClosed(op); err != nil {
		return err
	}
	if !b.readable {
		return unsupportedError(op, "stream is not readable")
	}
	return nil
}

// ReadN reads up to n bytes. With n < 0 it reads until the end of the stream.
//
// The result is shorter than n only at the end of the stream or when the channel would block after some data
// was already obtained. If nothing could be read, the error is io.EOF or ErrWouldBlock.
func (b *BufferedStream) ReadN(n int) ([]byte, error) {
	if n < -1 {
		return nil, usageError("read", "read length must be non-negative or -1")
	}
	if err := b.checkReadable("read"); err != nil {
		return nil, err
	}
	if n == -1 {
		if err := b.lock.Lock(); err != nil {
			return nil, err
		}
		defer b.lock.Unlock()
		return b.readAll()
	}

	if res := b.readFast(n); res != nil {
		return res, nil
	}

	if err := b.lock.Lock(); err != nil {
		return nil, err
	}
	defer b.lock.Unlock()
	return b.readGeneric(n)
}

// readFast serves n bytes from the read-ahead window, or returns nil if not enough is buffered
func (b *BufferedStream) readFast(n int) []byte {
	if n > b.readahead() {
		return nil
	}
	res := make([]byte, n)
	copy(res, b.buffer[b.pos:b.pos+n])
	b.pos += n
	return res
}

func (b *BufferedStream) readGeneric(n int) ([]byte, error) {
	current := b.readahead()
	if n <= current {
		return b.readFast(n), nil
	}

	res := make([]byte, n)
	remaining := n
	written := 0
	if current > 0 {
		copy(res, b.buffer[b.pos:b.pos+current])
		remaining -= current
		written += current
		b.pos += current
	}

	if b.writable {
		if err := b.flushAndRewindUnlocked(); err != nil {
			return nil, err
		}
	}
	b.resetReadBuf()

	// Read whole blocks directly into the result, keeping the last partial block for the buffer
	for remaining > 0 {
		r := b.minusLastBlock(remaining)
		if r == 0 {
			break
		}
		r, err := b.rawRead(res[written : written+r])
		if err != nil && err != ErrWouldBlock {
			return nil, err
		}
		if r == 0 {
			return shortRead(res, written, err)
		}
		remaining -= r
		written += r
	}

	b.ensureBuffer()
	b.pos = 0
	b.rawPos = 0
	b.readEnd = 0

	// Once the read is satisfied no further reads are issued, they could block indefinitely
	for remaining > 0 && b.readEnd < b.bufferSize {
		r, err := b.fillBuffer()
		if err != nil && err != ErrWouldBlock {
			return nil, err
		}
		if r == 0 {
			return shortRead(res, written, err)
		}
		if r > remaining {
			r = remaining
		}
		copy(res[written:], b.buffer[b.pos:b.pos+r])
		written += r
		b.pos += r
		remaining -= r
	}
	return res[:written], nil
}

// shortRead returns the data read so far. If nothing was read it reports why: io.EOF or ErrWouldBlock.
func shortRead(res []byte, written int, blocked error) ([]byte, error) {
	if written > 0 {
		return res[:written], nil
	}
	if blocked != nil {
		return nil, blocked
	}
	return nil, io.EOF
}

func (b *BufferedStream) readAll() ([]byte, error) {
	var data bytes.Buffer
	if current := b.readahead(); current > 0 {
		data.Write(b.buffer[b.pos : b.pos+current])
		b.pos += current
	}

	if b.writable {
		if err := b.flushAndRewindUnlocked(); err != nil {
			return nil, err
		}
	}
	b.resetReadBuf()

	chunk := b.bufferSize
	buf := make([]byte, chunk)
	for {
		n, err := b.rawRead(buf)
		if err == ErrWouldBlock {
			if data.Len() == 0 {
				return nil, ErrWouldBlock
			}
			return data.Bytes(), nil
		} else if err != nil {
			return nil, err
		}
		if n == 0 {
			if data.Len() == 0 {
				return []byte{}, nil
			}
			return data.Bytes(), nil
		}
		data.Write(buf[:n])
		if n == len(buf) && chunk < maxReadAllChunk {
			chunk *= 2
			if chunk > maxReadAllChunk {
				chunk = maxReadAllChunk
			}
			buf = make([]byte, chunk)
		}
	}
}

// Peek returns buffered bytes without moving the cursor. If nothing is buffered it issues exactly one raw read
// to fill the buffer. The result may be longer or shorter than the hint.
func (b *BufferedStream) Peek(hint int) ([]byte, error) {
	if err := b.checkReadable("peek"); err != nil {
		return nil, err
	}
	if err := b.lock.Lock(); err != nil {
		return nil, err
	}
	defer b.lock.Unlock()

	if b.writable {
		if err := b.flushAndRewindUnlocked(); err != nil {
			return nil, err
		}
	}
	return b.peekUnlocked()
}

func (b *BufferedStream) peekUnlocked() ([]byte, error) {
	// The buffer is never shifted to make room, that would lose block alignment
	if have := b.readahead(); have > 0 {
		return append([]byte(nil), b.buffer[b.pos:b.pos+have]...), nil
	}
	b.resetReadBuf()
	n, err := b.fillBuffer()
	b.pos = 0
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return append([]byte(nil), b.buffer[:n]...), nil
}

// Read1 returns at most n bytes. If anything is buffered, only buffered bytes are returned; otherwise exactly one
// raw read is performed. A negative n means the buffer size.
func (b *BufferedStream) Read1(n int) ([]byte, error) {
	if n < 0 {
		n = b.bufferSize
	}
	if err := b.checkReadable("read1"); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}

	if have := b.readahead(); have > 0 {
		if n > have {
			n = have
		}
		return b.readFast(n), nil
	}

	res := make([]byte, n)
	if err := b.lock.Lock(); err != nil {
		return nil, err
	}
	defer b.lock.Unlock()

	if b.writable {
		if err := b.flushAndRewindUnlocked(); err != nil {
			return nil, err
		}
	}
	b.resetReadBuf()

	r, err := b.rawRead(res)
	if err != nil {
		return nil, err
	}
	if r == 0 {
		return nil, io.EOF
	}
	return res[:r], nil
}

// ReadInto fills p. It returns fewer bytes only at the end of the stream or if the channel would block.
func (b *BufferedStream) ReadInto(p []byte) (int, error) {
	return b.readInto(p, false, "readinto")
}

// Read implements io.Reader: it returns buffered bytes if there are any, otherwise it performs at most one raw
// read.
func (b *BufferedStream) Read(p []byte) (int, error) {
	return b.readInto(p, true, "readinto1")
}

func (b *BufferedStream) readInto(p []byte, single bool, op string) (int, error) {
	if err := b.checkReadable(op); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	written := 0
	if n := b.readahead(); n > 0 {
		n = copy(p, b.buffer[b.pos:b.pos+n])
		b.pos += n
		written = n
		if n == len(p) || single {
			return written, nil
		}
	}

	if err := b.lock.Lock(); err != nil {
		return written, err
	}
	defer b.lock.Unlock()

	if b.writable {
		if err := b.flushAndRewindUnlocked(); err != nil {
			return written, err
		}
	}
	b.resetReadBuf()
	b.pos = 0

	for remaining := len(p) - written; remaining > 0; {
		var n int
		var err error
		if remaining > b.bufferSize {
			// Large reads go straight into the caller's slice
			n, err = b.rawRead(p[written:])
		} else if !(single && written > 0) {
			// In single read mode the buffer is not filled when there is already data to return
			n, err = b.fillBuffer()
			if n > 0 {
				if n > remaining {
					n = remaining
				}
				copy(p[written:], b.buffer[b.pos:b.pos+n])
				b.pos += n
				written += n
				remaining -= n
				continue
			}
		}
		if err != nil && err != ErrWouldBlock {
			return written, err
		}
		if n == 0 {
			if written > 0 {
				return written, nil
			}
			if err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		written += n
		remaining -= n
		if single {
			break
		}
	}
	return written, nil
}

// ReadLine reads up to and including the next '\n'. A negative limit means no limit. At the end of the stream the
// line may lack the terminator; if nothing is left io.EOF is returned.
func (b *BufferedStream) ReadLine(limit int) ([]byte, error) {
	if err := b.checkReadable("readline"); err != nil {
		return nil, err
	}

	// Try to find a line in what is already buffered
	n := b.readahead()
	if limit >= 0 && n > limit {
		n = limit
	}
	if n > 0 || limit == 0 {
		window := b.buffer[b.pos : b.pos+n]
		if i := bytes.IndexByte(window, '\n'); i >= 0 {
			res := append([]byte(nil), window[:i+1]...)
			b.pos += i + 1
			return res, nil
		}
		if n == limit {
			res := make([]byte, n)
			copy(res, window)
			b.pos += n
			return res, nil
		}
	}

	if err := b.lock.Lock(); err != nil {
		return nil, err
	}
	defer b.lock.Unlock()

	var line []byte
	if n > 0 {
		line = append(line, b.buffer[b.pos:b.pos+n]...)
		b.pos += n
		if limit >= 0 {
			limit -= n
		}
	}

	if b.writable {
		if err := b.flushAndRewindUnlocked(); err != nil {
			return nil, err
		}
	}

	var last error
	for {
		b.resetReadBuf()
		r, err := b.fillBuffer()
		if err != nil && err != ErrWouldBlock {
			return nil, err
		}
		if r == 0 {
			last = err
			break
		}
		if limit >= 0 && r > limit {
			r = limit
		}
		chunk := b.buffer[:r]
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			line = append(line, chunk[:i+1]...)
			b.pos = i + 1
			return line, nil
		}
		line = append(line, chunk...)
		if r == limit {
			b.pos = r
			break
		}
		if limit >= 0 {
			limit -= r
		}
	}

	if len(line) > 0 {
		return line, nil
	}
	if last != nil {
		return nil, last
	}
	return nil, io.EOF
}

// ReadLines reads lines until the end of the stream or until the total size reaches hint (if hint > 0)
func (b *BufferedStream) ReadLines(hint int) ([][]byte, error) {
	var lines [][]byte
	total := 0
	for {
		line, err := b.ReadLine(-1)
		if err == io.EOF {
			return lines, nil
		} else if err != nil {
			return lines, err
		}
		lines = append(lines, line)
		total += len(line)
		if hint > 0 && total >= hint {
			return lines, nil
		}
	}
}
