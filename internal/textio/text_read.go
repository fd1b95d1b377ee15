package textio

import (
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/bokysan/streamio/internal/streams"
	"github.com/pkg/errors"
)

func (t *TextStream) checkReadable(op string) error {
	if err := t.checkClosed(op); err != nil {
		return err
	}
	if t.decoder == nil {
		return streams.UnsupportedErrorf(op, "not readable")
	}
	return nil
}

// readChunk reads and decodes one chunk of at least ChunkSize bytes, or enough bytes for sizeHint characters at
// the last seen bytes per character ratio. It returns false at the end of the stream.
func (t *TextStream) readChunk(sizeHint int) (bool, error) {
	var snapshot *positionSnapshot
	if t.telling {
		// Remember a point where the decoder's input buffer is known, so Tell can replay from there
		st := t.decoder.State()
		snapshot = &positionSnapshot{decFlags: st.Flags, input: st.Buffered}
	}

	if sizeHint > 0 {
		sizeHint = int(math.Max(t.b2cratio, 1.0) * float64(sizeHint))
	}
	size := t.chunkSize
	if sizeHint > size {
		size = sizeHint
	}

	input, err := t.buffer.Read1(size)
	if err == io.EOF {
		input, err = nil, nil
	}
	if err != nil {
		return false, err
	}

	eof := len(input) == 0
	decoded, err := t.decoder.Decode(input, eof)
	if err != nil {
		return false, err
	}
	if nchars := utf8.RuneCountInString(decoded); nchars > 0 {
		t.b2cratio = float64(len(input)) / float64(nchars)
		eof = false
	} else {
		t.b2cratio = 0
	}
	t.decoded.Set(decoded)

	if snapshot != nil {
		snapshot.input = append(snapshot.input, input...)
		t.snapshot = snapshot
	}
	return !eof, nil
}

// ensureData reads chunks until there are decoded characters available. A positive sizeHint is the number of
// characters the caller wants, so a large read is served by one big chunk. It returns false at the end of the
// stream.
func (t *TextStream) ensureData(sizeHint int) (bool, error) {
	for !t.decoded.HasData() {
		more, err := t.readChunk(sizeHint)
		if err != nil {
			return false, err
		}
		if !more {
			t.decoded.Reset()
			t.snapshot = nil
			return false, nil
		}
	}
	return true, nil
}

// Read reads up to n characters. With n < 0 it reads everything up to the end of the stream. If nothing is left,
// io.EOF is returned (except when reading everything).
func (t *TextStream) Read(n int) (string, error) {
	if err := t.checkReadable("read"); err != nil {
		return "", err
	}
	if err := t.writeFlush(); err != nil {
		return "", err
	}

	if n < 0 {
		return t.readAll()
	}
	if n == 0 {
		return "", nil
	}

	var sb strings.Builder
	for remaining := n; remaining > 0; {
		ok, err := t.ensureData(remaining)
		if err != nil {
			if sb.Len() > 0 && errors.Is(err, streams.ErrWouldBlock) {
				break
			}
			return "", err
		}
		if !ok {
			break
		}
		chars := t.decoded.GetChars(remaining)
		sb.WriteString(chars)
		remaining -= utf8.RuneCountInString(chars)
	}
	if sb.Len() == 0 {
		return "", io.EOF
	}
	return sb.String(), nil
}

func (t *TextStream) readAll() (string, error) {
	input, err := t.buffer.ReadN(-1)
	if errors.Is(err, streams.ErrWouldBlock) {
		if t.decoded.HasData() {
			return t.decoded.GetChars(-1), nil
		}
		return "", err
	} else if err != nil {
		return "", err
	}
	decoded, err := t.decoder.Decode(input, true)
	if err != nil {
		return "", err
	}
	result := t.decoded.GetChars(-1) + decoded
	t.decoded.Reset()
	t.snapshot = nil
	return result, nil
}

// ReadLine reads one line including its line ending, at most limit characters if limit >= 0. The last line of the
// stream may lack the line ending. If nothing is left, io.EOF is returned.
func (t *TextStream) ReadLine(limit int) (string, error) {
	if err := t.checkReadable("readline"); err != nil {
		return "", err
	}
	if err := t.writeFlush(); err != nil {
		return "", err
	}
	line, err := t.readLine(limit)
	if err != nil {
		return "", err
	}
	if line == "" && limit != 0 {
		return "", io.EOF
	}
	return line, nil
}

func (t *TextStream) readLine(limit int) (string, error) {
	var sb strings.Builder
	length := 0
	remnant := ""
	for {
		ok, err := t.ensureData(0)
		if err != nil {
			if length > 0 && errors.Is(err, streams.ErrWouldBlock) {
				break
			}
			return "", err
		}
		if !ok {
			sb.WriteString(remnant)
			break
		}

		if remnant != "" {
			// Only in "\r\n" mode: a "\r" ended the previous chunk
			if remnant == "\r" && t.decoded.PeekChar() == '\n' {
				sb.WriteString("\r\n")
				t.decoded.NextChar()
				break
			}
			sb.WriteString(remnant)
			length += utf8.RuneCountInString(remnant)
			remnant = ""
			continue
		}

		remaining := -1
		if limit >= 0 {
			remaining = limit - length
		}
		start := t.decoded.pos
		startU := t.decoded.upos
		found := t.scanLineEnding(remaining)
		if t.decoded.pos > start {
			sb.WriteString(t.decoded.text[start:t.decoded.pos])
			length += t.decoded.upos - startU
		}
		if found || (limit >= 0 && length >= limit) {
			break
		}

		// Characters left after the scan have to be joined with the next chunk
		if !t.decoded.Exhausted() {
			remnant = t.decoded.GetChars(-1)
		}
		t.decoded.Reset()
	}
	return sb.String(), nil
}

func (t *TextStream) scanLineEnding(limit int) bool {
	if t.readUniversal {
		return t.decoded.FindNewlineUniversal(limit)
	}
	newline := t.readNL
	if t.readTranslate {
		newline = "\n"
	}
	if newline == "\r\n" {
		return t.decoded.FindCRLF(limit)
	}
	return t.decoded.FindChar(rune(newline[0]), limit)
}

// Next returns the next line for iteration. Telling is disabled while iterating and enabled again at the end of
// the stream or on Flush. A Flush in the middle of an iteration can not recover the position of the read-ahead,
// so Tell fails until the read-ahead is consumed or discarded by a Seek. At the end, io.EOF is returned.
func (t *TextStream) Next() (string, error) {
	if err := t.checkReadable("next"); err != nil {
		return "", err
	}
	if err := t.writeFlush(); err != nil {
		return "", err
	}
	t.telling = false
	t.snapshot = nil
	line, err := t.readLine(-1)
	if err != nil || line == "" {
		t.decoded.Reset()
		t.snapshot = nil
		t.telling = t.seekable
		if err == nil {
			err = io.EOF
		}
		return "", err
	}
	return line, nil
}

// ReadLines reads all remaining lines
func (t *TextStream) ReadLines() ([]string, error) {
	var lines []string
	for {
		line, err := t.ReadLine(-1)
		if err == io.EOF {
			return lines, nil
		} else if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}
