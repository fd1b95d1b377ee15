package textio

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/bokysan/streamio/internal/streams"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Write encodes text and queues it for the byte stream. It returns the number of characters written.
func (t *TextStream) Write(text string) (int, error) {
	if err := t.checkClosed("write"); err != nil {
		return 0, err
	}
	if t.encoder == nil {
		return 0, streams.UnsupportedErrorf("write", "not writable")
	}

	length := utf8.RuneCountInString(text)
	hasLF := (t.writeTranslate || t.lineBuffering) && strings.IndexByte(text, '\n') >= 0
	if hasLF && t.writeTranslate && t.writeNL != "\n" {
		text = strings.ReplaceAll(text, "\n", t.writeNL)
	}
	needFlush := t.lineBuffering && (hasLF || strings.IndexByte(text, '\r') >= 0)

	b, err := t.encode(text)
	if err != nil {
		return 0, err
	}

	// Never queue more than a chunk
	if t.pendingCount > 0 && t.pendingCount+len(b) > t.chunkSize {
		if err := t.writeFlush(); err != nil {
			return 0, err
		}
	}
	t.pending = append(t.pending, b)
	t.pendingCount += len(b)

	if t.pendingCount >= t.chunkSize || needFlush || t.writeThrough {
		if err := t.writeFlush(); err != nil {
			return 0, err
		}
	}
	if needFlush {
		if err := t.buffer.Flush(); err != nil {
			return 0, err
		}
	}

	// Whatever was decoded ahead is stale now
	t.decoded.Reset()
	t.snapshot = nil
	if t.decoder != nil {
		t.decoder.Reset()
	}
	return length, nil
}

// WriteString is the same as Write
func (t *TextStream) WriteString(text string) (int, error) {
	return t.Write(text)
}

func (t *TextStream) encode(text string) ([]byte, error) {
	// UTF-8 text needs no encoding
	if t.encoding.Name == "utf-8" && utf8.ValidString(text) {
		return []byte(text), nil
	}
	return t.encoder.Encode(text, false)
}

// writeFlush hands the queued bytes to the byte stream. Bytes which the stream could not accept without
// blocking stay queued.
func (t *TextStream) writeFlush() error {
	if len(t.pending) == 0 {
		return nil
	}
	var b []byte
	if len(t.pending) == 1 {
		b = t.pending[0]
	} else {
		b = bytes.Join(t.pending, nil)
	}
	t.pending = nil
	t.pendingCount = 0

	n, err := t.buffer.Write(b)
	if err != nil {
		var partial *streams.BlockingPartialError
		if errors.As(err, &partial) && n < len(b) {
			log.Tracef("%v: %d of %d bytes stay queued", t, len(b)-n, len(b))
			t.pending = [][]byte{b[n:]}
			t.pendingCount = len(b) - n
		}
		return err
	}
	return nil
}
