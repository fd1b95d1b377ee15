package textio

import (
	"io"
	"math/big"
	"unicode/utf8"

	"github.com/bokysan/streamio/internal/codec"
	"github.com/bokysan/streamio/internal/streams"
	log "github.com/sirupsen/logrus"
)

// decoderSetState puts the decoder at a cookie's safe start point. At the start of the stream the decoder is
// reset instead, so that start-of-stream markers such as a BOM are expected again.
func (t *TextStream) decoderSetState(c PositionCookie) error {
	if c.StartPos == 0 && c.DecFlags == 0 {
		t.decoder.Reset()
		return nil
	}
	return t.decoder.SetState(codec.DecoderState{Flags: c.DecFlags})
}

func (t *TextStream) encoderSetState(startOfStream bool) error {
	if startOfStream {
		t.encoder.Reset()
		return nil
	}
	return t.encoder.SetState(0)
}

// Tell returns an opaque position which Seek accepts
func (t *TextStream) Tell() (*big.Int, error) {
	c, err := t.tellCookie()
	if err != nil {
		return nil, err
	}
	return c.Pack(), nil
}

func (t *TextStream) tellCookie() (PositionCookie, error) {
	var c PositionCookie
	if err := t.checkClosed("tell"); err != nil {
		return c, err
	}
	if !t.seekable {
		return c, streams.UnsupportedErrorf("tell", "underlying stream is not seekable")
	}
	if !t.telling {
		return c, streams.PositionErrorf("telling position disabled by Next() call")
	}
	if err := t.Flush(); err != nil {
		return c, err
	}
	pos, err := t.buffer.Tell()
	if err != nil {
		return c, err
	}
	c.StartPos = pos
	if t.decoder == nil || t.snapshot == nil {
		if t.decoded.HasData() {
			return c, streams.PositionErrorf("can't reconstruct logical file position of the read-ahead")
		}
		return c, nil
	}

	// Go back to the snapshot point
	input := t.snapshot.input
	c.DecFlags = t.snapshot.decFlags
	c.StartPos -= int64(len(input))

	charsToSkip := t.decoded.Used()
	if charsToSkip == 0 {
		return c, nil
	}

	saved := t.decoder.State()
	c, err = t.replay(c, input, charsToSkip)
	if restoreErr := t.decoder.SetState(saved); restoreErr != nil && err == nil {
		err = restoreErr
	}
	return c, err
}

// replay feeds the decoder from the snapshot point until charsToSkip characters are produced, remembering the
// last point where the decoder held no buffered input.
func (t *TextStream) replay(c PositionCookie, input []byte, charsToSkip int) (PositionCookie, error) {
	decode := func(b []byte) (int, uint64, int, error) {
		s, err := t.decoder.Decode(b, false)
		if err != nil {
			return 0, 0, 0, err
		}
		st := t.decoder.State()
		return utf8.RuneCountInString(s), st.Flags, len(st.Buffered), nil
	}

	// Fast search for a start point close to the current position
	skipBytes := int(t.b2cratio * float64(charsToSkip))
	if skipBytes > len(input) {
		skipBytes = len(input)
	}
	skipBack := 1
	for skipBytes > 0 {
		if err := t.decoderSetState(c); err != nil {
			return c, err
		}
		decoded, flags, buffered, err := decode(input[:skipBytes])
		if err != nil {
			return c, err
		}
		if decoded <= charsToSkip {
			if buffered == 0 {
				// Before the position and nothing buffered in the decoder
				c.DecFlags = flags
				charsToSkip -= decoded
				break
			}
			// Skip back by the buffered amount and reset the heuristic
			skipBytes -= buffered
			skipBack = 1
		} else {
			// Too far ahead, skip back a bit
			skipBytes -= skipBack
			skipBack *= 2
		}
	}
	if skipBytes <= 0 {
		skipBytes = 0
		if err := t.decoderSetState(c); err != nil {
			return c, err
		}
	}

	c.StartPos += int64(skipBytes)
	c.CharsToSkip = charsToSkip
	if charsToSkip == 0 {
		return c, nil
	}

	// Feed the decoder one byte at a time, moving the start point to each safe point on the way
	decodedChars := 0
	i := skipBytes
	for ; i < len(input); i++ {
		n, flags, buffered, err := decode(input[i : i+1])
		if err != nil {
			return c, err
		}
		decodedChars += n
		c.BytesToFeed++
		if buffered == 0 && decodedChars <= charsToSkip {
			c.StartPos += int64(c.BytesToFeed)
			charsToSkip -= decodedChars
			c.DecFlags = flags
			c.BytesToFeed = 0
			decodedChars = 0
		}
		if decodedChars >= charsToSkip {
			break
		}
	}
	if i == len(input) {
		// Not enough decoded data, signal the end of input to get the rest
		s, err := t.decoder.Decode(nil, true)
		if err != nil {
			return c, err
		}
		decodedChars += utf8.RuneCountInString(s)
		c.NeedEOF = true
		if decodedChars < charsToSkip {
			return c, streams.PositionErrorf("can't reconstruct logical file position")
		}
	}

	c.CharsToSkip = charsToSkip
	return c, nil
}

// Seek moves to a position returned by Tell. io.SeekCurrent and io.SeekEnd are only allowed with a zero
// cookie. It returns the new position.
func (t *TextStream) Seek(cookie *big.Int, whence int) (*big.Int, error) {
	if err := t.checkClosed("seek"); err != nil {
		return nil, err
	}
	if !t.seekable {
		return nil, streams.UnsupportedErrorf("seek", "underlying stream is not seekable")
	}
	if cookie == nil {
		return nil, streams.UsageErrorf("seek", "position cookie must not be nil")
	}

	switch whence {
	case io.SeekCurrent:
		if cookie.Sign() != 0 {
			return nil, streams.UnsupportedErrorf("seek", "can't do nonzero cur-relative seeks")
		}
		// Sync the byte stream with the current position
		current, err := t.Tell()
		if err != nil {
			return nil, err
		}
		cookie = current
	case io.SeekEnd:
		if cookie.Sign() != 0 {
			return nil, streams.UnsupportedErrorf("seek", "can't do nonzero end-relative seeks")
		}
		return t.seekEnd()
	case io.SeekStart:
	default:
		return nil, streams.UsageErrorf("seek", "invalid whence (%d, should be %d, %d or %d)", whence, io.SeekStart, io.SeekCurrent, io.SeekEnd)
	}

	if cookie.Sign() < 0 {
		return nil, streams.UsageErrorf("seek", "negative seek position %v", cookie)
	}
	if err := t.Flush(); err != nil {
		return nil, err
	}
	c, err := UnpackCookie(cookie)
	if err != nil {
		return nil, err
	}
	if err := t.seekCookie(c); err != nil {
		return nil, err
	}
	return new(big.Int).Set(cookie), nil
}

func (t *TextStream) seekEnd() (*big.Int, error) {
	if err := t.Flush(); err != nil {
		return nil, err
	}
	t.decoded.Reset()
	t.snapshot = nil
	if t.decoder != nil {
		t.decoder.Reset()
	}
	pos, err := t.buffer.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if t.encoder != nil {
		if err := t.encoderSetState(pos == 0); err != nil {
			return nil, err
		}
	}
	return big.NewInt(pos), nil
}

// seekCookie goes back to the cookie's safe start point and replays the decoding up to the position
func (t *TextStream) seekCookie(c PositionCookie) error {
	log.Tracef("%v: seek to %+v", t, c)
	if _, err := t.buffer.Seek(c.StartPos, io.SeekStart); err != nil {
		return err
	}
	t.decoded.Reset()
	t.snapshot = nil

	if t.decoder != nil {
		if err := t.decoderSetState(c); err != nil {
			return err
		}
	}

	if c.CharsToSkip > 0 {
		if t.decoder == nil {
			return streams.UnsupportedErrorf("seek", "not readable")
		}
		input, err := t.buffer.ReadN(c.BytesToFeed)
		if err == io.EOF {
			input, err = []byte{}, nil
		}
		if err != nil {
			return err
		}
		t.snapshot = &positionSnapshot{decFlags: c.DecFlags, input: input}
		decoded, err := t.decoder.Decode(input, c.NeedEOF)
		if err != nil {
			return err
		}
		t.decoded.Set(decoded)
		if t.decoded.Len() < c.CharsToSkip {
			return streams.PositionErrorf("can't restore logical file position")
		}
		t.decoded.SkipChars(c.CharsToSkip)
	} else {
		t.snapshot = &positionSnapshot{decFlags: c.DecFlags, input: []byte{}}
	}

	if t.encoder != nil {
		return t.encoderSetState(c.StartPos == 0 && c.DecFlags == 0)
	}
	return nil
}

// State returns the position of the stream as a packed cookie
func (t *TextStream) State() (*big.Int, error) {
	return t.Tell()
}

// SetState restores a position returned by State
func (t *TextStream) SetState(cookie *big.Int) error {
	_, err := t.Seek(cookie, io.SeekStart)
	return err
}
