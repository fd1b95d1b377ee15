package textio

import (
	"strings"

	"github.com/bokysan/streamio/internal/codec"
)

// Kinds of line endings seen by a NewlineDecoder
const (
	SeenLF   = 1
	SeenCR   = 2
	SeenCRLF = 4
)

// NewlineDecoder wraps a decoder and handles universal newlines: it records which line endings occur in the
// text and, when translating, turns "\r" and "\r\n" into "\n". A "\r" at the end of a non-final chunk is held
// back because the next chunk may start with "\n".
type NewlineDecoder struct {
	decoder   codec.Decoder
	translate bool
	pendingCR bool
	seen      int
}

// NewNewlineDecoder wraps `decoder`. A nil decoder means the input is UTF-8 text already.
func NewNewlineDecoder(decoder codec.Decoder, translate bool) *NewlineDecoder {
	return &NewlineDecoder{
		decoder:   decoder,
		translate: translate,
	}
}

func (n *NewlineDecoder) Decode(input []byte, final bool) (string, error) {
	var output string
	if n.decoder == nil {
		output = string(input)
	} else {
		var err error
		if output, err = n.decoder.Decode(input, final); err != nil {
			return "", err
		}
	}

	if n.pendingCR && (output != "" || final) {
		output = "\r" + output
		n.pendingCR = false
	}

	// The last "\r" might be the first half of "\r\n"
	if !final && strings.HasSuffix(output, "\r") {
		output = output[:len(output)-1]
		n.pendingCR = true
	}

	return n.scan(output), nil
}

// scan records the line endings in `output` and translates them if needed, in a single pass
func (n *NewlineDecoder) scan(output string) string {
	if strings.IndexByte(output, '\r') < 0 {
		if strings.IndexByte(output, '\n') >= 0 {
			n.seen |= SeenLF
		}
		return output
	}

	var sb strings.Builder
	sb.Grow(len(output))
	for i := 0; i < len(output); i++ {
		c := output[i]
		switch {
		case c == '\n':
			n.seen |= SeenLF
		case c == '\r' && i+1 < len(output) && output[i+1] == '\n':
			// One line ending, the "\n" must not be counted again
			n.seen |= SeenCRLF
			i++
			if !n.translate {
				sb.WriteString("\r\n")
				continue
			}
			c = '\n'
		case c == '\r':
			n.seen |= SeenCR
			if n.translate {
				c = '\n'
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// State returns the wrapped decoder's state with the pending "\r" flag in the lowest bit of the flags
func (n *NewlineDecoder) State() codec.DecoderState {
	var st codec.DecoderState
	if n.decoder != nil {
		st = n.decoder.State()
	}
	st.Flags <<= 1
	if n.pendingCR {
		st.Flags |= 1
	}
	return st
}

func (n *NewlineDecoder) SetState(st codec.DecoderState) error {
	n.pendingCR = st.Flags&1 == 1
	if n.decoder != nil {
		return n.decoder.SetState(codec.DecoderState{Buffered: st.Buffered, Flags: st.Flags >> 1})
	}
	return nil
}

// Reset forgets the pending "\r" and the line endings seen so far
func (n *NewlineDecoder) Reset() {
	n.seen = 0
	n.pendingCR = false
	if n.decoder != nil {
		n.decoder.Reset()
	}
}

// Seen returns the bitmask of line endings decoded so far
func (n *NewlineDecoder) Seen() int {
	return n.seen
}

// Newlines lists the line endings decoded so far, in the order "\r", "\n", "\r\n"
func (n *NewlineDecoder) Newlines() []string {
	var res []string
	if n.seen&SeenCR != 0 {
		res = append(res, "\r")
	}
	if n.seen&SeenLF != 0 {
		res = append(res, "\n")
	}
	if n.seen&SeenCRLF != 0 {
		res = append(res, "\r\n")
	}
	return res
}

var _ codec.Decoder = (*NewlineDecoder)(nil)
