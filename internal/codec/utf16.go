package codec

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

const (
	utf16Name   = "utf-16"
	utf16LEName = "utf-16-le"
	utf16BEName = "utf-16-be"
)

// Byte order flags of the utf-16 decoder state
const (
	orderLittle       uint64 = 0
	orderBig          uint64 = 1
	orderUndetermined uint64 = 2
)

var (
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
)

// utf16Decoder picks the byte order from the BOM at the start of the stream, little endian if there is none,
// and then delegates to the fixed order decoder.
type utf16Decoder struct {
	order   uint64
	pending []byte
	inner   [2]*transformDecoder
}

func newUTF16Decoder(policy ErrorPolicy) Decoder {
	return &utf16Decoder{
		order: orderUndetermined,
		inner: [2]*transformDecoder{
			newTransformDecoder(utf16Name, utf16LE, utf8.MaxRune, policy),
			newTransformDecoder(utf16Name, utf16BE, utf8.MaxRune, policy),
		},
	}
}

func (d *utf16Decoder) Decode(input []byte, final bool) (string, error) {
	if d.order == orderUndetermined {
		data := append(append([]byte(nil), d.pending...), input...)
		if len(data) < 2 && !final {
			d.pending = data
			return "", nil
		}
		d.pending = nil
		d.order = orderLittle
		if len(data) >= 2 {
			if data[0] == 0xFE && data[1] == 0xFF {
				d.order = orderBig
				data = data[2:]
			} else if data[0] == 0xFF && data[1] == 0xFE {
				data = data[2:]
			}
		}
		input = data
	}
	return d.inner[d.order].Decode(input, final)
}

func (d *utf16Decoder) State() DecoderState {
	if d.order == orderUndetermined {
		return DecoderState{Buffered: append([]byte(nil), d.pending...), Flags: orderUndetermined}
	}
	st := d.inner[d.order].State()
	st.Flags = d.order
	return st
}

func (d *utf16Decoder) SetState(st DecoderState) error {
	d.Reset()
	switch st.Flags {
	case orderUndetermined:
		d.pending = append([]byte(nil), st.Buffered...)
		return nil
	case orderLittle, orderBig:
		d.order = st.Flags
		return d.inner[d.order].SetState(DecoderState{Buffered: st.Buffered})
	}
	return errors.Errorf("invalid utf-16 decoder flags %d", st.Flags)
}

func (d *utf16Decoder) Reset() {
	d.order = orderUndetermined
	d.pending = nil
	d.inner[0].Reset()
	d.inner[1].Reset()
}

// utf16Encoder writes a little endian BOM before the first output of a stream
type utf16Encoder struct {
	bomPending bool
	inner      *transformEncoder
}

func newUTF16Encoder(policy ErrorPolicy) Encoder {
	return &utf16Encoder{
		bomPending: true,
		inner:      newTransformEncoder(utf16Name, utf16LE, utf8.MaxRune, policy),
	}
}

func (e *utf16Encoder) Encode(text string, final bool) ([]byte, error) {
	out, err := e.inner.Encode(text, final)
	if err != nil {
		return nil, err
	}
	if e.bomPending {
		e.bomPending = false
		out = append([]byte{0xFF, 0xFE}, out...)
	}
	return out, nil
}

func (e *utf16Encoder) State() uint64 {
	if e.bomPending {
		return orderUndetermined
	}
	return 0
}

func (e *utf16Encoder) SetState(st uint64) error {
	e.bomPending = st != 0
	return nil
}

func (e *utf16Encoder) Reset() {
	e.bomPending = true
}
