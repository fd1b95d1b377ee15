package codec

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// transformDecoder adapts a stateless golang.org/x/text decoder. The only state kept between calls is the tail
// of the input which the transformer reported as incomplete.
type transformDecoder struct {
	name    string
	t       transform.Transformer
	maxRune rune
	policy  ErrorPolicy
	pending []byte
}

func newTransformDecoder(name string, enc encoding.Encoding, maxRune rune, policy ErrorPolicy) *transformDecoder {
	return &transformDecoder{
		name:    name,
		t:       enc.NewDecoder(),
		maxRune: maxRune,
		policy:  policy,
	}
}

func (d *transformDecoder) Decode(input []byte, final bool) (string, error) {
	data := input
	if len(d.pending) > 0 {
		data = append(append([]byte(nil), d.pending...), input...)
	}
	d.t.Reset()

	out := make([]byte, 0, len(data)+utf8.UTFMax)
	dst := make([]byte, 2*len(data)+utf8.UTFMax)
	pos := 0
	for {
		nDst, nSrc, err := d.t.Transform(dst, data[pos:], final)
		out = append(out, dst[:nDst]...)
		pos += nSrc
		if err == transform.ErrShortDst {
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
			continue
		}
		if err == transform.ErrShortSrc {
			if final {
				// The transformer did not flag the tail itself; treat the leftover as invalid input
				out = append(out, string(utf8.RuneError)...)
				pos = len(data)
			}
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "'%s' codec failed", d.name)
		}
		break
	}

	text, err := d.applyPolicy(string(out))
	if err != nil {
		return "", err
	}
	if pos < len(data) {
		d.pending = append([]byte(nil), data[pos:]...)
	} else {
		d.pending = nil
	}
	return text, nil
}

// applyPolicy handles the characters the transformer substituted with U+FFFD, and characters beyond the
// repertoire of restricted encodings such as ascii
func (d *transformDecoder) applyPolicy(text string) (string, error) {
	clean := true
	for _, r := range text {
		if r == utf8.RuneError || r > d.maxRune {
			clean = false
			break
		}
	}
	if clean {
		return text, nil
	}

	var sb strings.Builder
	sb.Grow(len(text))
	n := 0
	for _, r := range text {
		if r == utf8.RuneError || r > d.maxRune {
			switch d.policy {
			case Replace:
				sb.WriteRune(utf8.RuneError)
			case Ignore:
			default:
				return "", &DecodeError{Encoding: d.name, Offset: n, Reason: "invalid or unmapped byte sequence"}
			}
		} else {
			sb.WriteRune(r)
		}
		n++
	}
	return sb.String(), nil
}

func (d *transformDecoder) State() DecoderState {
	return DecoderState{Buffered: append([]byte(nil), d.pending...)}
}

func (d *transformDecoder) SetState(st DecoderState) error {
	d.pending = append([]byte(nil), st.Buffered...)
	return nil
}

func (d *transformDecoder) Reset() {
	d.pending = nil
	d.t.Reset()
}

// transformEncoder adapts a stateless golang.org/x/text encoder
type transformEncoder struct {
	name    string
	enc     encoding.Encoding
	maxRune rune
	policy  ErrorPolicy
}

func newTransformEncoder(name string, enc encoding.Encoding, maxRune rune, policy ErrorPolicy) *transformEncoder {
	return &transformEncoder{
		name:    name,
		enc:     enc,
		maxRune: maxRune,
		policy:  policy,
	}
}

func (e *transformEncoder) Encode(text string, final bool) ([]byte, error) {
	if e.inRange(text) {
		if out, _, err := transform.Bytes(e.enc.NewEncoder(), []byte(text)); err == nil {
			return out, nil
		}
	}

	// Something can not be encoded, go character by character to find it
	out := make([]byte, 0, len(text))
	enc := e.enc.NewEncoder()
	n := 0
	for i, r := range text {
		var b []byte
		var err error
		if r <= e.maxRune && (r != utf8.RuneError || isRealReplacement(text[i:])) {
			enc.Reset()
			b, _, err = transform.Bytes(enc, []byte(string(r)))
		} else {
			err = errors.New("out of range")
		}
		if err == nil {
			out = append(out, b...)
		} else {
			switch e.policy {
			case Replace:
				out = append(out, '?')
			case Ignore:
			default:
				return nil, &EncodeError{Encoding: e.name, Offset: n, Rune: r}
			}
		}
		n++
	}
	return out, nil
}

func (e *transformEncoder) inRange(text string) bool {
	if e.maxRune >= utf8.MaxRune {
		return true
	}
	for _, r := range text {
		if r > e.maxRune {
			return false
		}
	}
	return true
}

// isRealReplacement tells an encoded U+FFFD apart from an invalid byte in the string
func isRealReplacement(s string) bool {
	_, size := utf8.DecodeRuneInString(s)
	return size > 1
}

func (e *transformEncoder) State() uint64 { return 0 }

func (e *transformEncoder) SetState(uint64) error { return nil }

func (e *transformEncoder) Reset() {}
