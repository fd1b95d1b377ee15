package codec

import (
	"strings"
	"unicode/utf8"
)

const utf8Name = "utf-8"

type utf8Decoder struct {
	policy  ErrorPolicy
	pending []byte
}

func newUTF8Decoder(policy ErrorPolicy) Decoder {
	return &utf8Decoder{policy: policy}
}

func (d *utf8Decoder) Decode(input []byte, final bool) (string, error) {
	data := input
	if len(d.pending) > 0 {
		data = append(append([]byte(nil), d.pending...), input...)
	}

	// Common case, nothing to fix up
	if utf8.Valid(data) {
		d.pending = nil
		return string(data), nil
	}

	var sb strings.Builder
	sb.Grow(len(data))
	i := 0
	for i < len(data) {
		r, size := utf8.DecodeRune(data[i:])
		if r != utf8.RuneError || size > 1 {
			sb.WriteRune(r)
			i += size
			continue
		}
		if !final && !utf8.FullRune(data[i:]) {
			// Incomplete sequence at the end, keep it for the next call
			break
		}
		switch d.policy {
		case Replace:
			sb.WriteRune(utf8.RuneError)
		case Ignore:
		default:
			return "", &DecodeError{Encoding: utf8Name, Offset: i, Reason: "invalid byte sequence"}
		}
		i += size
	}

	if i < len(data) {
		d.pending = append([]byte(nil), data[i:]...)
	} else {
		d.pending = nil
	}
	return sb.String(), nil
}

func (d *utf8Decoder) State() DecoderState {
	return DecoderState{Buffered: append([]byte(nil), d.pending...)}
}

func (d *utf8Decoder) SetState(st DecoderState) error {
	d.pending = append([]byte(nil), st.Buffered...)
	return nil
}

func (d *utf8Decoder) Reset() {
	d.pending = nil
}

// utf8Encoder has no state: UTF-8 has no start-of-stream marker
type utf8Encoder struct {
	policy ErrorPolicy
}

func newUTF8Encoder(policy ErrorPolicy) Encoder {
	return &utf8Encoder{policy: policy}
}

func (e *utf8Encoder) Encode(text string, final bool) ([]byte, error) {
	if utf8.ValidString(text) {
		return []byte(text), nil
	}
	out := make([]byte, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
				switch e.policy {
				case Replace:
					out = append(out, '?')
				case Ignore:
				default:
					return nil, &EncodeError{Encoding: utf8Name, Offset: i, Rune: rune(text[i])}
				}
				continue
			}
		}
		out = utf8.AppendRune(out, r)
	}
	return out, nil
}

func (e *utf8Encoder) State() uint64 { return 0 }

func (e *utf8Encoder) SetState(uint64) error { return nil }

func (e *utf8Encoder) Reset() {}
