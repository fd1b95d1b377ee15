// Package codec provides incremental text decoders and encoders whose state can be captured and restored. The
// text layer relies on that to compute and replay stream positions.
package codec

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorPolicy selects what a codec does with undecodable input or unencodable text
type ErrorPolicy string

const (
	// Strict fails with a *DecodeError or *EncodeError
	Strict ErrorPolicy = "strict"
	// Replace substitutes U+FFFD when decoding and '?' when encoding
	Replace ErrorPolicy = "replace"
	// Ignore drops the offending input
	Ignore ErrorPolicy = "ignore"
)

// ParseErrorPolicy converts a configuration value into an ErrorPolicy. An empty string means Strict.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(s)) {
	case "", Strict:
		return Strict, nil
	case Replace:
		return Replace, nil
	case Ignore:
		return Ignore, nil
	}
	return "", errors.Errorf("unknown error handler name %q", s)
}

// DecoderState is a snapshot of a decoder: the input bytes it holds back because they do not form a complete
// character yet, and encoding specific flags.
type DecoderState struct {
	Buffered []byte
	Flags    uint64
}

// Decoder turns bytes into text incrementally. Input which ends with an incomplete character is kept until the
// next call, unless `final` is set.
type Decoder interface {
	Decode(input []byte, final bool) (string, error)
	State() DecoderState
	SetState(st DecoderState) error
	Reset()
}

// Encoder turns text into bytes incrementally. State 0 means the encoder is in the middle of a stream; any
// other value means a start-of-stream marker (e.g. a BOM) will be written before the next output.
type Encoder interface {
	Encode(text string, final bool) ([]byte, error)
	State() uint64
	SetState(st uint64) error
	Reset()
}

// DecodeError reports input bytes which are not valid in the encoding
type DecodeError struct {
	Encoding string
	Offset   int
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("'%s' codec can't decode input at position %d: %s", e.Encoding, e.Offset, e.Reason)
}

// EncodeError reports a character which can not be represented in the encoding
type EncodeError struct {
	Encoding string
	Offset   int
	Rune     rune
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("'%s' codec can't encode character %U in position %d", e.Encoding, e.Rune, e.Offset)
}

// Info describes one encoding and creates its codecs
type Info struct {
	Name string

	newDecoder func(policy ErrorPolicy) Decoder
	newEncoder func(policy ErrorPolicy) Encoder
}

// NewDecoder creates a fresh decoder in its start-of-stream state
func (i *Info) NewDecoder(policy ErrorPolicy) Decoder {
	return i.newDecoder(policy)
}

// NewEncoder creates a fresh encoder in its start-of-stream state
func (i *Info) NewEncoder(policy ErrorPolicy) Encoder {
	return i.newEncoder(policy)
}

func (i *Info) String() string {
	return i.Name
}
