package codec

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Encodings with a shift state inside the transformer. Their state can not be captured, so positions in a
// stream using them can not be reconstructed.
var stateful = map[string]bool{
	"iso-2022-jp": true,
	"hz-gb-2312":  true,
	"replacement": true,
}

var builtin = map[string]*Info{
	utf8Name: {
		Name:       utf8Name,
		newDecoder: newUTF8Decoder,
		newEncoder: newUTF8Encoder,
	},
	utf16Name: {
		Name:       utf16Name,
		newDecoder: newUTF16Decoder,
		newEncoder: newUTF16Encoder,
	},
	utf16LEName: transformInfo(utf16LEName, utf16LE, utf8.MaxRune),
	utf16BEName: transformInfo(utf16BEName, utf16BE, utf8.MaxRune),
	"latin-1":   transformInfo("latin-1", charmap.ISO8859_1, 0xFF),
	"ascii":     transformInfo("ascii", charmap.ISO8859_1, 0x7F),
}

var aliases = map[string]string{
	"utf8":       utf8Name,
	"u8":         utf8Name,
	"utf":        utf8Name,
	"utf16":      utf16Name,
	"u16":        utf16Name,
	"utf-16le":   utf16LEName,
	"utf16le":    utf16LEName,
	"utf-16be":   utf16BEName,
	"utf16be":    utf16BEName,
	"latin1":     "latin-1",
	"latin":      "latin-1",
	"l1":         "latin-1",
	"iso-8859-1": "latin-1",
	"iso8859-1":  "latin-1",
	"8859":       "latin-1",
	"us-ascii":   "ascii",
	"646":        "ascii",
}

func transformInfo(name string, enc encoding.Encoding, maxRune rune) *Info {
	return &Info{
		Name: name,
		newDecoder: func(policy ErrorPolicy) Decoder {
			return newTransformDecoder(name, enc, maxRune, policy)
		},
		newEncoder: func(policy ErrorPolicy) Encoder {
			return newTransformEncoder(name, enc, maxRune, policy)
		},
	}
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

func resolve(name string) string {
	key := normalize(name)
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

// Lookup finds an encoding by name. Besides the built-in utf-8, utf-16, latin-1 and ascii codecs, every
// WHATWG encoding label is accepted, except for encodings with a shift state.
func Lookup(name string) (*Info, error) {
	key := resolve(name)
	if info, ok := builtin[key]; ok {
		return info, nil
	}

	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding: %s", name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding: %s", name)
	}
	if stateful[canonical] || stateful[key] || enc == encoding.Replacement {
		return nil, errors.Errorf("encoding %s is stateful and not supported", name)
	}
	if info, ok := builtin[resolve(canonical)]; ok {
		return info, nil
	}
	return transformInfo(canonical, enc, utf8.MaxRune), nil
}

// Names returns the names of the built-in encodings
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
