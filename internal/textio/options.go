package textio

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Newline selects how line endings are handled
type Newline int

const (
	// NewlineDefault recognizes "\n", "\r" and "\r\n" when reading and returns them as "\n". When writing, "\n"
	// becomes the platform line separator.
	NewlineDefault Newline = iota
	// NewlineUntranslated recognizes every line ending when reading but returns them unchanged. Nothing is
	// translated when writing.
	NewlineUntranslated
	// NewlineLF, NewlineCR and NewlineCRLF only recognize the given line ending when reading. When writing,
	// "\n" is translated to it.
	NewlineLF
	NewlineCR
	NewlineCRLF
)

// DefaultChunkSize is the number of bytes read from the byte stream at a time
const DefaultChunkSize = 8192

// ParseNewline converts a configuration value into a Newline mode
func ParseNewline(s string) (Newline, error) {
	switch strings.ToLower(s) {
	case "", "default", "universal":
		return NewlineDefault, nil
	case "untranslated", "none":
		return NewlineUntranslated, nil
	case "lf", "\n":
		return NewlineLF, nil
	case "cr", "\r":
		return NewlineCR, nil
	case "crlf", "\r\n":
		return NewlineCRLF, nil
	}
	return NewlineDefault, errors.Errorf("illegal newline value: %q", s)
}

func (n Newline) String() string {
	switch n {
	case NewlineDefault:
		return "default"
	case NewlineUntranslated:
		return "untranslated"
	case NewlineLF:
		return "lf"
	case NewlineCR:
		return "cr"
	case NewlineCRLF:
		return "crlf"
	}
	return "unknown"
}

// literal returns the line ending for the fixed modes, and "" for the universal ones
func (n Newline) literal() string {
	switch n {
	case NewlineLF:
		return "\n"
	case NewlineCR:
		return "\r"
	case NewlineCRLF:
		return "\r\n"
	}
	return ""
}

func lineSeparator() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Options configure a TextStream
type Options struct {
	// Encoding name, utf-8 if empty
	Encoding string
	// Errors is the codec error policy: strict (default), replace or ignore
	Errors string
	Newline Newline
	// LineBuffering flushes the byte stream whenever a written text contains a line ending
	LineBuffering bool
	// WriteThrough hands every write straight to the byte stream
	WriteThrough bool
	// ChunkSize is the read and write granularity, DefaultChunkSize if zero
	ChunkSize int
}

// ReconfigureOptions lists the settings which can be changed on an open stream. Nil fields are left unchanged.
type ReconfigureOptions struct {
	LineBuffering *bool
	WriteThrough  *bool
}
