package args

import (
	"github.com/bokysan/streamio/internal/textio"
	"github.com/pkg/errors"
)

// Newline is a go-flags and yaml friendly wrapper around textio.Newline
type Newline textio.Newline

func (n *Newline) UnmarshalFlag(value string) error {
	parsed, err := textio.ParseNewline(value)
	if err != nil {
		return errors.WithStack(err)
	}
	*n = Newline(parsed)
	return nil
}

func (n Newline) MarshalFlag() (string, error) {
	return textio.Newline(n).String(), nil
}

// UnmarshalYAML accepts the same values as the command line
func (n *Newline) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return errors.WithStack(err)
	}
	return n.UnmarshalFlag(value)
}

// StreamOptions describe how a file is wrapped into a buffered text stream
type StreamOptions struct {
	BufferSize    int     `yaml:"buffer-size"    long:"buffer-size"    env:"BUFFER_SIZE"    description:"Size of the byte buffer" default:"8192"`
	Encoding      string  `yaml:"encoding"       long:"encoding"       env:"ENCODING"       description:"Text encoding, e.g. utf-8, utf-16, latin-1, windows-1252, shift_jis" default:"utf-8"`
	Errors        string  `yaml:"errors"         long:"errors"         env:"ERRORS"         description:"What to do with invalid input" choice:"strict" choice:"replace" choice:"ignore" default:"strict"`
	Newline       Newline `yaml:"newline"        long:"newline"        env:"NEWLINE"        description:"Line ending handling: default, untranslated, lf, cr or crlf" default:"default"`
	LineBuffering bool    `yaml:"line-buffering" long:"line-buffering" env:"LINE_BUFFERING" description:"Flush on every line ending"`
	WriteThrough  bool    `yaml:"write-through"  long:"write-through"  env:"WRITE_THROUGH"  description:"Pass every write straight to the byte buffer"`
	ChunkSize     int     `yaml:"chunk-size"     long:"chunk-size"     env:"CHUNK_SIZE"     description:"Number of bytes decoded or encoded at once" default:"8192"`
}

// Validate checks the values which go-flags can not check itself
func (o *StreamOptions) Validate() error {
	if o.BufferSize <= 0 {
		return errors.Errorf("buffer size must be positive, got %d", o.BufferSize)
	}
	if o.ChunkSize <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	return nil
}

// TextOptions converts the options for textio.NewTextStream
func (o *StreamOptions) TextOptions() textio.Options {
	return textio.Options{
		Encoding:      o.Encoding,
		Errors:        o.Errors,
		Newline:       textio.Newline(o.Newline),
		LineBuffering: o.LineBuffering,
		WriteThrough:  o.WriteThrough,
		ChunkSize:     o.ChunkSize,
	}
}
