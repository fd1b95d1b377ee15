package transcode

import (
	"io"
	"unicode/utf8"

	"github.com/bokysan/streamio/internal/args"
	"github.com/bokysan/streamio/internal/commands"
	"github.com/bokysan/streamio/internal/logging"
	"github.com/bokysan/streamio/internal/streams"
	"github.com/bokysan/streamio/internal/textio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Command reads text in one encoding and newline convention and writes it in another
type Command struct {
	Input  args.StreamOptions `yaml:"input"  group:"Input options"  namespace:"in"  env-namespace:"IN"`
	Output args.StreamOptions `yaml:"output" group:"Output options" namespace:"out" env-namespace:"OUT"`
	Binary bool               `yaml:"binary" short:"b" long:"binary" description:"Copy the bytes unchanged, ignoring the text options"`

	Positional struct {
		Source string `positional-arg-name:"SOURCE" description:"Input file, '-' for stdin" default:"-"`
		Target string `positional-arg-name:"TARGET" description:"Output file, '-' for stdout" default:"-"`
	} `positional-args:"yes"`
}

func NewCommand() *Command {
	return &Command{}
}

func (c *Command) Execute(args []string) error {
	logging.SetupLogging()

	if c.Binary {
		n, err := c.copyBytes()
		log.Debugf("Copied %d bytes from %v to %v", n, c.Positional.Source, c.Positional.Target)
		return err
	}

	in, err := commands.OpenInput(c.Positional.Source, &c.Input)
	if err != nil {
		return errors.Wrapf(err, "Could not open %v", c.Positional.Source)
	}
	defer streams.TryClose(in)

	out, err := commands.OpenOutput(c.Positional.Target, &c.Output)
	if err != nil {
		return errors.Wrapf(err, "Could not create %v", c.Positional.Target)
	}

	chars, err := Transcode(out, in, c.Output.ChunkSize)
	log.Debugf("Transcoded %d characters from %v to %v", chars, in, out)
	return streams.ChainErrors(out.Close(), err)
}

// Transcode reads text from `in` until the end of the stream and writes it to `out`, at most `chunk`
// characters at a time. It returns the number of characters copied. `out` is flushed but not closed.
func Transcode(out, in *textio.TextStream, chunk int) (int64, error) {
	var chars int64
	for {
		s, err := in.Read(chunk)
		if err == io.EOF {
			break
		} else if err != nil {
			return chars, err
		}
		if _, err := out.Write(s); err != nil {
			return chars, err
		}
		chars += int64(utf8.RuneCountInString(s))
	}
	return chars, out.Flush()
}

func (c *Command) copyBytes() (int64, error) {
	src, err := commands.OpenRaw(c.Positional.Source, false)
	if err != nil {
		return 0, err
	}
	in, err := streams.NewBufferedReader(src, c.Input.BufferSize)
	if err != nil {
		streams.TryClose(src)
		return 0, err
	}
	defer streams.TryClose(in)

	dst, err := commands.OpenRaw(c.Positional.Target, true)
	if err != nil {
		return 0, err
	}
	out, err := streams.NewBufferedWriter(dst, c.Output.BufferSize)
	if err != nil {
		streams.TryClose(dst)
		return 0, err
	}

	n, err := streams.Copy(out, in, c.Input.BufferSize)
	return n, streams.ChainErrors(out.Close(), err)
}
