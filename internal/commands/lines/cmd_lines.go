package lines

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"

	"github.com/bokysan/streamio/internal/args"
	"github.com/bokysan/streamio/internal/commands"
	"github.com/bokysan/streamio/internal/logging"
	"github.com/bokysan/streamio/internal/rawio"
	"github.com/bokysan/streamio/internal/streams"
	"github.com/bokysan/streamio/internal/textio"
	"github.com/pkg/errors"
	"github.com/rivo/uniseg"
	log "github.com/sirupsen/logrus"
)

// Command prints the lines of a text file, each prefixed with the position it starts at. Any of the
// positions can be given back with --from to continue reading there.
type Command struct {
	Options args.StreamOptions `yaml:"stream" group:"Stream options"`
	From    string             `yaml:"from"   long:"from"            description:"Start reading at a position printed by an earlier run"`
	Count   int                `yaml:"count"  short:"n" long:"count" description:"Stop after this many lines (0 = all)"`
	Stats   bool               `yaml:"stats"  short:"s" long:"stats" description:"Print the number of user-perceived characters and the display width of each line"`
	Follow  bool               `yaml:"follow" short:"F" long:"follow" description:"Keep waiting for lines appended to the file"`

	Positional struct {
		File string `positional-arg-name:"FILE" description:"Seekable text file" required:"yes"`
	} `positional-args:"yes"`

	// wait blocks until the input may have grown. Returning an error stops following.
	wait func(ctx context.Context) error
}

func NewCommand() *Command {
	return &Command{}
}

func (c *Command) Execute(args []string) error {
	logging.SetupLogging()

	in, err := commands.OpenInput(c.Positional.File, &c.Options)
	if err != nil {
		return errors.Wrapf(err, "Could not open %v", c.Positional.File)
	}
	defer streams.TryClose(in)

	if c.Follow {
		watcher, err := NewWatcher(c.Positional.File)
		if err != nil {
			return err
		}
		defer streams.TryClose(watcher)
		c.wait = watcher.Wait
	}

	out, err := textio.Wrap(rawio.NewFileChannel(os.Stdout, false, true), 0, textio.Options{
		Errors:        "replace",
		LineBuffering: c.Follow,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Flush(); err != nil {
			log.WithError(err).Warnf("Could not flush %v", out)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.Run(ctx, out, in)
}

// Run prints the lines of `in` to `out`. When following, an incomplete last line is left unread until its
// terminator arrives and Run returns once the context is done.
func (c *Command) Run(ctx context.Context, out, in *textio.TextStream) error {
	if c.From != "" {
		cookie, ok := new(big.Int).SetString(c.From, 10)
		if !ok {
			return streams.UsageErrorf("lines", "invalid position %q", c.From)
		}
		if _, err := in.Seek(cookie, io.SeekStart); err != nil {
			return err
		}
	}

	following := c.Follow && c.wait != nil
	for count := 0; c.Count <= 0 || count < c.Count; {
		pos, err := in.Tell()
		if err != nil {
			return err
		}
		line, err := in.ReadLine(-1)
		if err != nil && err != io.EOF {
			return err
		}
		if following && (err == io.EOF || !strings.HasSuffix(line, "\n")) {
			if _, err := in.Seek(pos, io.SeekStart); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return err
			}
			if err := c.wait(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || err == io.EOF {
					return nil
				}
				return err
			}
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err := c.print(out, pos, strings.TrimRight(line, "\r\n")); err != nil {
			return err
		}
		count++
	}
	return nil
}

func (c *Command) print(out *textio.TextStream, pos *big.Int, line string) error {
	var text string
	if c.Stats {
		text = fmt.Sprintf("%v\t%d\t%d\t%s\n", pos, uniseg.GraphemeClusterCount(line), uniseg.StringWidth(line), line)
	} else {
		text = fmt.Sprintf("%v\t%s\n", pos, line)
	}
	_, err := out.Write(text)
	return err
}
