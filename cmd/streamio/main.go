package main

import (
	"fmt"
	"os"
	"path"

	"github.com/bokysan/streamio/internal/args"
	"github.com/bokysan/streamio/internal/commands/lines"
	"github.com/bokysan/streamio/internal/commands/transcode"
	"github.com/bokysan/streamio/internal/commands/version"
	sioFlags "github.com/bokysan/streamio/internal/flags"
	"github.com/bokysan/streamio/internal/util"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	// ErrConfigFileDoesNotExist is raised when configuration file cannot be found
	ErrConfigFileDoesNotExist = flags.ErrInvalidTag + 1
)

// StreamIO is the main executable
type StreamIO struct {
	parser *flags.Parser
}

// NewStreamIO will create a new instance of StreamIO and initialize the parser
func NewStreamIO() *StreamIO {
	executablePath := path.Base(os.Args[0])

	sio := &StreamIO{
		parser: flags.NewNamedParser(executablePath, flags.HelpFlag|flags.PrintErrors),
	}

	sio.setupGeneral()
	sio.addCommand("version", "Print the version", "Print the application version and exit", &version.Command{})
	sio.addCommand("transcode", "Convert a text file",
		"Read a text file in one encoding and newline convention and write it in another", transcode.NewCommand())
	sio.addCommand("lines", "Print lines with their positions",
		"Print each line of a text file prefixed with a position which --from accepts", lines.NewCommand())

	return sio
}

// setupGeneral will configure general options
func (sio *StreamIO) setupGeneral() {
	if _, err := sio.parser.AddGroup("General", "General options", &args.General); err != nil {
		util.MustErrorNilOrExit(errors.WithStack(err))
	}
}

func (sio *StreamIO) addCommand(name, short, long string, cmd interface{}) {
	_, err := sio.parser.AddCommand(name, short, long, cmd)
	util.MustErrorNilOrExit(err)
}

// main starts streamio and reads the configuration file
func main() {
	streamIO := NewStreamIO()
	args.General.ConfigurationFile = func(file string) error {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			util.MustErrorNilOrExit(&flags.Error{
				Type:    ErrConfigFileDoesNotExist,
				Message: fmt.Sprintf("Configuration file %s does not exist.", file),
			})
		}

		args.General.ConfigurationFilePath = file
		return sioFlags.ParseConfigFile(streamIO.parser, file)
	}

	_, err := streamIO.parser.Parse()
	util.MustErrorNilOrExit(err)
}
