package logging

import (
	"strings"

	"github.com/bokysan/streamio/internal/args"
	"github.com/bokysan/streamio/internal/textio"
	"github.com/bokysan/streamio/internal/util"
	log "github.com/sirupsen/logrus"
)

// logBufferSize is the byte buffer size of the log file stream
const logBufferSize = 4096

func SetupLogging() {
	SetVerbosity(args.General.Verbose)

	if args.General.LogReportCaller {
		log.AddHook(&ContextHook{})
	}

	if args.General.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{
			FieldMap: log.FieldMap{
				log.FieldKeyTime:  "timestamp",
				log.FieldKeyLevel: "@level",
				log.FieldKeyMsg:   "message",
				log.FieldKeyFunc:  "@caller",
			},
		})
	} else {
		color := strings.TrimSpace(strings.ToLower(args.General.LogColor))
		log.SetFormatter(&log.TextFormatter{
			ForceColors:   color == "yes" || color == "true" || color == "1",
			DisableColors: color == "no" || color == "false" || color == "0",
			FullTimestamp: args.General.LogFullTimestamp,
		})
	}
	log.SetReportCaller(args.General.LogReportCaller)

	if args.General.LogFile != nil && len(*args.General.LogFile) > 0 && *args.General.LogFile != "-" {
		w, err := OpenLogFile(*args.General.LogFile)
		util.MustErrorNilOrExit(err)
		log.SetOutput(w)
	}

	log.Infof("Verbosity level: %v", VerbosityName())
}

// OpenLogFile opens a file for appending log entries. Entries go through a line buffered text stream, so
// every complete entry reaches the file as soon as it is logged.
func OpenLogFile(name string) (*TextWriter, error) {
	text, err := textio.Open(name, "a", logBufferSize, textio.Options{
		Encoding:      "utf-8",
		Errors:        "replace",
		Newline:       textio.NewlineLF,
		LineBuffering: true,
	})
	if err != nil {
		return nil, err
	}
	return NewTextWriter(text), nil
}
