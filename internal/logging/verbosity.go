package logging

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// SetVerbosity maps the number of `-v` flags to a log level. No flag at all only shows panics.
func SetVerbosity(v []bool) {
	verbosity := log.Level(len(v))
	if verbosity > log.TraceLevel {
		verbosity = log.TraceLevel
	}
	log.SetLevel(verbosity)
}

func VerbosityName() string {
	return strings.ToUpper(log.GetLevel().String())
}
