package util

import (
	"os"

	"github.com/bokysan/streamio/internal/streams"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// ErrUsage is the exit code for invalid arguments passed to a stream
	ErrUsage = 64
	// ErrUnsupported is the exit code for an operation the stream can't do, e.g. seeking a pipe
	ErrUnsupported = 65
	// ErrChannel is the exit code for a failure of the underlying file, pipe or socket
	ErrChannel = 74
	ErrGeneric = 99
)

// ExitCode picks the process exit code for an error. Errors from the flags package keep their own type as
// the exit code.
func ExitCode(err error) int {
	var flagsError *flags.Error
	var channelError *streams.ChannelError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &flagsError):
		if flagsError.Type == flags.ErrHelp {
			return 0
		}
		return int(flagsError.Type)
	case streams.IsUsageError(err):
		return ErrUsage
	case streams.IsUnsupported(err):
		return ErrUnsupported
	case errors.As(err, &channelError):
		return ErrChannel
	}
	return ErrGeneric
}

// MustErrorNilOrExit will check the provided argument. If it's `nil` it will simply return. If it's
// not `nil`, it will log the error as `log.FatalLevel` and exit immediately with the code from ExitCode.
func MustErrorNilOrExit(err error) {
	if err == nil {
		return
	}

	code := ExitCode(err)
	if code == 0 {
		os.Exit(0)
		return
	}

	log.StandardLogger().WithError(err).Logf(log.FatalLevel, "Error: %+v", err)
	log.Exit(code)
}
