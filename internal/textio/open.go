package textio

import (
	"github.com/bokysan/streamio/internal/rawio"
	"github.com/bokysan/streamio/internal/streams"
	log "github.com/sirupsen/logrus"
)

// Open opens a file as a text stream. The mode is one of those accepted by rawio.OpenFile. A buffer size of
// zero or less selects streams.DefaultBufferSize.
func Open(name, mode string, bufferSize int, opts Options) (*TextStream, error) {
	raw, err := rawio.OpenFile(name, mode, 0666)
	if err != nil {
		return nil, err
	}
	t, err := Wrap(raw, bufferSize, opts)
	if err != nil {
		streams.TryClose(raw)
		return nil, err
	}
	return t, nil
}

// Wrap stacks a buffered stream and a text stream on a raw channel. Seekable channels which can be read and
// written get a random access buffer. Terminals are always line buffered.
func Wrap(raw rawio.RawChannel, bufferSize int, opts Options) (*TextStream, error) {
	if bufferSize <= 0 {
		bufferSize = streams.DefaultBufferSize
	}
	if raw.Isatty() {
		opts.LineBuffering = true
	}

	var buffer *streams.BufferedStream
	var err error
	switch {
	case raw.Readable() && raw.Writable():
		if !raw.Seekable() {
			return nil, streams.UnsupportedErrorf("open", "%v can't be read and written through one buffer, wrap each direction separately", raw)
		}
		buffer, err = streams.NewBufferedRandom(raw, bufferSize)
	case raw.Writable():
		buffer, err = streams.NewBufferedWriter(raw, bufferSize)
	default:
		buffer, err = streams.NewBufferedReader(raw, bufferSize)
	}
	if err != nil {
		return nil, err
	}

	t, err := NewTextStream(buffer, opts)
	if err != nil {
		return nil, err
	}
	log.Debugf("Opened %v", t)
	return t, nil
}
